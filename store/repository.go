package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gutsdata/explorer_backend/models"
)

// Snapshot is the point-in-time copy of the exchange service directories
// written by the last ingestion run.
type Snapshot struct {
	Providers []models.Provider
	Projects  []models.Project
	DataUsers []models.DataUser
}

// Repository gives typed access to the datasets in a DocumentStore.
type Repository struct {
	docs DocumentStore
}

func NewRepository(docs DocumentStore) *Repository {
	return &Repository{docs: docs}
}

func (r *Repository) Save(ctx context.Context, docs ...Document) error {
	return r.docs.Save(ctx, docs...)
}

// LoadSnapshot reads the three raw directories. A missing directory is an
// error: the builder cannot work without a completed ingestion run.
func (r *Repository) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := r.load(ctx, DatasetProviders, &snap.Providers); err != nil {
		return Snapshot{}, err
	}
	if err := r.load(ctx, DatasetProjects, &snap.Projects); err != nil {
		return Snapshot{}, err
	}
	if err := r.load(ctx, DatasetDataUsers, &snap.DataUsers); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// LoadLedger returns the processed-session ledger, empty if none was written yet.
func (r *Repository) LoadLedger(ctx context.Context) (models.Ledger, error) {
	var ledger models.Ledger
	if err := r.load(ctx, DatasetLedger, &ledger); err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.Ledger{}, nil
		}
		return nil, err
	}
	if ledger == nil {
		ledger = models.Ledger{}
	}
	return ledger, nil
}

// LoadCatalog returns the records of a catalog dataset, empty if none was written yet.
func (r *Repository) LoadCatalog(ctx context.Context, name string) ([]models.Record, error) {
	data, err := r.docs.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.Record{}, nil
		}
		return nil, err
	}
	records, err := models.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// LoadRaw returns the stored bytes of a dataset.
func (r *Repository) LoadRaw(ctx context.Context, name string) ([]byte, error) {
	return r.docs.Load(ctx, name)
}

func (r *Repository) load(ctx context.Context, name string, dest any) error {
	data, err := r.docs.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	if err := decode(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
