// Package catalog serves the catalogs written by the ingestion pipeline.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/store"
)

var ErrUnknownCatalog = errors.New("unknown catalog")

// Catalog short names as the explorer frontend requests them, in export order.
var Names = []string{"files", "subjects", "measures"}

var datasets = map[string]string{
	"files":    store.DatasetFileLevel,
	"subjects": store.DatasetSubjectLevel,
	"measures": store.DatasetOverview,
}

// Dataset returns the dataset backing a catalog short name.
func Dataset(name string) (string, error) {
	ds, ok := datasets[name]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownCatalog, name)
	}
	return ds, nil
}

type Reader struct {
	repo  *store.Repository
	cache Cache
}

func NewReader(repo *store.Repository) *Reader {
	return &Reader{repo: repo}
}

// WithCache serves Raw through c.
func (r *Reader) WithCache(c Cache) *Reader {
	r.cache = c
	return r
}

// Raw returns the stored document of a catalog. A catalog no run has
// written yet reads as an empty list.
func (r *Reader) Raw(ctx context.Context, name string) ([]byte, error) {
	ds, err := Dataset(name)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if data, ok := r.cache.Get(ctx, ds); ok {
			return data, nil
		}
	}
	data, err := r.repo.LoadRaw(ctx, ds)
	if errors.Is(err, store.ErrNotFound) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(ctx, ds, data)
	}
	return data, nil
}

func (r *Reader) Records(ctx context.Context, name string) ([]models.Record, error) {
	ds, err := Dataset(name)
	if err != nil {
		return nil, err
	}
	return r.repo.LoadCatalog(ctx, ds)
}
