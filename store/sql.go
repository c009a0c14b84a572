package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gutsdata/explorer_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLStore keeps documents as rows of models.Document. Save replaces all
// documents in one transaction.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&models.Document{})
}

func (s *SQLStore) Load(ctx context.Context, name string) ([]byte, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return doc.Body, nil
}

func (s *SQLStore) Save(ctx context.Context, docs ...Document) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range docs {
			row := models.Document{Name: d.Name, Body: d.Body}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("save %s: %w", d.Name, err)
			}
		}
		return nil
	})
}
