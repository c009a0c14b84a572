package store

import (
	"context"
	"fmt"
	"os"

	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/utils"
)

// Open builds the DocumentStore selected by STORAGE_PROVIDER.
func Open(ctx context.Context) (DocumentStore, error) {
	switch provider := utils.GetStorageProvider(); provider {
	case utils.StorageProviderFS:
		return NewFileStore(utils.GetDataDir())
	case utils.StorageProviderGCS:
		client, err := utils.GetGCSClient(ctx)
		if err != nil {
			return nil, err
		}
		s, err := NewGCSStore(ctx, client, os.Getenv("GCS_BUCKET"), os.Getenv("GCS_PREFIX"))
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return s, nil
	case utils.StorageProviderSQL:
		if config.GetDB() == nil {
			if err := config.ConnectDatabaseWithRetry(ctx, config.EnvInt("DB_CONNECT_ATTEMPTS", 5)); err != nil {
				return nil, err
			}
		}
		s, err := NewSQLStore(config.GetDB())
		if err != nil {
			return nil, err
		}
		if !config.EnvBool("SKIP_MIGRATIONS", false) {
			if err := s.Migrate(); err != nil {
				return nil, err
			}
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_PROVIDER %q", provider)
	}
}
