package ingest

import (
	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/store"
)

// CatalogKind enumerates the catalogs metadata can be shared into.
type CatalogKind int

const (
	KindFileLevel CatalogKind = iota
	KindSubjectLevel
	KindOverview
)

// ProviderField is stamped on every file-level record.
const ProviderField = "explorer_provider"

var allKinds = []CatalogKind{KindFileLevel, KindSubjectLevel, KindOverview}

// typeNames lists the exact metadata type names each kind accepts.
var typeNames = map[CatalogKind][]string{
	KindFileLevel:    {"file-level-metadata", "guts-file-level-metadata"},
	KindSubjectLevel: {"subject-level-metadata", "guts-subject-level-metadata"},
	KindOverview:     {"measure-overview", "guts-measure-overview"},
}

func (k CatalogKind) String() string {
	switch k {
	case KindFileLevel:
		return "file-level-metadata"
	case KindSubjectLevel:
		return "subject-level-metadata"
	case KindOverview:
		return "measure-overview"
	default:
		return "unknown"
	}
}

// Dataset is the document the kind's catalog is stored in.
func (k CatalogKind) Dataset() string {
	switch k {
	case KindFileLevel:
		return store.DatasetFileLevel
	case KindSubjectLevel:
		return store.DatasetSubjectLevel
	default:
		return store.DatasetOverview
	}
}

// KindForTypeName maps a metadata type name to its catalog.
func KindForTypeName(name string) (CatalogKind, bool) {
	for _, k := range allKinds {
		for _, n := range typeNames[k] {
			if n == name {
				return k, true
			}
		}
	}
	return 0, false
}

// Accepts reports whether provider may contribute to the kind's catalog.
// The overview is a whole-project snapshot only the authoritative provider publishes.
func (k CatalogKind) Accepts(provider, authoritative string) bool {
	if k == KindOverview {
		return provider == authoritative
	}
	return true
}

// Merge folds records from provider into acc.
func (k CatalogKind) Merge(acc, records []models.Record, provider string) []models.Record {
	switch k {
	case KindFileLevel:
		for _, r := range records {
			stamped := make(models.Record, len(r)+1)
			for key, v := range r {
				stamped[key] = v
			}
			stamped[ProviderField] = provider
			acc = append(acc, stamped)
		}
		return acc
	case KindOverview:
		return append([]models.Record{}, records...)
	default:
		return append(acc, records...)
	}
}
