package models

import "time"

// Document is one persisted dataset (catalog, ledger or directory snapshot)
// when the SQL storage provider is used.
type Document struct {
	Name      string    `gorm:"primary_key;size:128" json:"name"`
	Body      []byte    `gorm:"type:longblob;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string {
	return "explorer_documents"
}
