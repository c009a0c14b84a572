// Package store persists the explorer's datasets: directory snapshots, the
// processed-session ledger and the three catalogs. Every dataset is a single
// JSON document that is rewritten as a whole.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("document not found")

// Dataset names, as the explorer frontend and operators know them.
const (
	DatasetFriendlyProviders = "_providers_friendly.json"
	DatasetProviders         = "_providers.json"
	DatasetProjects          = "_projects.json"
	DatasetDataUsers         = "_data_users.json"
	DatasetLedger            = "_sessions.json"
	DatasetFileLevel         = "guts-file-level-metadata.json"
	DatasetSubjectLevel      = "guts-subject-level-metadata.json"
	DatasetOverview          = "guts-measure-overview.json"
)

type Document struct {
	Name string
	Body []byte
}

// DocumentStore loads and saves whole documents. Save writes all docs or
// reports an error; implementations make each document replacement atomic.
type DocumentStore interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, docs ...Document) error
}

// Encode renders v the way every dataset is stored: four-space indented JSON
// with sorted object keys and no HTML escaping.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// NewDocument encodes v under name.
func NewDocument(name string, v any) (Document, error) {
	body, err := Encode(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Document{Name: name, Body: body}, nil
}

func decode(data []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(dest)
}
