package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

const (
	SessionStatusActive = "active"

	OperationRequest = "request"
	OperationShare   = "share"

	AccessShared     = "shared"
	AuthSchemeNative = "native"
	SecretPassword   = "password"
)

type Endpoint struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

type Provider struct {
	ID           string     `json:"_id"`
	FriendlyName string     `json:"friendly_name"`
	Endpoints    []Endpoint `json:"endpoints"`
}

// FriendlyProvider is a Provider whose raw name passed the alias table.
type FriendlyProvider struct {
	ID           string `json:"_id"`
	FriendlyName string `json:"friendly_name"`
	Hostname     string `json:"hostname"`
}

// Project.ServiceAccounts is keyed by account id, valued by provider id,
// the way the exchange service serves it.
type Project struct {
	ID              string            `json:"_id,omitempty"`
	Name            string            `json:"name"`
	Members         []string          `json:"members"`
	ServiceAccounts map[string]string `json:"service_accounts"`
}

type DataUser struct {
	ID         string `json:"_id"`
	ProviderID string `json:"provider_id"`
	Role       string `json:"role"`
}

const RoleReviewer = "reviewer"

type User struct {
	ID         string `json:"_id"`
	ProviderID string `json:"provider_id"`
}

type ProfileTags struct {
	Path string `json:"path"`
	User string `json:"user"`
}

type Profile struct {
	Tag        string         `json:"tag"`
	Endpoint   Endpoint       `json:"endpoint"`
	AuthScheme string         `json:"auth_scheme"`
	SecretType string         `json:"secret_type"`
	Metadata   map[string]any `json:"metadata"`
	Username   string         `json:"username,omitempty"`
}

type Event struct {
	Operation   string         `json:"operation"`
	Path        string         `json:"path"`
	Metadata    []MetadataItem `json:"metadata"`
	ProfileTags ProfileTags    `json:"profile_tags"`
}

type Session struct {
	ID           string    `json:"_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreateTs     string    `json:"create_ts,omitempty"`
	Access       string    `json:"access,omitempty"`
	Lifetime     int       `json:"lifetime,omitempty"`
	Events       []Event   `json:"events"`
	Profiles     []Profile `json:"profiles"`
	Participants []string  `json:"participants"`
	Provenance   []any     `json:"provenance"`
}

// ProfileByTag returns the first profile carrying tag.
func (s Session) ProfileByTag(tag string) (Profile, bool) {
	for _, p := range s.Profiles {
		if p.Tag == tag {
			return p, true
		}
	}
	return Profile{}, false
}

// MetadataItem is the [kind, type_name, payload] triple attached to share events.
type MetadataItem struct {
	Kind     string
	TypeName string
	Payload  json.RawMessage
}

func (m MetadataItem) MarshalJSON() ([]byte, error) {
	payload := m.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal([]any{m.Kind, m.TypeName, payload})
}

// UnmarshalJSON never fails on a malformed entry. Anything that is not a
// three-element array decodes to an empty item, which is rejected downstream
// without failing the whole session list.
func (m *MetadataItem) UnmarshalJSON(data []byte) error {
	*m = MetadataItem{}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) != 3 {
		return nil
	}
	_ = json.Unmarshal(parts[0], &m.Kind)
	_ = json.Unmarshal(parts[1], &m.TypeName)
	m.Payload = append(json.RawMessage(nil), parts[2]...)
	return nil
}

// Record is one catalog row. Numbers are kept as json.Number so rewriting a
// catalog never changes the bytes of values it did not touch.
type Record map[string]any

var ErrPayloadNotArray = errors.New("payload is not a JSON array")

// Records decodes the payload as an array of JSON objects.
func (m MetadataItem) Records() ([]Record, error) {
	trimmed := bytes.TrimSpace(m.Payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrPayloadNotArray
	}
	return DecodeRecords(trimmed)
}

func DecodeRecords(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out []Record
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
