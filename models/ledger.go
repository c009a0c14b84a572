package models

import "time"

// LedgerTimeLayout is ISO-8601 with millisecond precision ("+00:00" offset).
const LedgerTimeLayout = "2006-01-02T15:04:05.000-07:00"

// LedgerEntry records a session whose metadata made it into the catalogs.
// Entries are only ever appended.
type LedgerEntry struct {
	SessionID      string   `json:"_id"`
	CreateTs       string   `json:"create_ts"`
	Updated        string   `json:"updated"`
	Provider       string   `json:"provider,omitempty"`
	MetadataShared []string `json:"metadata_shared,omitempty"`
}

func FormatLedgerTime(t time.Time) string {
	return t.UTC().Truncate(time.Millisecond).Format(LedgerTimeLayout)
}

type Ledger []LedgerEntry

// IDs returns the set of session ids already recorded.
func (l Ledger) IDs() map[string]bool {
	ids := make(map[string]bool, len(l))
	for _, e := range l {
		ids[e.SessionID] = true
	}
	return ids
}
