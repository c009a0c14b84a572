package ingest

import (
	"fmt"

	"github.com/gutsdata/explorer_backend/models"
)

// SessionHook inspects a processed session and the providers its metadata
// was attributed to. A returned anomaly is reported but does not stop the
// session from being ingested.
type SessionHook func(s models.Session, providers []string) *Anomaly

// MultiProviderHook flags sessions whose metadata came from more than one
// provider. Such a session is ledgered under the last provider seen.
func MultiProviderHook(s models.Session, providers []string) *Anomaly {
	if len(providers) < 2 {
		return nil
	}
	return &Anomaly{
		SessionID: s.ID,
		Reason:    AnomalyMultiProvider,
		Detail:    fmt.Sprintf("metadata attributed to %d providers %v, recorded as %q", len(providers), providers, providers[len(providers)-1]),
	}
}
