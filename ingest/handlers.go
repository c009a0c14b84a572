package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/sirupsen/logrus"
)

// PubSubPushEnvelope is the body Pub/Sub push subscriptions deliver.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type runSummary struct {
	RunID      string         `json:"run_id"`
	NothingNew bool           `json:"nothing_new"`
	Candidates int            `json:"candidates"`
	Ingested   []string       `json:"ingested"`
	Added      map[string]int `json:"added"`
	Anomalies  int            `json:"anomalies"`
	Warnings   []string       `json:"warnings"`
}

func summarize(res Result) runSummary {
	s := runSummary{
		RunID:      res.RunID,
		NothingNew: res.NothingNew,
		Candidates: res.Candidates,
		Ingested:   []string{},
		Added:      map[string]int{},
		Anomalies:  len(res.Anomalies),
		Warnings:   res.Warnings,
	}
	for _, e := range res.Ingested {
		s.Ingested = append(s.Ingested, e.SessionID)
	}
	for k, n := range res.Added {
		s.Added[k.String()] = n
	}
	return s
}

// PubSubPushHandler triggers an ingestion run from a Pub/Sub push delivery.
// Every delivery is acknowledged; a failed run is retried on the next
// scheduled trigger rather than through redelivery.
func PubSubPushHandler(r *Runner) gin.HandlerFunc {
	logger := config.GetLogger()
	return func(c *gin.Context) {
		if !config.EnvBool("ENABLE_INGEST_PUSH_ENDPOINT", true) {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope PubSubPushEnvelope
		if body, err := io.ReadAll(c.Request.Body); err == nil {
			_ = json.Unmarshal(body, &envelope)
		}

		res, err := r.RunOnce(c.Request.Context())
		switch {
		case errors.Is(err, ErrRunInProgress):
			logger.WithField("message_id", envelope.Message.ID).Info("ingestion trigger ignored: run in progress")
			c.Status(http.StatusNoContent)
		case err != nil:
			logger.WithFields(logrus.Fields{
				"message_id": envelope.Message.ID,
				"error":      err.Error(),
			}).Error("ingestion trigger failed")
			c.Status(http.StatusNoContent)
		default:
			c.JSON(http.StatusOK, summarize(res))
		}
	}
}
