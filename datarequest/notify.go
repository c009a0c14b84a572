package datarequest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gutsdata/explorer_backend/config"
)

// DataRequestSubmitted is published once the exchange service accepted a
// request, for the confirmation mailer.
type DataRequestSubmitted struct {
	ProviderFriendly string          `json:"provider_friendly"`
	FilePaths        []string        `json:"file_paths"`
	Requester        UserIdentity    `json:"requester"`
	FormData         map[string]any  `json:"form_data"`
	SubmittedAt      string          `json:"submitted_at"`
	Response         json.RawMessage `json:"response,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, event DataRequestSubmitted) error
}

// PubSubNotifier publishes submissions to a Pub/Sub topic.
type PubSubNotifier struct {
	Topic string
}

// NewPubSubNotifierFromEnv returns nil when DATA_REQUEST_TOPIC is unset.
func NewPubSubNotifierFromEnv() *PubSubNotifier {
	topic := config.EnvString("DATA_REQUEST_TOPIC", "")
	if topic == "" {
		return nil
	}
	return &PubSubNotifier{Topic: topic}
}

func (n *PubSubNotifier) Notify(ctx context.Context, event DataRequestSubmitted) error {
	if n == nil || n.Topic == "" {
		return errors.New("pubsub notifier not configured")
	}
	_, err := config.Publish(ctx, n.Topic, event, map[string]string{
		"type":     "data-request-submitted",
		"provider": event.ProviderFriendly,
	})
	return err
}
