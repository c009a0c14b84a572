package datarequest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/neptune"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type SessionCreator interface {
	CreateSession(ctx context.Context, session models.Session) (json.RawMessage, error)
}

// Service builds a session and submits it. It never retries: the caller owns
// retry policy.
type Service struct {
	builder  *Builder
	creator  SessionCreator
	notifier Notifier
	logger   *logrus.Logger
}

// NewService wires the builder to the exchange service. notifier may be nil.
func NewService(builder *Builder, creator SessionCreator, notifier Notifier, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Service{builder: builder, creator: creator, notifier: notifier, logger: logger}
}

func (s *Service) Submit(ctx context.Context, req Request) (json.RawMessage, error) {
	session, err := s.builder.Build(ctx, req)
	if err != nil {
		config.LogError(s.logger, "datarequest", "Submit", "build session", req.ProviderFriendly, err)
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "datarequest.Submit")
	defer span.End()

	resp, err := s.creator.CreateSession(ctx, session)
	if err != nil {
		subErr := &SubmissionError{Err: err}
		var se *neptune.StatusError
		if errors.As(err, &se) {
			subErr.StatusCode = se.StatusCode
		}
		span.SetStatus(codes.Error, subErr.Error())
		config.LogError(s.logger, "datarequest", "Submit", "create session", req.ProviderFriendly, subErr)
		return nil, subErr
	}

	s.logger.WithFields(logrus.Fields{
		"provider":     req.ProviderFriendly,
		"files":        len(req.FilePaths),
		"participants": len(session.Participants),
	}).Info("data request submitted")

	if s.notifier != nil {
		event := DataRequestSubmitted{
			ProviderFriendly: req.ProviderFriendly,
			FilePaths:        req.FilePaths,
			Requester:        req.UserIdentity,
			FormData:         req.FormData,
			SubmittedAt:      models.FormatLedgerTime(time.Now()),
			Response:         resp,
		}
		if err := s.notifier.Notify(ctx, event); err != nil {
			// the request already exists upstream; a lost confirmation is not a failure
			config.LogError(s.logger, "datarequest", "Submit", "notify submission", req.ProviderFriendly, err)
		}
	}
	return resp, nil
}
