// Package datarequest turns an explorer user's file selection into an
// exchange-service session asking the hosting provider for access.
package datarequest

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/registry"
	"github.com/gutsdata/explorer_backend/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/gutsdata/explorer_backend/datarequest")

const (
	ProjectName = "GUTS-Metadata"
	// RegistryProvider is the raw name of the identity registry whose
	// endpoint anchors the requester's profile.
	RegistryProvider = "sram"

	DefaultLifetime   = 604800 // seconds, one week
	NoAccessPrincipal = "noaccess"
	AnonymousSubject  = "noName"
)

type UserIdentity struct {
	Subject string `json:"sub,omitempty"`
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
}

type Request struct {
	ProviderFriendly string         `json:"provider_friendly" validate:"required"`
	FilePaths        []string       `json:"file_paths" validate:"required,min=1,dive,required"`
	UserIdentity     UserIdentity   `json:"user_data"`
	FormData         map[string]any `json:"form_data"`
}

type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (store.Snapshot, error)
}

type Builder struct {
	snapshots SnapshotLoader
	aliases   registry.AliasTable
}

func NewBuilder(snapshots SnapshotLoader, aliases registry.AliasTable) *Builder {
	return &Builder{snapshots: snapshots, aliases: aliases}
}

// Build loads the latest directory snapshot and constructs the session.
func (b *Builder) Build(ctx context.Context, req Request) (models.Session, error) {
	ctx, span := tracer.Start(ctx, "datarequest.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider", req.ProviderFriendly),
		attribute.Int("file_count", len(req.FilePaths)),
	)

	snap, err := b.snapshots.LoadSnapshot(ctx)
	if err != nil {
		err = &ConfigError{Op: "load directory snapshot", Err: err}
		span.SetStatus(codes.Error, err.Error())
		return models.Session{}, err
	}
	session, err := BuildSession(snap, b.aliases, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return models.Session{}, err
	}
	return session, nil
}

// BuildSession is the pure part of Build. Any missing relationship aborts
// the whole construction.
func BuildSession(snap store.Snapshot, aliases registry.AliasTable, req Request) (models.Session, error) {
	project, err := registry.FindProject(snap.Projects, ProjectName)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve project", Err: err}
	}

	registryProvider, err := registry.FindProviderByRawName(snap.Providers, RegistryProvider)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve identity registry", Err: err}
	}
	registryEndpoint, err := registry.FirstEndpoint(registryProvider)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve identity registry endpoint", Err: err}
	}

	dataProvider, err := aliases.ResolveProvider(req.ProviderFriendly, snap.Providers)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve data provider", Err: err}
	}
	dataEndpoint, err := registry.FirstEndpoint(dataProvider)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve data provider endpoint", Err: err}
	}

	serviceAccount, err := registry.ResolveServiceAccount(project, dataProvider)
	if err != nil {
		return models.Session{}, &ConfigError{Op: "resolve service account", Err: err}
	}
	participants := append([]string{serviceAccount}, registry.ResolveReviewers(project, snap.DataUsers)...)

	subject := SubjectIdentifier(req.UserIdentity)
	requesterTag := ConnectionTag(registryEndpoint, subject)
	providerTag := ConnectionTag(dataEndpoint, NoAccessPrincipal)

	profiles := []models.Profile{
		{
			AuthScheme: models.AuthSchemeNative,
			Endpoint:   registryEndpoint,
			Metadata:   map[string]any{"user": req.FormData},
			SecretType: models.SecretPassword,
			Tag:        requesterTag,
			Username:   subject,
		},
		{
			AuthScheme: models.AuthSchemeNative,
			Endpoint:   dataEndpoint,
			Metadata:   map[string]any{"user": map[string]any{}},
			SecretType: models.SecretPassword,
			Tag:        providerTag,
		},
	}
	tags := models.ProfileTags{Path: providerTag, User: requesterTag}

	events := make([]models.Event, 0, len(req.FilePaths))
	for _, p := range req.FilePaths {
		events = append(events, models.Event{
			Metadata:    []models.MetadataItem{},
			Operation:   models.OperationRequest,
			Path:        p,
			ProfileTags: tags,
		})
	}

	return models.Session{
		Access:       models.AccessShared,
		Events:       events,
		Lifetime:     DefaultLifetime,
		Participants: participants,
		Profiles:     profiles,
		Provenance:   []any{},
	}, nil
}

// SubjectIdentifier picks the requester's principal: the OIDC subject,
// else the display name with spaces replaced, else a placeholder.
func SubjectIdentifier(id UserIdentity) string {
	if id.Subject != "" {
		return id.Subject
	}
	if id.Name != "" {
		return strings.ReplaceAll(id.Name, " ", "_")
	}
	return AnonymousSubject
}

// ConnectionTag formats "<hostname>:<port>::<principal>::native".
func ConnectionTag(ep models.Endpoint, principal string) string {
	return fmt.Sprintf("%s:%s::%s::%s", ep.Hostname, strconv.Itoa(ep.Port), principal, models.AuthSchemeNative)
}
