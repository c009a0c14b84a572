// Package ingest pulls shared metadata out of exchange sessions and merges it
// into the explorer catalogs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gutsdata/explorer_backend/config"
	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/registry"
	"github.com/gutsdata/explorer_backend/store"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/gutsdata/explorer_backend/ingest")

const (
	AuthoritativeProvider = "eur"
	metadataKindJSON      = "json"
)

// Source is the exchange service as seen by the pipeline.
type Source interface {
	GetProviders(ctx context.Context) ([]models.Provider, error)
	GetProjects(ctx context.Context) ([]models.Project, error)
	GetDataUsers(ctx context.Context) ([]models.DataUser, error)
	GetSessions(ctx context.Context) ([]models.Session, error)
}

type Options struct {
	Aliases               registry.AliasTable
	IgnoreSessionIDs      []string
	AuthoritativeProvider string
	Hooks                 []SessionHook
	Logger                *logrus.Logger
	Now                   func() time.Time
}

// OptionsFromEnv reads the alias override and exclusion list from the environment.
func OptionsFromEnv() Options {
	return Options{
		Aliases:          registry.NewAliasTable(config.EnvMap("PROVIDER_ALIASES")),
		IgnoreSessionIDs: config.EnvList("INGEST_IGNORE_SESSION_IDS"),
		Hooks:            []SessionHook{MultiProviderHook},
	}
}

type Pipeline struct {
	source Source
	repo   *store.Repository
	opts   Options
}

func New(source Source, repo *store.Repository, opts Options) *Pipeline {
	if opts.Aliases == nil {
		opts.Aliases = registry.NewAliasTable(nil)
	}
	if opts.AuthoritativeProvider == "" {
		opts.AuthoritativeProvider = AuthoritativeProvider
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{source: source, repo: repo, opts: opts}
}

type AnomalyReason string

const (
	AnomalyUnresolvedProvenance AnomalyReason = "unresolved_provenance"
	AnomalyMultiProvider        AnomalyReason = "multi_provider"
)

// Anomaly is a data-integrity problem found in a session. Sessions with an
// unresolved provenance are skipped and retried on the next run.
type Anomaly struct {
	SessionID string
	Reason    AnomalyReason
	Detail    string
	Skipped   bool
}

type Result struct {
	RunID      string
	NothingNew bool
	Candidates int
	Ingested   []models.LedgerEntry
	Added      map[CatalogKind]int
	Providers  []string
	Anomalies  []Anomaly
	Warnings   []string
	Persisted  []string
}

// catalogs holds the running accumulators for one run.
type catalogs struct {
	records map[CatalogKind][]models.Record
	touched map[CatalogKind]bool
}

// contribution is what one session would add to the catalogs.
type contribution struct {
	session   models.Session
	records   map[CatalogKind][]models.Record
	kinds     []CatalogKind
	provider  string
	providers []string
}

func (c *contribution) add(kind CatalogKind, records []models.Record, provider string) {
	c.records[kind] = kind.Merge(c.records[kind], records, provider)
	for _, k := range c.kinds {
		if k == kind {
			return
		}
	}
	c.kinds = append(c.kinds, kind)
}

func (c *contribution) seen(provider string) {
	c.provider = provider
	for _, p := range c.providers {
		if p == provider {
			return
		}
	}
	c.providers = append(c.providers, provider)
}

// Run executes one ingestion pass. Directory and session fetch failures and
// persistence failures are fatal; per-session data problems are reported
// as anomalies.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	res := Result{RunID: uuid.NewString(), Added: map[CatalogKind]int{}}
	ctx, span := tracer.Start(ctx, "ingest.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", res.RunID))

	log := p.opts.Logger.WithField("run_id", res.RunID)

	res, err := p.run(ctx, res, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(p.opts.Logger, "ingest/pipeline.go", "Run", "ingestion run failed", res.RunID, err)
		return res, err
	}
	span.SetAttributes(
		attribute.Int("candidates", res.Candidates),
		attribute.Int("ingested", len(res.Ingested)),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, res Result, log *logrus.Entry) (Result, error) {
	dataUsers, err := p.source.GetDataUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch data users: %w", err)
	}
	projects, err := p.source.GetProjects(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch projects: %w", err)
	}
	providers, err := p.source.GetProviders(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch providers: %w", err)
	}

	normalized, skipped := p.opts.Aliases.NormalizeProviders(providers)
	for _, sp := range skipped {
		warn(&res, log.WithField("provider", sp.FriendlyName), fmt.Sprintf("provider %q has no endpoints and was skipped", sp.FriendlyName))
	}

	docs, err := snapshotDocuments(normalized, providers, dataUsers, projects)
	if err != nil {
		return res, err
	}

	ledger, err := p.repo.LoadLedger(ctx)
	if err != nil {
		return res, err
	}

	sessions, err := p.source.GetSessions(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch sessions: %w", err)
	}
	candidates := p.filterSessions(sessions, ledger)
	res.Candidates = len(candidates)

	if len(candidates) == 0 {
		res.NothingNew = true
		log.Info("no new sessions to process")
		if err := p.persist(ctx, &res, docs); err != nil {
			return res, err
		}
		return res, nil
	}
	log.WithField("candidates", len(candidates)).Info("processing new sessions")

	acc, err := p.loadCatalogs(ctx)
	if err != nil {
		return res, err
	}

	for _, s := range candidates {
		contrib, anomaly := p.extract(s, normalized, log)
		if anomaly != nil {
			res.Anomalies = append(res.Anomalies, *anomaly)
			log.WithFields(logrus.Fields{
				"session_id": s.ID,
				"reason":     anomaly.Reason,
			}).Warn("session skipped: " + anomaly.Detail)
			continue
		}
		for _, hook := range p.opts.Hooks {
			if a := hook(contrib.session, contrib.providers); a != nil {
				res.Anomalies = append(res.Anomalies, *a)
				log.WithFields(logrus.Fields{
					"session_id": s.ID,
					"reason":     a.Reason,
				}).Warn(a.Detail)
			}
		}
		if len(contrib.kinds) == 0 {
			continue
		}

		entry := models.LedgerEntry{
			SessionID: s.ID,
			CreateTs:  s.CreateTs,
			Updated:   models.FormatLedgerTime(p.opts.Now()),
			Provider:  contrib.provider,
		}
		for _, kind := range contrib.kinds {
			acc.commit(kind, contrib.records[kind])
			res.Added[kind] += len(contrib.records[kind])
			entry.MetadataShared = append(entry.MetadataShared, kind.String())
		}
		ledger = append(ledger, entry)
		res.Ingested = append(res.Ingested, entry)
		res.Providers = appendUnique(res.Providers, contrib.providers...)

		log.WithFields(logrus.Fields{
			"session_id": s.ID,
			"provider":   contrib.provider,
			"kinds":      entry.MetadataShared,
		}).Info("session ingested")
	}

	for _, kind := range allKinds {
		if !acc.touched[kind] {
			continue
		}
		doc, err := store.NewDocument(kind.Dataset(), acc.records[kind])
		if err != nil {
			return res, err
		}
		docs = append(docs, doc)
	}
	if len(res.Ingested) > 0 {
		doc, err := store.NewDocument(store.DatasetLedger, ledger)
		if err != nil {
			return res, err
		}
		docs = append(docs, doc)
	}

	switch {
	case len(res.Ingested) == 0:
		warn(&res, log, "no metadata was added to any catalog")
	case len(res.Providers) < 2:
		warn(&res, log, fmt.Sprintf("metadata came from fewer than two providers: %v", res.Providers))
	}

	if err := p.persist(ctx, &res, docs); err != nil {
		return res, err
	}
	return res, nil
}

func warn(res *Result, log *logrus.Entry, msg string) {
	log.Warn(msg)
	res.Warnings = append(res.Warnings, msg)
}

func (p *Pipeline) persist(ctx context.Context, res *Result, docs []store.Document) error {
	if err := p.repo.Save(ctx, docs...); err != nil {
		return fmt.Errorf("persist datasets: %w", err)
	}
	for _, d := range docs {
		res.Persisted = append(res.Persisted, d.Name)
	}
	trace.SpanFromContext(ctx).AddEvent("persisted", trace.WithAttributes(
		attribute.StringSlice("datasets", res.Persisted),
	))
	return nil
}

func snapshotDocuments(normalized []models.FriendlyProvider, providers []models.Provider, dataUsers []models.DataUser, projects []models.Project) ([]store.Document, error) {
	sources := []struct {
		name string
		v    any
	}{
		{store.DatasetFriendlyProviders, normalized},
		{store.DatasetProviders, providers},
		{store.DatasetDataUsers, dataUsers},
		{store.DatasetProjects, projects},
	}
	docs := make([]store.Document, 0, len(sources))
	for _, s := range sources {
		doc, err := store.NewDocument(s.name, s.v)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (p *Pipeline) filterSessions(sessions []models.Session, ledger models.Ledger) []models.Session {
	processed := ledger.IDs()
	for _, id := range p.opts.IgnoreSessionIDs {
		processed[id] = true
	}
	var out []models.Session
	for _, s := range sessions {
		if processed[s.ID] || s.Status != models.SessionStatusActive || len(s.Events) == 0 {
			continue
		}
		// upstream may list a session twice; only the first copy is processed
		processed[s.ID] = true
		out = append(out, s)
	}
	return out
}

// loadCatalogs seeds the accumulators with what earlier runs persisted.
// The overview is replaced, never extended, so it starts empty.
func (p *Pipeline) loadCatalogs(ctx context.Context) (*catalogs, error) {
	acc := &catalogs{
		records: map[CatalogKind][]models.Record{KindOverview: {}},
		touched: map[CatalogKind]bool{},
	}
	for _, kind := range []CatalogKind{KindFileLevel, KindSubjectLevel} {
		records, err := p.repo.LoadCatalog(ctx, kind.Dataset())
		if err != nil {
			return nil, err
		}
		acc.records[kind] = records
	}
	return acc, nil
}

func (c *catalogs) commit(kind CatalogKind, records []models.Record) {
	if kind == KindOverview {
		c.records[kind] = records
	} else {
		c.records[kind] = append(c.records[kind], records...)
	}
	c.touched[kind] = true
}

// extract collects a session's accepted metadata. It returns an anomaly
// instead when an accepted item cannot be attributed to a provider.
func (p *Pipeline) extract(s models.Session, providers []models.FriendlyProvider, log *logrus.Entry) (*contribution, *Anomaly) {
	contrib := &contribution{session: s, records: map[CatalogKind][]models.Record{}}
	for _, e := range s.Events {
		if e.Operation != models.OperationShare || len(e.Metadata) == 0 {
			continue
		}
		for _, item := range e.Metadata {
			kind, records, ok := acceptItem(item)
			if !ok {
				log.WithFields(logrus.Fields{
					"session_id": s.ID,
					"type_name":  item.TypeName,
				}).Debug("metadata item ignored")
				continue
			}
			provider, err := resolveProvenance(s, e, providers)
			if err != nil {
				return nil, &Anomaly{
					SessionID: s.ID,
					Reason:    AnomalyUnresolvedProvenance,
					Detail:    err.Error(),
					Skipped:   true,
				}
			}
			contrib.seen(provider.FriendlyName)
			if !kind.Accepts(provider.FriendlyName, p.opts.AuthoritativeProvider) {
				log.WithFields(logrus.Fields{
					"session_id": s.ID,
					"provider":   provider.FriendlyName,
					"type_name":  item.TypeName,
				}).Info("metadata rejected for provider")
				continue
			}
			contrib.add(kind, records, provider.FriendlyName)
		}
	}
	return contrib, nil
}

// acceptItem reports the catalog an item belongs to along with its records.
func acceptItem(item models.MetadataItem) (CatalogKind, []models.Record, bool) {
	if item.Kind != metadataKindJSON {
		return 0, nil, false
	}
	kind, ok := KindForTypeName(item.TypeName)
	if !ok {
		return 0, nil, false
	}
	records, err := item.Records()
	if err != nil || len(records) == 0 {
		return 0, nil, false
	}
	return kind, records, true
}

var errNoProfile = errors.New("no profile for tag")

// resolveProvenance attributes an event to the provider whose endpoint the
// event's path profile points at.
func resolveProvenance(s models.Session, e models.Event, providers []models.FriendlyProvider) (models.FriendlyProvider, error) {
	profile, ok := s.ProfileByTag(e.ProfileTags.Path)
	if !ok {
		return models.FriendlyProvider{}, fmt.Errorf("%w %q", errNoProfile, e.ProfileTags.Path)
	}
	return registry.ProviderByHostname(providers, profile.Endpoint.Hostname)
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, l := range list {
			if l == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
