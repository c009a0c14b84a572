package datarequest

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/gutsdata/explorer_backend/models"
	"github.com/gutsdata/explorer_backend/registry"
	"github.com/gutsdata/explorer_backend/store"
)

func testSnapshot() store.Snapshot {
	return store.Snapshot{
		Providers: []models.Provider{
			{ID: "p-sram", FriendlyName: "sram", Endpoints: []models.Endpoint{{Hostname: "sram.host", Port: 443}}},
			{ID: "p-eur", FriendlyName: "erasmus-yoda", Endpoints: []models.Endpoint{{Hostname: "eur.host", Port: 1247}}},
			{ID: "p-lei", FriendlyName: "leiden-yoda"},
		},
		Projects: []models.Project{
			{Name: "Other", Members: []string{"x"}},
			{
				Name:            ProjectName,
				Members:         []string{"rev-2", "contrib", "rev-1"},
				ServiceAccounts: map[string]string{"svc-eur": "p-eur"},
			},
		},
		DataUsers: []models.DataUser{
			{ID: "rev-1", Role: models.RoleReviewer},
			{ID: "rev-2", Role: models.RoleReviewer},
			{ID: "contrib", Role: "contributor"},
		},
	}
}

func testRequest() Request {
	return Request{
		ProviderFriendly: "eur",
		FilePaths:        []string{"/cohort/a.csv", "/cohort/b.csv"},
		UserIdentity:     UserIdentity{Subject: "abc@sram"},
		FormData:         map[string]any{"justification": "study"},
	}
}

func TestBuildSession_Participants(t *testing.T) {
	s, err := BuildSession(testSnapshot(), registry.NewAliasTable(nil), testRequest())
	if err != nil {
		t.Fatalf("BuildSession error: %v", err)
	}
	want := []string{"svc-eur", "rev-2", "rev-1"}
	if !reflect.DeepEqual(s.Participants, want) {
		t.Fatalf("participants = %v, want %v", s.Participants, want)
	}
}

func TestBuildSession_OneRequestEventPerPath(t *testing.T) {
	s, err := BuildSession(testSnapshot(), registry.NewAliasTable(nil), testRequest())
	if err != nil {
		t.Fatalf("BuildSession error: %v", err)
	}
	if len(s.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(s.Events))
	}
	for i, e := range s.Events {
		if e.Operation != models.OperationRequest {
			t.Fatalf("event %d operation = %q", i, e.Operation)
		}
		if e.ProfileTags != s.Events[0].ProfileTags {
			t.Fatalf("event %d profile tags differ", i)
		}
		if len(e.Metadata) != 0 {
			t.Fatalf("event %d carries metadata", i)
		}
	}
	if s.Events[1].Path != "/cohort/b.csv" {
		t.Fatalf("unexpected path %q", s.Events[1].Path)
	}

	tags := s.Events[0].ProfileTags
	if tags.User != "sram.host:443::abc@sram::native" {
		t.Fatalf("requester tag = %q", tags.User)
	}
	if tags.Path != "eur.host:1247::noaccess::native" {
		t.Fatalf("provider tag = %q", tags.Path)
	}
}

func TestBuildSession_Descriptor(t *testing.T) {
	req := testRequest()
	s, err := BuildSession(testSnapshot(), registry.NewAliasTable(nil), req)
	if err != nil {
		t.Fatalf("BuildSession error: %v", err)
	}
	if s.Access != "shared" || s.Lifetime != 604800 {
		t.Fatalf("unexpected access/lifetime %q/%d", s.Access, s.Lifetime)
	}
	if s.Provenance == nil || len(s.Provenance) != 0 {
		t.Fatalf("provenance must be an empty list, got %v", s.Provenance)
	}
	if len(s.Profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(s.Profiles))
	}
	requester, ok := s.ProfileByTag(s.Events[0].ProfileTags.User)
	if !ok {
		t.Fatalf("requester profile not found")
	}
	if !reflect.DeepEqual(requester.Metadata["user"], req.FormData) {
		t.Fatalf("form data not passed through: %v", requester.Metadata)
	}
	if requester.Username != "abc@sram" || requester.Endpoint.Hostname != "sram.host" {
		t.Fatalf("unexpected requester profile %+v", requester)
	}
	provider, ok := s.ProfileByTag(s.Events[0].ProfileTags.Path)
	if !ok {
		t.Fatalf("provider profile not found")
	}
	if got, _ := provider.Metadata["user"].(map[string]any); got == nil || len(got) != 0 {
		t.Fatalf("provider profile must carry empty metadata, got %v", provider.Metadata)
	}

	body, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var wire map[string]any
	_ = json.Unmarshal(body, &wire)
	if _, ok := wire["_id"]; ok {
		t.Fatalf("new session must not carry an id")
	}
	if _, ok := wire["provenance"].([]any); !ok {
		t.Fatalf("provenance must serialize as a list: %s", body)
	}
}

func TestBuildSession_Deterministic(t *testing.T) {
	a, _ := BuildSession(testSnapshot(), registry.NewAliasTable(nil), testRequest())
	b, _ := BuildSession(testSnapshot(), registry.NewAliasTable(nil), testRequest())
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Fatalf("identical inputs produced different sessions")
	}
}

func TestSubjectIdentifier(t *testing.T) {
	cases := []struct {
		in   UserIdentity
		want string
	}{
		{UserIdentity{Subject: "sub-1", Name: "Jane Doe"}, "sub-1"},
		{UserIdentity{Name: "Jane van Doe"}, "Jane_van_Doe"},
		{UserIdentity{}, "noName"},
	}
	for _, tc := range cases {
		if got := SubjectIdentifier(tc.in); got != tc.want {
			t.Fatalf("SubjectIdentifier(%+v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestConnectionTag(t *testing.T) {
	ep := models.Endpoint{Hostname: "h", Port: 8080}
	if got := ConnectionTag(ep, "me"); got != "h:8080::me::native" {
		t.Fatalf("ConnectionTag = %q", got)
	}
	if ConnectionTag(ep, "me") != ConnectionTag(ep, "me") {
		t.Fatalf("ConnectionTag is not stable")
	}
}

func TestBuildSession_ConfigErrors(t *testing.T) {
	aliases := registry.NewAliasTable(nil)
	cases := []struct {
		name   string
		mutate func(*store.Snapshot, *Request)
	}{
		{"missing project", func(s *store.Snapshot, _ *Request) { s.Projects = s.Projects[:1] }},
		{"missing registry provider", func(s *store.Snapshot, _ *Request) { s.Providers = s.Providers[1:] }},
		{"registry without endpoint", func(s *store.Snapshot, _ *Request) { s.Providers[0].Endpoints = nil }},
		{"unknown provider alias", func(_ *store.Snapshot, r *Request) { r.ProviderFriendly = "vu" }},
		{"provider without endpoint", func(_ *store.Snapshot, r *Request) { r.ProviderFriendly = "lei" }},
		{"no service account", func(s *store.Snapshot, _ *Request) { s.Projects[1].ServiceAccounts = map[string]string{} }},
	}
	for _, tc := range cases {
		snap := testSnapshot()
		req := testRequest()
		tc.mutate(&snap, &req)
		_, err := BuildSession(snap, aliases, req)
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected *ConfigError, got %v", tc.name, err)
		}
		if !errors.Is(err, registry.ErrNotFound) {
			t.Fatalf("%s: expected wrapped ErrNotFound, got %v", tc.name, err)
		}
	}
}

type fakeSnapshots struct {
	snap store.Snapshot
	err  error
}

func (f fakeSnapshots) LoadSnapshot(context.Context) (store.Snapshot, error) {
	return f.snap, f.err
}

func TestBuilder_SnapshotUnavailable(t *testing.T) {
	b := NewBuilder(fakeSnapshots{err: store.ErrNotFound}, registry.NewAliasTable(nil))
	_, err := b.Build(context.Background(), testRequest())
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ConfigError wrapping ErrNotFound, got %v", err)
	}
}
