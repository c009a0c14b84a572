// Package registry resolves relationships across the exchange service's
// provider, project and data-user directories.
//
// Every function is pure: it reads the directories it is given and never
// caches or mutates them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gutsdata/explorer_backend/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrAmbiguous = errors.New("ambiguous match")
)

// DefaultAliases maps raw provider names, as registered upstream, to the
// friendly names the explorer exposes.
var DefaultAliases = map[string]string{
	"erasmus-yoda": "eur",
	"test-yoda":    "aumc",
	"leiden-yoda":  "lei",
}

// AliasTable is a fixed raw name -> friendly name mapping.
type AliasTable map[string]string

// NewAliasTable copies m, falling back to DefaultAliases when m is empty.
func NewAliasTable(m map[string]string) AliasTable {
	if len(m) == 0 {
		m = DefaultAliases
	}
	t := make(AliasTable, len(m))
	for k, v := range m {
		t[k] = v
	}
	return t
}

// ResolveFriendlyName maps an internal provider name to its external name.
func (t AliasTable) ResolveFriendlyName(internal string) (string, error) {
	name, ok := t[internal]
	if !ok {
		return "", fmt.Errorf("friendly name for provider %q: %w", internal, ErrNotFound)
	}
	return name, nil
}

// InternalNames returns the raw names aliased to external, sorted.
func (t AliasTable) InternalNames(external string) []string {
	var out []string
	for raw, friendly := range t {
		if friendly == external {
			out = append(out, raw)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveProvider inverts the alias table and finds the single provider
// registered under the matching raw name.
func (t AliasTable) ResolveProvider(external string, providers []models.Provider) (models.Provider, error) {
	raw := t.InternalNames(external)
	if len(raw) == 0 {
		return models.Provider{}, fmt.Errorf("provider with friendly name %q: %w", external, ErrNotFound)
	}
	var found []models.Provider
	for _, p := range providers {
		for _, r := range raw {
			if p.FriendlyName == r {
				found = append(found, p)
				break
			}
		}
	}
	switch len(found) {
	case 0:
		return models.Provider{}, fmt.Errorf("provider with friendly name %q: %w", external, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.Provider{}, fmt.Errorf("provider with friendly name %q matched %d providers: %w", external, len(found), ErrAmbiguous)
	}
}

// FindProviderByRawName looks a provider up by its name as registered upstream.
func FindProviderByRawName(providers []models.Provider, raw string) (models.Provider, error) {
	for _, p := range providers {
		if p.FriendlyName == raw {
			return p, nil
		}
	}
	return models.Provider{}, fmt.Errorf("provider %q: %w", raw, ErrNotFound)
}

// FirstEndpoint returns the authoritative endpoint of p.
func FirstEndpoint(p models.Provider) (models.Endpoint, error) {
	if len(p.Endpoints) == 0 {
		return models.Endpoint{}, fmt.Errorf("endpoint of provider %q: %w", p.FriendlyName, ErrNotFound)
	}
	return p.Endpoints[0], nil
}

func FindProject(projects []models.Project, name string) (models.Project, error) {
	for _, p := range projects {
		if p.Name == name {
			return p, nil
		}
	}
	return models.Project{}, fmt.Errorf("project %q: %w", name, ErrNotFound)
}

// ResolveServiceAccount returns the account the project registered for the
// provider. service_accounts is keyed by account, so the map is inverted.
func ResolveServiceAccount(project models.Project, provider models.Provider) (string, error) {
	var accounts []string
	for account, providerID := range project.ServiceAccounts {
		if providerID == provider.ID {
			accounts = append(accounts, account)
		}
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("service account of provider %q in project %q: %w", provider.ID, project.Name, ErrNotFound)
	}
	// One account per provider is expected; keep the choice stable otherwise.
	sort.Strings(accounts)
	return accounts[0], nil
}

// ResolveReviewers returns the project members holding the reviewer role,
// in project-member order. No reviewers is not an error.
func ResolveReviewers(project models.Project, users []models.DataUser) []string {
	var reviewers []string
	for _, member := range project.Members {
		for _, u := range users {
			if u.ID == member && u.Role == models.RoleReviewer {
				reviewers = append(reviewers, u.ID)
			}
		}
	}
	return reviewers
}

// NormalizeProviders keeps the providers known to the alias table and
// reduces each to its friendly name and trimmed first hostname. Providers
// without endpoints are returned separately.
func (t AliasTable) NormalizeProviders(providers []models.Provider) (normalized []models.FriendlyProvider, skipped []models.Provider) {
	normalized = []models.FriendlyProvider{}
	for _, p := range providers {
		friendly, err := t.ResolveFriendlyName(p.FriendlyName)
		if err != nil {
			continue
		}
		ep, err := FirstEndpoint(p)
		if err != nil {
			skipped = append(skipped, p)
			continue
		}
		normalized = append(normalized, models.FriendlyProvider{
			ID:           p.ID,
			FriendlyName: friendly,
			Hostname:     strings.TrimSpace(ep.Hostname),
		})
	}
	return normalized, skipped
}

// ProviderByHostname finds the normalized provider serving hostname.
func ProviderByHostname(providers []models.FriendlyProvider, hostname string) (models.FriendlyProvider, error) {
	hostname = strings.TrimSpace(hostname)
	for _, p := range providers {
		if p.Hostname == hostname {
			return p, nil
		}
	}
	return models.FriendlyProvider{}, fmt.Errorf("provider for hostname %q: %w", hostname, ErrNotFound)
}
