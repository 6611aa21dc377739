// Package registry is the single source of truth for which platforms
// exist, how to reach them, and whether they are usable right now.
package registry

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/flashfusion/relay/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Registry holds the static platform table. It is built once at startup
// from injected configuration and is read-only afterwards, so it is safe
// for concurrent use without locking.
type Registry struct {
	platforms map[string]domain.Platform
	order     []string
}

// PlatformSummary is the public listing shape for an enabled platform.
type PlatformSummary struct {
	Name     string          `json:"name"`
	Category domain.Category `json:"category"`
}

// PlatformStatus is the diagnostic snapshot for one platform.
type PlatformStatus struct {
	DisplayName string          `json:"display_name"`
	Enabled     bool            `json:"enabled"`
	Category    domain.Category `json:"category"`
	HasWebhook  bool            `json:"has_webhook"`
	HasAPI      bool            `json:"has_api"`
}

var titleCaser = cases.Title(language.English)

// New builds a registry from platform descriptors. Enabled is derived
// from credential presence; a platform with missing credentials is simply
// disabled, never an error.
func New(platforms []domain.Platform) *Registry {
	r := &Registry{
		platforms: make(map[string]domain.Platform, len(platforms)),
	}

	for _, p := range platforms {
		p.Name = strings.ToLower(p.Name)
		p.Enabled = p.Auth.HasCredentials()
		if p.DisplayName == "" {
			p.DisplayName = titleCaser.String(p.Name)
		}
		if _, dup := r.platforms[p.Name]; dup {
			slog.Warn("duplicate platform descriptor ignored", "platform", p.Name)
			continue
		}
		r.platforms[p.Name] = p
		r.order = append(r.order, p.Name)

		if !p.Enabled {
			slog.Debug("platform disabled, credentials missing", "platform", p.Name)
		}
	}
	sort.Strings(r.order)

	return r
}

// Get returns a platform descriptor by name.
func (r *Registry) Get(name string) (domain.Platform, bool) {
	p, ok := r.platforms[strings.ToLower(name)]
	return p, ok
}

// EnabledPlatforms returns the enabled subset of the table in name order.
func (r *Registry) EnabledPlatforms() []PlatformSummary {
	out := make([]PlatformSummary, 0, len(r.order))
	for _, name := range r.order {
		p := r.platforms[name]
		if !p.Enabled {
			continue
		}
		out = append(out, PlatformSummary{Name: p.Name, Category: p.Category})
	}
	return out
}

// Status returns the diagnostic snapshot for the whole table.
func (r *Registry) Status() map[string]PlatformStatus {
	out := make(map[string]PlatformStatus, len(r.platforms))
	for name, p := range r.platforms {
		out[name] = PlatformStatus{
			DisplayName: p.DisplayName,
			Enabled:     p.Enabled,
			Category:    p.Category,
			HasWebhook:  p.HasWebhook(),
			HasAPI:      p.HasAPI(),
		}
	}
	return out
}
