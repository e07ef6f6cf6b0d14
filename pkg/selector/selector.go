// Package selector implements the pure page-selection function (component
// C3): given every page a crawl discovered, it picks the representative
// sample that will actually be scanned.
package selector

import (
	"sort"

	"github.com/pyneda/sukyan/pkg/model"
)

// Config bounds the sample the selector builds.
type Config struct {
	MaxPages     int
	PerTypeQuota int
}

// DefaultConfig returns the built-in selection bounds.
func DefaultConfig() Config {
	return Config{MaxPages: 15, PerTypeQuota: 3}
}

// Select picks a representative sample of discovered pages for policy in
// four passes, each filling from whatever priority-ordered pages (equal
// priorities ordered by URL) the prior pass left unclaimed:
//
//  1. The homepage, if discovered, is always included first.
//  2. One page of each page-type not yet represented, highest priority
//     first, so a type with only low-priority pages still gets a seat
//     instead of being crowded out by a type with many high-priority ones.
//  3. Remaining budget filled in priority order, capped at PerTypeQuota per
//     PageType so a single template family (e.g. a blog's article pages)
//     cannot consume the whole sample.
//  4. Any still-remaining budget filled ignoring the per-type quota, so a
//     single-template site still yields a full-size sample.
//
// Select never mutates discovered.
func Select(discovered []model.DiscoveredPage, policy model.CompliancePolicy, cfg Config) model.PageSelection {
	if cfg.MaxPages <= 0 {
		cfg = DefaultConfig()
	}

	ordered := make([]model.DiscoveredPage, len(discovered))
	copy(ordered, discovered)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].URL < ordered[j].URL
	})

	selected := make([]model.DiscoveredPage, 0, cfg.MaxPages)
	perType := make(map[model.PageType]int)
	seen := make(map[string]struct{})

	take := func(p model.DiscoveredPage) {
		selected = append(selected, p)
		perType[p.Type]++
		seen[p.URL] = struct{}{}
	}

	// Pass 1: homepage first.
	for _, p := range ordered {
		if p.Type != model.PageTypeHomepage {
			continue
		}
		take(p)
		break
	}

	// Pass 2: one highest-priority page per not-yet-represented page-type.
	// ordered is already priority-sorted, so the first page of a type
	// encountered here is that type's highest-priority page.
	for _, p := range ordered {
		if len(selected) >= cfg.MaxPages {
			break
		}
		if _, ok := seen[p.URL]; ok {
			continue
		}
		if perType[p.Type] > 0 {
			continue
		}
		take(p)
	}

	// Pass 3: fill remaining budget respecting PerTypeQuota.
	for _, p := range ordered {
		if len(selected) >= cfg.MaxPages {
			break
		}
		if _, ok := seen[p.URL]; ok {
			continue
		}
		if cfg.PerTypeQuota > 0 && perType[p.Type] >= cfg.PerTypeQuota {
			continue
		}
		take(p)
	}

	// Pass 4: fill any remaining budget ignoring the per-type quota.
	for _, p := range ordered {
		if len(selected) >= cfg.MaxPages {
			break
		}
		if _, ok := seen[p.URL]; ok {
			continue
		}
		take(p)
	}

	return model.PageSelection{Pages: selected, Policy: policy}
}
