// Package matching selects directory partners that can fill a project's
// required trades and flags the ones located in the project's region.
package matching

import (
	"slices"
	"strings"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// DefaultRegionSeparator splits "CityX・North" into the city and the area.
const DefaultRegionSeparator = "・"

// Option applies a configuration option to the Matcher.
type Option func(*Matcher)

// WithLocalFirst moves local candidates ahead of non-local ones. The sort is
// stable, so directory order is kept within each group.
func WithLocalFirst(enabled bool) Option {
	return func(m *Matcher) {
		m.localFirst = enabled
	}
}

// WithRegionSeparator overrides the separator between region and area.
func WithRegionSeparator(sep string) Option {
	return func(m *Matcher) {
		if sep != "" {
			m.separator = sep
		}
	}
}

// Candidate is an eligible partner plus its advisory locality flag.
type Candidate struct {
	Partner model.Partner `json:"partner"`
	Local   bool          `json:"local"`
}

// Matcher filters partners by trade tag.
type Matcher struct {
	separator  string
	localFirst bool
}

// New creates a Matcher. By default candidates keep directory order.
func New(opts ...Option) *Matcher {
	m := &Matcher{separator: DefaultRegionSeparator}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LocalFirst reports whether local candidates are ordered first.
func (m *Matcher) LocalFirst() bool {
	return m.localFirst
}

// Region returns the part of a location before the separator, or the whole
// trimmed location when there is none.
func (m *Matcher) Region(location string) string {
	region, _, _ := strings.Cut(location, m.separator)
	return strings.TrimSpace(region)
}

// IsLocal reports whether the partner sits in the project's region. An empty
// region never matches.
func (m *Matcher) IsLocal(project model.Project, partner model.Partner) bool {
	region := m.Region(project.Location)
	return region != "" && strings.Contains(partner.Location, region)
}

// Eligible reports whether the partner's trade is required by the project.
func (m *Matcher) Eligible(project model.Project, partner model.Partner) bool {
	return project.Requires(partner.TradeType)
}

// Match returns eligible partners not rejected by skip. The locality flag
// never removes a candidate.
func (m *Matcher) Match(project model.Project, partners []model.Partner, skip func(model.Partner) bool) []Candidate {
	out := make([]Candidate, 0, len(partners))
	for _, p := range partners {
		if !m.Eligible(project, p) {
			continue
		}
		if skip != nil && skip(p) {
			continue
		}
		out = append(out, Candidate{Partner: p, Local: m.IsLocal(project, p)})
	}
	if m.localFirst {
		slices.SortStableFunc(out, func(a, b Candidate) int {
			switch {
			case a.Local == b.Local:
				return 0
			case a.Local:
				return -1
			default:
				return 1
			}
		})
	}
	return out
}
