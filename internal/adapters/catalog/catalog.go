// Package catalog provides the list of procurement projects the owner can
// browse. Projects are read-only here.
package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// Catalog lists projects.
type Catalog interface {
	// Projects returns every project in catalog order.
	Projects(ctx context.Context) ([]model.Project, error)
	// Project returns one project. Returns ErrNotFound for unknown IDs.
	Project(ctx context.Context, id int) (model.Project, error)
}

// Query narrows a listing. Zero values match everything.
type Query struct {
	// Area matches the start of the project location, e.g. "柏市".
	Area string
	// Tags keeps projects requiring at least one of the tags.
	Tags []string
}

// Match reports whether p satisfies the query.
func (q Query) Match(p model.Project) bool {
	if q.Area != "" && !strings.HasPrefix(p.Location, q.Area) {
		return false
	}
	if len(q.Tags) == 0 {
		return true
	}
	return slices.ContainsFunc(q.Tags, p.Requires)
}

// Filter returns the projects matching q, keeping order.
func Filter(projects []model.Project, q Query) []model.Project {
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if q.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Static is an in-memory catalog.
type Static struct {
	projects []model.Project
}

// NewStatic validates projects and returns a catalog over them. IDs must be
// unique.
func NewStatic(projects []model.Project) (*Static, error) {
	if err := Validate(validator.New(), projects); err != nil {
		return nil, err
	}
	return &Static{projects: cloneAll(projects)}, nil
}

// Projects implements Catalog.
func (s *Static) Projects(context.Context) ([]model.Project, error) {
	return cloneAll(s.projects), nil
}

// Project implements Catalog.
func (s *Static) Project(_ context.Context, id int) (model.Project, error) {
	for _, p := range s.projects {
		if p.ID == id {
			return clone(p), nil
		}
	}
	return model.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
}

// Validate checks every project and rejects duplicate IDs.
func Validate(v *validator.Validate, projects []model.Project) error {
	seen := make(map[int]struct{}, len(projects))
	for i, p := range projects {
		if err := v.Struct(p); err != nil {
			return fmt.Errorf("%w: entry %d (id %d): %v", ErrInvalid, i, p.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalid, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

func clone(p model.Project) model.Project {
	p.RequiredTags = slices.Clone(p.RequiredTags)
	return p
}

func cloneAll(ps []model.Project) []model.Project {
	out := make([]model.Project, len(ps))
	for i, p := range ps {
		out[i] = clone(p)
	}
	return out
}

// SampleProjects is the built-in catalog.
func SampleProjects() []model.Project {
	return []model.Project{
		{
			ID:           101,
			Name:         "市道123号線 舗装改修工事",
			Location:     "柏市・北エリア",
			Budget:       50_000_000,
			Image:        "🚧",
			RequiredTags: []string{"土木", "舗装", "警備"},
			Description:  "生活道路の老朽化に伴う全面舗装。工期3ヶ月。",
		},
		{
			ID:           102,
			Name:         "柏の葉公園 公衆トイレ新設",
			Location:     "柏市・西エリア",
			Budget:       80_000_000,
			Image:        "🏗️",
			RequiredTags: []string{"建築", "水道", "電気"},
			Description:  "バリアフリー対応の公衆トイレ設置。",
		},
		{
			ID:           103,
			Name:         "小学校 通学路ガードレール設置",
			Location:     "柏市・中央",
			Budget:       15_000_000,
			Image:        "🛡️",
			RequiredTags: []string{"土木", "資材"},
			Description:  "児童の安全確保のための緊急工事。",
		},
	}
}
