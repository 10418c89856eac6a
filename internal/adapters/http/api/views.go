package api

import (
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
)

// projectView annotates a project with the owner's solo verdict.
type projectView struct {
	model.Project
	BudgetDisplay string       `json:"budget_display"`
	Shortfall     model.Amount `json:"shortfall"`
	SoloBiddable  bool         `json:"solo_biddable"`
}

func newProjectView(p model.Project, owner model.Owner) projectView {
	shortfall := team.EvaluateShortfall(p, owner.Capacity)
	return projectView{
		Project:       p,
		BudgetDisplay: p.Budget.String(),
		Shortfall:     shortfall,
		SoloBiddable:  shortfall <= 0,
	}
}

type projectsResponse struct {
	Owner    model.Owner   `json:"owner"`
	Count    int           `json:"count"`
	Projects []projectView `json:"projects"`
}

type partnersResponse struct {
	Origin      directory.Origin     `json:"origin"`
	FetchedAt   time.Time            `json:"fetched_at"`
	Count       int                  `json:"count"`
	Partners    []model.Partner      `json:"partners"`
	Quarantined []directory.RowError `json:"quarantined,omitempty"`
}

// sessionView is the session plus the derived figures the UI renders.
type sessionView struct {
	ID        string           `json:"id"`
	Phase     session.Phase    `json:"phase"`
	Owner     model.Owner      `json:"owner"`
	Project   *projectView     `json:"project,omitempty"`
	Team      team.State       `json:"team"`
	Shortfall model.Amount     `json:"shortfall"`
	Remaining model.Amount     `json:"remaining"`
	Biddable  bool             `json:"biddable"`
	Progress  float64          `json:"progress"`
	Result    *model.BidResult `json:"result,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newSessionView(s *session.Session) sessionView {
	v := sessionView{
		ID:        s.ID,
		Phase:     s.Phase,
		Owner:     s.Owner,
		Team:      s.Team,
		Shortfall: s.Shortfall(),
		Remaining: s.Remaining(),
		Biddable:  s.Biddable(),
		Progress:  s.Progress(),
		Result:    s.Result,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Project != nil {
		pv := newProjectView(*s.Project, s.Owner)
		v.Project = &pv
	}
	return v
}

type offerResponse struct {
	Added   bool        `json:"added"`
	Session sessionView `json:"session"`
}
