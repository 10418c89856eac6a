// Package session holds the per-user team building state machine. A Session
// is a plain value loaded from a store by ID; commands return errors without
// touching the session when they are refused.
package session

import (
	"fmt"
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/matching"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
)

// Phase is the session's position in the browse, build, confirm flow.
type Phase string

// Session phases.
const (
	PhaseBrowsing     Phase = "browsing"
	PhaseTeamBuilding Phase = "team_building"
	PhaseConfirmed    Phase = "confirmed"
)

// Session is one owner's navigation and team state.
type Session struct {
	ID        string           `json:"id"`
	Phase     Phase            `json:"phase"`
	Owner     model.Owner      `json:"owner"`
	Project   *model.Project   `json:"project,omitempty"`
	Team      team.State       `json:"team"`
	Result    *model.BidResult `json:"result,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// New starts a session in the browsing phase.
func New(id string, owner model.Owner, now time.Time) *Session {
	return &Session{
		ID:        id,
		Phase:     PhaseBrowsing,
		Owner:     owner,
		Team:      team.New(owner.Capacity),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SelectProject makes p the active project and resets the team to the owner
// alone. Selecting again while building discards the previous team.
func (s *Session) SelectProject(p model.Project, now time.Time) error {
	if s.Phase == PhaseConfirmed {
		return fmt.Errorf("select project %d: %w (phase %s)", p.ID, ErrInvalidState, s.Phase)
	}
	s.Project = &p
	s.Team = team.New(s.Owner.Capacity)
	s.Result = nil
	s.Phase = PhaseTeamBuilding
	s.UpdatedAt = now
	return nil
}

// Back returns to the catalog and drops the team.
func (s *Session) Back(now time.Time) {
	s.Project = nil
	s.Team = team.New(s.Owner.Capacity)
	s.Result = nil
	s.Phase = PhaseBrowsing
	s.UpdatedAt = now
}

// Shortfall is the budget the owner cannot cover alone, zero when browsing.
func (s *Session) Shortfall() model.Amount {
	if s.Project == nil {
		return 0
	}
	return team.EvaluateShortfall(*s.Project, s.Owner.Capacity)
}

// Remaining is the budget the current team still lacks, never negative.
func (s *Session) Remaining() model.Amount {
	if s.Project == nil {
		return 0
	}
	return max(0, s.Project.Budget-s.Team.TotalCapacity())
}

// Biddable reports whether the team covers the active project.
func (s *Session) Biddable() bool {
	return s.Project != nil && team.IsBiddable(s.Team, *s.Project)
}

// Progress is the team's coverage of the active project budget.
func (s *Session) Progress() float64 {
	if s.Project == nil {
		return 0
	}
	return team.Progress(s.Team, *s.Project)
}

// Recommend lists partners that can still join the team.
func (s *Session) Recommend(m *matching.Matcher, directory []model.Partner) (team.Recommendation, error) {
	if s.Phase != PhaseTeamBuilding || s.Project == nil {
		return team.Recommendation{}, fmt.Errorf("recommend: %w (phase %s)", ErrInvalidState, s.Phase)
	}
	return team.RecommendPartners(m, *s.Project, directory, s.Team), nil
}

// Offer adds the named partner from the latest directory snapshot. The
// partner is resolved by name so a stale page can never add a company that
// has since left the directory. Offering a current member returns false and
// no error, even when the member has since left the directory.
func (s *Session) Offer(name string, directory []model.Partner, now time.Time) (model.Partner, bool, error) {
	if s.Phase != PhaseTeamBuilding || s.Project == nil {
		return model.Partner{}, false, fmt.Errorf("offer %q: %w (phase %s)", name, ErrInvalidState, s.Phase)
	}

	if member, ok := lookup(s.Team.Members(), name); ok {
		return member, false, nil
	}

	partner, ok := lookup(directory, name)
	if !ok {
		return model.Partner{}, false, fmt.Errorf("offer %q: %w", name, ErrStaleReference)
	}
	if !s.Project.Requires(partner.TradeType) {
		return partner, false, fmt.Errorf("offer %q (%s): %w", name, partner.TradeType, ErrNotEligible)
	}

	next, added := team.AddMember(s.Team, partner)
	if added {
		s.Team = next
		s.UpdatedAt = now
	}
	return partner, added, nil
}

// ConfirmBid closes the session with a bid result.
func (s *Session) ConfirmBid(now time.Time) (model.BidResult, error) {
	if s.Phase != PhaseTeamBuilding || s.Project == nil {
		return model.BidResult{}, fmt.Errorf("confirm bid: %w (phase %s)", ErrInvalidState, s.Phase)
	}
	res, err := team.ConfirmBid(s.Team, *s.Project, s.Owner, now)
	if err != nil {
		return model.BidResult{}, err
	}
	s.Result = &res
	s.Phase = PhaseConfirmed
	s.UpdatedAt = now
	return res, nil
}

func lookup(directory []model.Partner, name string) (model.Partner, bool) {
	for _, p := range directory {
		if p.Name == name {
			return p, true
		}
	}
	return model.Partner{}, false
}
