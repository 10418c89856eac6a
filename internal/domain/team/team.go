// Package team is the team formation engine: it compares capacity with a
// project budget, recommends partners and accumulates a joint-venture team.
//
// Every function here is pure. Callers own the State value and decide where it
// lives; the engine never reads or writes shared state.
package team

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/matching"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// Display constants attached to every confirmed bid.
const (
	RetentionRate   = 0.98
	DistortionIndex = 1.02
)

// State is the team assembled for one project. The zero value is an empty
// team with no owner capacity.
type State struct {
	ownerCapacity model.Amount
	members       []model.Partner
}

// New returns a team led by an owner with the given capacity. Members are
// added in order through AddMember, so duplicates collapse.
func New(ownerCapacity model.Amount, members ...model.Partner) State {
	s := State{ownerCapacity: ownerCapacity}
	for _, m := range members {
		s, _ = AddMember(s, m)
	}
	return s
}

// OwnerCapacity returns the owner's fixed capacity.
func (s State) OwnerCapacity() model.Amount { return s.ownerCapacity }

// Members returns a copy of the partners in offer order.
func (s State) Members() []model.Partner { return slices.Clone(s.members) }

// Len returns the number of partners on the team, excluding the owner.
func (s State) Len() int { return len(s.members) }

// Has reports whether a partner with this name is already a member.
func (s State) Has(name string) bool {
	return slices.ContainsFunc(s.members, func(m model.Partner) bool { return m.Name == name })
}

// TotalCapacity is the owner capacity plus every member's capacity.
func (s State) TotalCapacity() model.Amount {
	total := s.ownerCapacity
	for _, m := range s.members {
		total += m.Capacity
	}
	return total
}

type stateJSON struct {
	OwnerCapacity model.Amount    `json:"owner_capacity"`
	Members       []model.Partner `json:"members"`
	TotalCapacity model.Amount    `json:"total_capacity"`
}

// MarshalJSON includes the derived total for readers; it is ignored on decode.
func (s State) MarshalJSON() ([]byte, error) {
	members := s.members
	if members == nil {
		members = []model.Partner{}
	}
	return json.Marshal(stateJSON{
		OwnerCapacity: s.ownerCapacity,
		Members:       members,
		TotalCapacity: s.TotalCapacity(),
	})
}

// UnmarshalJSON rebuilds the team through AddMember.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode team state: %w", err)
	}
	*s = New(raw.OwnerCapacity, raw.Members...)
	return nil
}

// EvaluateShortfall returns budget minus owner capacity. A positive value
// means the owner cannot bid alone.
func EvaluateShortfall(project model.Project, ownerCapacity model.Amount) model.Amount {
	return project.Budget - ownerCapacity
}

// Recommendation is the outcome of RecommendPartners. DirectorySize lets the
// caller tell "nobody fits" apart from "the directory is empty".
type Recommendation struct {
	Candidates    []matching.Candidate `json:"candidates"`
	DirectorySize int                  `json:"directory_size"`
	LocalFirst    bool                 `json:"local_first"`
}

// RecommendPartners returns directory partners whose trade the project needs
// and who are not yet on the team.
func RecommendPartners(m *matching.Matcher, project model.Project, directory []model.Partner, s State) Recommendation {
	if m == nil {
		m = matching.New()
	}
	return Recommendation{
		Candidates:    m.Match(project, directory, func(p model.Partner) bool { return s.Has(p.Name) }),
		DirectorySize: len(directory),
		LocalFirst:    m.LocalFirst(),
	}
}

// AddMember appends partner to the team. Adding a name that is already a
// member returns the unchanged team and false.
func AddMember(s State, partner model.Partner) (State, bool) {
	if s.Has(partner.Name) {
		return s, false
	}
	members := append(slices.Clip(s.members), partner)
	return State{ownerCapacity: s.ownerCapacity, members: members}, true
}

// IsBiddable reports whether the team covers the project budget.
func IsBiddable(s State, project model.Project) bool {
	return s.TotalCapacity() >= project.Budget
}

// Progress is total capacity over budget, capped at 1.
func Progress(s State, project model.Project) float64 {
	if project.Budget <= 0 {
		return 1
	}
	return min(1, float64(s.TotalCapacity())/float64(project.Budget))
}

// ConfirmBid produces the JV summary. It fails with ErrNotBiddable, and
// changes nothing, when the team is short.
func ConfirmBid(s State, project model.Project, owner model.Owner, at time.Time) (model.BidResult, error) {
	if !IsBiddable(s, project) {
		return model.BidResult{}, fmt.Errorf("confirm bid for project %d: %w (have %s, need %s)",
			project.ID, ErrNotBiddable, s.TotalCapacity(), project.Budget)
	}

	members := make([]string, 0, len(s.members)+1)
	for _, m := range s.members {
		members = append(members, m.Name)
	}
	members = append(members, owner.Name)

	return model.BidResult{
		ProjectID:       project.ID,
		Members:         members,
		TotalCapacity:   s.TotalCapacity(),
		AllocationNote:  allocationNote(project, members, s.TotalCapacity()),
		RetentionRate:   RetentionRate,
		DistortionIndex: DistortionIndex,
		ConfirmedAt:     at,
	}, nil
}

func allocationNote(project model.Project, members []string, total model.Amount) string {
	return fmt.Sprintf("%s (JV) bids on %q for %s with combined capacity %s. "+
		"Regional retention R_block %.0f%%, distortion index D_index %.2f: "+
		"the work stays with local firms instead of routing through an outside general contractor.",
		strings.Join(members, ", "), project.Name, project.Budget, total,
		RetentionRate*100, DistortionIndex)
}
