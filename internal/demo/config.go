// Package demo drives a scripted JV formation against a running G-Cart server.
package demo

import (
	"io"
	"time"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// Default configuration constants.
const (
	DefaultBaseURL   = "http://localhost:9080"
	DefaultProjectID = 101
	DefaultTimeout   = 10 * time.Second
)

// Config holds the demo run configuration.
type Config struct {
	BaseURL   string
	ProjectID int
	// Partners are offered in order. When empty the recommended candidates
	// are offered until the team can bid.
	Partners []string
	Timeout  time.Duration
	// KeepSession skips the final DELETE so the session can be inspected.
	KeepSession bool
	Verbose     bool
	Out         io.Writer
}

// Stats tracks what happened during a run.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Requests       int
	OffersAdded    int
	OffersSkipped  int
	OffersRejected int
}

// Summary is the outcome of a completed run.
type Summary struct {
	SessionID string
	Project   projectView
	Members   []model.Partner
	Biddable  bool
	Result    *model.BidResult
	Stats     Stats
}

// projectView mirrors the annotated project returned by the API.
type projectView struct {
	model.Project
	BudgetDisplay string       `json:"budget_display"`
	Shortfall     model.Amount `json:"shortfall"`
	SoloBiddable  bool         `json:"solo_biddable"`
}

type teamView struct {
	OwnerCapacity model.Amount    `json:"owner_capacity"`
	Members       []model.Partner `json:"members"`
	TotalCapacity model.Amount    `json:"total_capacity"`
}

type sessionView struct {
	ID        string           `json:"id"`
	Phase     string           `json:"phase"`
	Owner     model.Owner      `json:"owner"`
	Project   *projectView     `json:"project"`
	Team      teamView         `json:"team"`
	Shortfall model.Amount     `json:"shortfall"`
	Remaining model.Amount     `json:"remaining"`
	Biddable  bool             `json:"biddable"`
	Progress  float64          `json:"progress"`
	Result    *model.BidResult `json:"result"`
}

type candidateView struct {
	Partner model.Partner `json:"partner"`
	Local   bool          `json:"local"`
}

type recommendationView struct {
	Candidates    []candidateView `json:"candidates"`
	DirectorySize int             `json:"directory_size"`
	LocalFirst    bool            `json:"local_first"`
}

type offerView struct {
	Added   bool        `json:"added"`
	Session sessionView `json:"session"`
}

type selectProjectRequest struct {
	ProjectID int `json:"project_id"`
}

type offerRequest struct {
	Partner string `json:"partner"`
}
