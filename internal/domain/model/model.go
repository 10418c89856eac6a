// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Amount is a monetary amount in yen.
type Amount int64

// String renders the amount the way the catalog shows it, e.g. ¥50,000,000.
func (a Amount) String() string {
	n := int64(a)
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString("¥")
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Project is a public-works procurement opportunity. Values are immutable once
// loaded from a catalog.
type Project struct {
	ID           int      `json:"id" yaml:"id" validate:"required,gt=0"`
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Location     string   `json:"location" yaml:"location" validate:"required"`
	Budget       Amount   `json:"budget" yaml:"budget" validate:"gt=0"`
	RequiredTags []string `json:"required_tags" yaml:"tags" validate:"required,min=1,dive,required"`
	Description  string   `json:"description" yaml:"desc"`
	Image        string   `json:"image,omitempty" yaml:"image"`
}

// Requires reports whether tag is one of the project's required trade tags.
func (p Project) Requires(tag string) bool {
	return slices.Contains(p.RequiredTags, tag)
}

// Partner is a candidate company from the partner directory. Name is the
// identity key within a session.
type Partner struct {
	Name      string   `json:"name" validate:"required"`
	TradeType string   `json:"trade_type" validate:"required"`
	Location  string   `json:"location" validate:"required"`
	Capacity  Amount   `json:"capacity" validate:"gte=0"`
	Rating    *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

// Owner is the logged-in company that leads the joint venture.
type Owner struct {
	Name      string `json:"name" koanf:"name" validate:"required"`
	Location  string `json:"location" koanf:"location"`
	TradeType string `json:"trade_type" koanf:"trade_type"`
	Capacity  Amount `json:"capacity" koanf:"capacity" validate:"gte=0"`
	Credit    string `json:"credit" koanf:"credit"`
}

// BidResult is the display summary produced when a JV confirms its bid.
type BidResult struct {
	ProjectID       int       `json:"project_id"`
	Members         []string  `json:"members"`
	TotalCapacity   Amount    `json:"total_capacity"`
	AllocationNote  string    `json:"allocation_note"`
	RetentionRate   float64   `json:"retention_rate"`
	DistortionIndex float64   `json:"distortion_index"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

// NotificationKind names what happened in a session.
type NotificationKind string

// Notification kinds pushed to the presentation layer.
const (
	NotifyOfferSent        NotificationKind = "offer_sent"
	NotifyOfferUnavailable NotificationKind = "offer_unavailable"
	NotifyBidConfirmed     NotificationKind = "bid_confirmed"
)

// Notification is an observational event about a session. Losing one never
// changes team state.
type Notification struct {
	SessionID string           `json:"session_id"`
	Kind      NotificationKind `json:"kind"`
	Partner   string           `json:"partner,omitempty"`
	Message   string           `json:"message"`
	At        time.Time        `json:"at"`
}
