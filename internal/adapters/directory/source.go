// Package directory loads the partner directory from a published sheet and
// keeps a cached snapshot that never fails its readers.
package directory

import (
	"context"
	"slices"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

// RowError describes a sheet row that failed validation. Row is 1-based and
// counts the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Batch is one successful fetch.
type Batch struct {
	Partners    []model.Partner
	Quarantined []RowError
}

// Source fetches the full partner list.
type Source interface {
	Fetch(ctx context.Context) (Batch, error)
}

// StaticSource serves a fixed partner list.
type StaticSource struct {
	partners []model.Partner
}

// NewStaticSource returns a source over a copy of partners.
func NewStaticSource(partners []model.Partner) *StaticSource {
	return &StaticSource{partners: slices.Clone(partners)}
}

// Fetch implements Source.
func (s *StaticSource) Fetch(context.Context) (Batch, error) {
	return Batch{Partners: slices.Clone(s.partners)}, nil
}

func rating(v float64) *float64 { return &v }

// SamplePartners is the built-in directory used when the sheet cannot be read.
func SamplePartners() []model.Partner {
	return []model.Partner{
		{Name: "田中舗装ロード", TradeType: "舗装", Location: "柏市", Capacity: 30_000_000, Rating: rating(4.8)},
		{Name: "柏警備保障", TradeType: "警備", Location: "柏市", Capacity: 5_000_000, Rating: rating(4.5)},
		{Name: "松戸電気サービス", TradeType: "電気", Location: "松戸市", Capacity: 20_000_000, Rating: rating(4.2)},
		{Name: "流山水道メンテナンス", TradeType: "水道", Location: "流山市", Capacity: 15_000_000, Rating: rating(4.6)},
		{Name: "ちば建設資材", TradeType: "資材", Location: "柏市", Capacity: 50_000_000, Rating: rating(4.9)},
	}
}
