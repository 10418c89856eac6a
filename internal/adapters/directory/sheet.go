package directory

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/pkg/metrics"
)

const maxSheetBytes = 4 << 20

const (
	colName     = "name"
	colType     = "type"
	colLocation = "location"
	colCapacity = "capacity"
	colRating   = "rating"
)

// headerAliases maps accepted header spellings to column keys.
var headerAliases = map[string]string{
	"name":       colName,
	"company":    colName,
	"会社名":        colName,
	"type":       colType,
	"trade":      colType,
	"trade_type": colType,
	"工種":         colType,
	"location":   colLocation,
	"所在地":        colLocation,
	"capacity":   colCapacity,
	"余力":         colCapacity,
	"rating":     colRating,
	"評価":         colRating,
}

var requiredColumns = []string{colName, colType, colLocation, colCapacity}

// SheetSource reads the partner directory from a CSV export URL.
type SheetSource struct {
	url      string
	client   *http.Client
	validate *validator.Validate
}

// SheetOption applies a configuration option to the SheetSource.
type SheetOption func(*SheetSource)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SheetOption {
	return func(s *SheetSource) {
		if c != nil {
			s.client = c
		}
	}
}

// NewSheetSource creates a source for the given CSV URL.
func NewSheetSource(url string, opts ...SheetOption) *SheetSource {
	s := &SheetSource{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements Source.
func (s *SheetSource) Fetch(ctx context.Context) (Batch, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDirectoryFetchLatency(float64(time.Since(start).Milliseconds()))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := s.client.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSheetBytes))
	if err != nil {
		return Batch{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	return ParseCSV(bytes.NewReader(body), s.validate)
}

// ParseCSV maps sheet rows to partners. Rows that fail to parse or validate
// are skipped and reported in Batch.Quarantined. A missing header, a missing
// required column or a sheet without a single valid row yields ErrMalformed;
// the quarantined rows are still returned with it. A nil validate uses a
// fresh validator.
func ParseCSV(r io.Reader, validate *validator.Validate) (Batch, error) {
	if validate == nil {
		validate = validator.New()
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Batch{}, fmt.Errorf("%w: empty sheet", ErrMalformed)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}

	cols, err := mapHeader(header)
	if err != nil {
		return Batch{}, err
	}

	var out Batch
	row := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			out.Quarantined = append(out.Quarantined, RowError{Row: row, Reason: err.Error()})
			continue
		}
		if blank(record) {
			continue
		}

		p, err := toPartner(record, cols)
		if err == nil {
			err = validate.Struct(p)
		}
		if err != nil {
			out.Quarantined = append(out.Quarantined, RowError{Row: row, Reason: err.Error()})
			continue
		}
		out.Partners = append(out.Partners, p)
	}
	if len(out.Partners) == 0 {
		return out, fmt.Errorf("%w: no valid partner rows (%d quarantined)", ErrMalformed, len(out.Quarantined))
	}
	return out, nil
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if key, ok := headerAliases[h]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, c)
		}
	}
	return cols, nil
}

func field(record []string, cols map[string]int, key string) string {
	i, ok := cols[key]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func toPartner(record []string, cols map[string]int) (model.Partner, error) {
	capacity, err := ParseAmount(field(record, cols, colCapacity))
	if err != nil {
		return model.Partner{}, fmt.Errorf("capacity: %w", err)
	}

	p := model.Partner{
		Name:      field(record, cols, colName),
		TradeType: field(record, cols, colType),
		Location:  field(record, cols, colLocation),
		Capacity:  capacity,
	}

	if raw := field(record, cols, colRating); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return model.Partner{}, fmt.Errorf("rating: %w", err)
		}
		p.Rating = &r
	}
	return p, nil
}

// ParseAmount accepts plain integers and display forms such as
// "¥30,000,000" or "30,000,000円".
func ParseAmount(raw string) (model.Amount, error) {
	cleaned := strings.NewReplacer("¥", "", "￥", "", ",", "", "円", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0, errors.New("empty amount")
	}
	n, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return model.Amount(n), nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
