package board

import (
	"context"
	"sort"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// SeriesPoint is one chart bar: a period key and its total revenue.
type SeriesPoint struct {
	Period string `json:"period"`
	Total  int64  `json:"total"`
}

// Series is the reshaped statistics view: the chart series in ascending
// period order plus the per-period menu breakdown.
type Series struct {
	Points    []SeriesPoint            `json:"points"`
	Breakdown map[string]models.StatDoc `json:"breakdown"`
}

// BuildSeries reshapes raw accumulator documents into a Series. Period keys
// sort lexicographically, which is also chronological for both the ISO-date
// and year-month forms.
func BuildSeries(docs map[string]models.StatDoc) Series {
	s := Series{
		Points:    make([]SeriesPoint, 0, len(docs)),
		Breakdown: make(map[string]models.StatDoc, len(docs)),
	}
	for period, doc := range docs {
		var total int64
		for _, st := range doc {
			total += st.Total
		}
		s.Points = append(s.Points, SeriesPoint{Period: period, Total: total})
		s.Breakdown[period] = doc
	}
	sort.Slice(s.Points, func(i, j int) bool {
		return s.Points[i].Period < s.Points[j].Period
	})
	return s
}

// DefaultPeriod is the most recent period in the series, used when no date
// has been selected yet. Empty series means empty string.
func (s Series) DefaultPeriod() string {
	if len(s.Points) == 0 {
		return ""
	}
	return s.Points[len(s.Points)-1].Period
}

// TotalFor sums the item totals of a single period. The dashboard's headline
// figure covers only the selected period, never the whole series.
func (s Series) TotalFor(period string) int64 {
	var total int64
	for _, st := range s.Breakdown[period] {
		total += st.Total
	}
	return total
}

// Reader loads and reshapes the persisted accumulators for a shop.
type Reader struct {
	ledger ledger.Ledger
}

func NewReader(l ledger.Ledger) *Reader {
	return &Reader{ledger: l}
}

// Read builds the series for one shop and granularity.
func (r *Reader) Read(ctx context.Context, shop string, g models.Granularity) (Series, error) {
	docs, err := r.ledger.ListStats(ctx, shop, g)
	if err != nil {
		return Series{}, err
	}
	return BuildSeries(docs), nil
}
