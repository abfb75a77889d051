package analytics

import (
	"math"
	"sort"
)

// MaxRowsPerStage caps how many dimension values are reported for one stage.
const MaxRowsPerStage = 10

// EventRow is one daily GA4 event aggregate as stored in ga4_events.
type EventRow struct {
	Date                   string  `db:"date"`
	Country                string  `db:"country"`
	DeviceCategory         string  `db:"device_category"`
	EventName              string  `db:"event_name"`
	Browser                string  `db:"browser"`
	OperatingSystem        string  `db:"operating_system"`
	ScreenResolution       string  `db:"screen_resolution"`
	ActiveUsers            int64   `db:"active_users"`
	Sessions               int64   `db:"sessions"`
	ScreenPageViews        int64   `db:"screen_page_views"`
	BounceRate             float64 `db:"bounce_rate"`
	AverageSessionDuration float64 `db:"average_session_duration"`
}

// FunnelStage is one (dimension value, stage) row of a funnel.
type FunnelStage struct {
	StageOrder             int      `json:"stage_order"`
	Dimension              string   `json:"dimension"`
	FunnelStage            string   `json:"funnel_stage"`
	TotalUsers             int64    `json:"total_users"`
	TotalInteractions      int64    `json:"total_interactions"`
	PrevStageUsers         *int64   `json:"prev_stage_users"`
	UsersDropped           *int64   `json:"users_dropped"`
	DropoffPct             *float64 `json:"dropoff_pct"`
	ConversionFromStartPct *float64 `json:"conversion_from_start_pct"`
	StageConversionPct     *float64 `json:"stage_conversion_pct"`
	Ranking                int64    `json:"ranking"`
}

type stage struct {
	name  string
	order int
}

// funnelStages maps GA4 event names onto the e-commerce funnel.
var funnelStages = map[string]stage{
	"session_start":     {"Home", 1},
	"view_item_list":    {"PLP", 2},
	"view_item":         {"PDP", 3},
	"view_cart":         {"Cart", 4},
	"begin_checkout":    {"Checkout", 5},
	"add_shipping_info": {"Shipping", 6},
	"add_payment_info":  {"Payment", 7},
	"purchase":          {"Confirmation", 8},
}

// StageForEvent returns the funnel stage an event belongs to.
func StageForEvent(eventName string) (name string, order int, ok bool) {
	s, ok := funnelStages[eventName]
	return s.name, s.order, ok
}

func inRange(date, start, end string) bool {
	return (start == "" || date >= start) && (end == "" || date <= end)
}

// ComputeFunnel aggregates rows dated within [start, end] into funnel stages
// broken down by dim. Stages absent for a dimension value are skipped, so
// drop-off is measured against the previous stage that has data.
func ComputeFunnel(rows []EventRow, dim Dimension, start, end string) []FunnelStage {
	type key struct {
		dim   string
		order int
	}
	totals := make(map[key]*FunnelStage)

	for _, row := range rows {
		if !inRange(row.Date, start, end) {
			continue
		}
		st, ok := funnelStages[row.EventName]
		if !ok {
			continue
		}
		k := key{dim.valueOf(row), st.order}
		agg, ok := totals[k]
		if !ok {
			agg = &FunnelStage{StageOrder: st.order, Dimension: k.dim, FunnelStage: st.name}
			totals[k] = agg
		}
		agg.TotalUsers += row.ActiveUsers
		agg.TotalInteractions += row.Sessions
	}

	byDimension := make(map[string][]*FunnelStage)
	for k, agg := range totals {
		byDimension[k.dim] = append(byDimension[k.dim], agg)
	}

	for _, stages := range byDimension {
		sort.Slice(stages, func(i, j int) bool { return stages[i].StageOrder < stages[j].StageOrder })
		first := stages[0].TotalUsers
		for i, s := range stages {
			if first != 0 {
				s.ConversionFromStartPct = pct(s.TotalUsers, first, 2)
			}
			if i == 0 {
				continue
			}
			prev := stages[i-1].TotalUsers
			dropped := prev - s.TotalUsers
			s.PrevStageUsers = &prev
			s.UsersDropped = &dropped
			if prev != 0 {
				s.DropoffPct = pct(dropped, prev, 2)
				s.StageConversionPct = pct(s.TotalUsers, prev, 2)
			}
		}
	}

	byOrder := make(map[int][]*FunnelStage)
	for _, agg := range totals {
		byOrder[agg.StageOrder] = append(byOrder[agg.StageOrder], agg)
	}

	var result []FunnelStage
	for order := 1; order <= len(funnelStages); order++ {
		stages := byOrder[order]
		sort.SliceStable(stages, func(i, j int) bool {
			if stages[i].TotalUsers != stages[j].TotalUsers {
				return stages[i].TotalUsers > stages[j].TotalUsers
			}
			return stages[i].Dimension < stages[j].Dimension
		})
		for i, s := range stages {
			// Competition ranking: ties share a rank and the next rank skips.
			if i == 0 || s.TotalUsers != stages[i-1].TotalUsers {
				s.Ranking = int64(i + 1)
			} else {
				s.Ranking = stages[i-1].Ranking
			}
			if s.Ranking > MaxRowsPerStage || i >= MaxRowsPerStage {
				break
			}
			result = append(result, *s)
		}
	}

	if result == nil {
		result = []FunnelStage{}
	}
	return result
}

// pct returns round(100*num/den, places). den must be non-zero.
func pct(num, den int64, places int) *float64 {
	v := round(100*float64(num)/float64(den), places)
	return &v
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
