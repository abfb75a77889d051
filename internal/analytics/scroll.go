package analytics

import (
	"sort"
	"strconv"
	"strings"
)

// scrollEvents are the GA4 event names that carry scroll depth thresholds.
var scrollEvents = map[string]bool{
	"scroll_25": true, "scroll_50": true, "scroll_75": true, "scroll_90": true,
	"25": true, "50": true, "75": true, "90": true,
}

// ScrollDepth is the audience reaching one scroll threshold.
type ScrollDepth struct {
	Dimension      string   `json:"dimension"`
	ScrollDepth    string   `json:"scroll_depth"`
	Events         int64    `json:"events"`
	Users          int64    `json:"users"`
	PrevStageUsers *int64   `json:"prev_stage_users"`
	DropOffPct     *float64 `json:"drop_off_pct"`
	UsersLost      *int64   `json:"users_lost"`
}

// depthOf parses the threshold out of names like "scroll_50" or "75%".
func depthOf(eventName string) (int, bool) {
	s := strings.ReplaceAll(strings.ReplaceAll(eventName, "scroll_", ""), "%", "")
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func depthLess(a, b string) bool {
	da, okA := depthOf(a)
	db, okB := depthOf(b)
	switch {
	case okA && okB && da != db:
		return da < db
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// ComputeScrollDepth reports how many users reach each scroll threshold per
// dimension value and how many are lost between consecutive thresholds.
func ComputeScrollDepth(rows []EventRow, dim Dimension, start, end string) []ScrollDepth {
	type key struct {
		dim   string
		event string
	}
	totals := make(map[key]*ScrollDepth)

	for _, row := range rows {
		if !scrollEvents[row.EventName] || !inRange(row.Date, start, end) {
			continue
		}
		k := key{dim.valueOf(row), row.EventName}
		agg, ok := totals[k]
		if !ok {
			agg = &ScrollDepth{Dimension: k.dim, ScrollDepth: row.EventName}
			totals[k] = agg
		}
		agg.Events += row.Sessions
		agg.Users += row.ActiveUsers
	}

	result := make([]ScrollDepth, 0, len(totals))
	for _, agg := range totals {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Dimension != result[j].Dimension {
			return result[i].Dimension < result[j].Dimension
		}
		return depthLess(result[i].ScrollDepth, result[j].ScrollDepth)
	})

	for i := range result {
		if i == 0 || result[i-1].Dimension != result[i].Dimension {
			continue
		}
		prev := result[i-1].Users
		lost := prev - result[i].Users
		result[i].PrevStageUsers = &prev
		result[i].UsersLost = &lost
		if prev != 0 {
			result[i].DropOffPct = pct(lost, prev, 1)
		}
	}

	return result
}
