package analytics

import "sort"

// EventNameCount is a debug view of raw event volume.
type EventNameCount struct {
	EventName   string `json:"event_name"`
	TotalEvents int64  `json:"total_events"`
	TotalUsers  int64  `json:"total_users"`
}

// ComputeEventNames totals sessions and users per event name within [start, end].
func ComputeEventNames(rows []EventRow, start, end string) []EventNameCount {
	totals := make(map[string]*EventNameCount)
	for _, row := range rows {
		if !inRange(row.Date, start, end) {
			continue
		}
		agg, ok := totals[row.EventName]
		if !ok {
			agg = &EventNameCount{EventName: row.EventName}
			totals[row.EventName] = agg
		}
		agg.TotalEvents += row.Sessions
		agg.TotalUsers += row.ActiveUsers
	}

	result := make([]EventNameCount, 0, len(totals))
	for _, agg := range totals {
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalEvents != result[j].TotalEvents {
			return result[i].TotalEvents > result[j].TotalEvents
		}
		return result[i].EventName < result[j].EventName
	})
	return result
}
