package analytics

import "sort"

// PagePathRow is one daily page aggregate as stored in ga4_page_paths.
type PagePathRow struct {
	Date                   string  `db:"date"`
	PagePath               string  `db:"page_path"`
	ScreenPageViews        int64   `db:"screen_page_views"`
	TotalUsers             int64   `db:"total_users"`
	UserEngagementDuration float64 `db:"user_engagement_duration"`
}

// PagePathStats summarizes traffic and engagement for one page path.
type PagePathStats struct {
	PagePath               string   `json:"page_path"`
	TotalPageviews         int64    `json:"total_pageviews"`
	TotalUsers             int64    `json:"total_users"`
	TotalEngagementSeconds float64  `json:"total_engagement_seconds"`
	AvgTimePerPageviewSec  *float64 `json:"avg_time_per_pageview_sec"`
	AvgTimePerUserSec      *float64 `json:"avg_time_per_user_sec"`
}

// ComputePagePaths sums page metrics within [start, end], busiest pages first.
func ComputePagePaths(rows []PagePathRow, start, end string) []PagePathStats {
	totals := make(map[string]*PagePathStats)
	for _, row := range rows {
		if !inRange(row.Date, start, end) {
			continue
		}
		agg, ok := totals[row.PagePath]
		if !ok {
			agg = &PagePathStats{PagePath: row.PagePath}
			totals[row.PagePath] = agg
		}
		agg.TotalPageviews += row.ScreenPageViews
		agg.TotalUsers += row.TotalUsers
		agg.TotalEngagementSeconds += row.UserEngagementDuration
	}

	result := make([]PagePathStats, 0, len(totals))
	for _, agg := range totals {
		if agg.TotalPageviews != 0 {
			v := round(agg.TotalEngagementSeconds/float64(agg.TotalPageviews), 2)
			agg.AvgTimePerPageviewSec = &v
		}
		if agg.TotalUsers != 0 {
			v := round(agg.TotalEngagementSeconds/float64(agg.TotalUsers), 2)
			agg.AvgTimePerUserSec = &v
		}
		result = append(result, *agg)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalPageviews != result[j].TotalPageviews {
			return result[i].TotalPageviews > result[j].TotalPageviews
		}
		return result[i].PagePath < result[j].PagePath
	})
	return result
}
