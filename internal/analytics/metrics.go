package analytics

import (
	"sort"
	"time"
)

// PercentChange compares a current value against the prior window. Going
// from nothing to something reads as +100%, not undefined: 0→0 is 0,
// 0→x is 100.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0
		}
		return 100
	}
	return (current - previous) / previous * 100
}

// ConversionRate is the share of all seen users that produced the goal
// event at least once.
func ConversionRate(goalUsers, allUsers int) float64 {
	if allUsers == 0 {
		return 0
	}
	return float64(goalUsers) / float64(allUsers) * 100
}

// FunnelConversion is the goal-less fallback: last-step users over
// first-step users.
func FunnelConversion(counts []int) float64 {
	if len(counts) == 0 || counts[0] == 0 {
		return 0
	}
	return float64(counts[len(counts)-1]) / float64(counts[0]) * 100
}

// RetentionRate computes day-N retention against each user's own rolling
// cohort-entry day: a cohort user counts as retained at offset d when they
// were active on the calendar day exactly d days after their entry.
func RetentionRate(cohortStart map[string]time.Time, activityByUser map[string]map[string]struct{}, offsetDays int) float64 {
	if len(cohortStart) == 0 {
		return 0
	}
	retained := 0
	for user, entered := range cohortStart {
		target := entered.AddDate(0, 0, offsetDays).Format(dayFormat)
		if _, ok := activityByUser[user][target]; ok {
			retained++
		}
	}
	return float64(retained) / float64(len(cohortStart)) * 100
}

// DatePoint is one gap-filled day of a time series.
type DatePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// FillMissingDates expands a sparse day->count map into exactly n
// consecutive calendar days ending at the given day, substituting zero for
// missing days so charts never show gaps.
func FillMissingDates(sparse map[string]int, n int, today time.Time) []DatePoint {
	if n <= 0 {
		return nil
	}
	points := make([]DatePoint, 0, n)
	start := today.AddDate(0, 0, -(n - 1))
	for i := 0; i < n; i++ {
		day := start.AddDate(0, 0, i).Format(dayFormat)
		points = append(points, DatePoint{Date: day, Count: sparse[day]})
	}
	return points
}

// PathCount is a per-path page-view total.
type PathCount struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// sortedPathCounts orders paths by count descending, path ascending on
// ties, so output is stable run to run.
func sortedPathCounts(byPath map[string]int) []PathCount {
	out := make([]PathCount, 0, len(byPath))
	for path, count := range byPath {
		out = append(out, PathCount{Path: path, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Path < out[j].Path
	})
	return out
}
