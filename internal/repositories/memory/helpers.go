package memory

import (
	"nepway/internal/utils"
)

func scheduleKey(date, clock string) string {
	return date + " " + clock
}

// isStale mirrors the sweeper filter: date before today, or today with a
// time already past.
func isStale(date, clock, today, now string) bool {
	return date < today || (date == today && clock < now)
}

func paginate[T any](items []T, params *utils.PaginationParams) []T {
	if params == nil {
		return items
	}
	start := params.GetSkip()
	if start >= len(items) {
		return []T{}
	}
	end := start + params.GetLimit()
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
