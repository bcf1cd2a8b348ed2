package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaginationParams is a 1-based page window over a listing.
type PaginationParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// GetPaginationParams reads ?page and ?page_size from the query. ?limit is
// accepted as an alias for page_size. Out-of-range values are clamped.
func GetPaginationParams(c *gin.Context) *PaginationParams {
	size := c.Query("page_size")
	if size == "" {
		size = c.Query("limit")
	}

	return &PaginationParams{
		Page:     clampInt(queryInt(c.Query("page"), 1), 1, int(^uint(0)>>1)),
		PageSize: clampInt(queryInt(size, DefaultPageSize), MinPageSize, MaxPageSize),
	}
}

func (p *PaginationParams) GetSkip() int {
	return (p.Page - 1) * p.PageSize
}

func (p *PaginationParams) GetLimit() int {
	return p.PageSize
}

func CreatePaginationMeta(params *PaginationParams, total int64) *PaginationMeta {
	size := int64(params.PageSize)
	totalPages := int((total + size - 1) / size)

	return &PaginationMeta{
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
	}
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func clampInt(n, lo, hi int) int {
	switch {
	case n < lo:
		return lo
	case n > hi:
		return hi
	default:
		return n
	}
}
