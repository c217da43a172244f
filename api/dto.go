package api

import (
	"time"

	"github.com/warp/retail-rfm/retail"
	"github.com/warp/retail-rfm/rfm"
)

// HealthDTO is the /api/health response.
type HealthDTO struct {
	Status      string        `json:"status"`
	Driver      string        `json:"driver"`
	Counts      retail.Counts `json:"counts"`
	NextRefresh *time.Time    `json:"next_refresh,omitempty"`
}

// SegmentsResponse wraps the result set.
type SegmentsResponse struct {
	Count int             `json:"count"`
	Rows  []rfm.ResultRow `json:"rows"`
}

// SummaryResponse is the per-segment rollup.
type SummaryResponse struct {
	Customers int                  `json:"customers"`
	Segments  []rfm.SegmentSummary `json:"segments"`
}

// RunsResponse lists pipeline runs.
type RunsResponse struct {
	Runs []retail.Run `json:"runs"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
