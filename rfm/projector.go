package rfm

import (
	"context"
	"fmt"
	"strconv"

	"github.com/warp/retail-rfm/retail"
)

// Header is the fixed column order of the exported result set.
var Header = []string{
	"customer_id",
	"recency",
	"frequency",
	"monetary",
	"r_score",
	"f_score",
	"m_score",
	"rfm_score",
	"segment",
}

// ResultRow is one flat row of the result set.
type ResultRow struct {
	CustomerID int64  `json:"customer_id"`
	Recency    int    `json:"recency"`
	Frequency  int    `json:"frequency"`
	Monetary   string `json:"monetary"`
	RScore     int    `json:"r_score"`
	FScore     int    `json:"f_score"`
	MScore     int    `json:"m_score"`
	RFMScore   string `json:"rfm_score"`
	Segment    string `json:"segment"`
}

// Values returns the row as strings in Header order.
func (r ResultRow) Values() []string {
	return []string{
		strconv.FormatInt(r.CustomerID, 10),
		strconv.Itoa(r.Recency),
		strconv.Itoa(r.Frequency),
		r.Monetary,
		strconv.Itoa(r.RScore),
		strconv.Itoa(r.FScore),
		strconv.Itoa(r.MScore),
		r.RFMScore,
		r.Segment,
	}
}

// Project maps stored segmentation rows to result rows, keeping their order.
func Project(rows []retail.Segmentation) []ResultRow {
	out := make([]ResultRow, len(rows))
	for i, r := range rows {
		out[i] = ResultRow{
			CustomerID: r.CustomerID,
			Recency:    r.Recency,
			Frequency:  r.Frequency,
			Monetary:   r.Monetary.String(),
			RScore:     r.RScore,
			FScore:     r.FScore,
			MScore:     r.MScore,
			RFMScore:   r.RFMScore,
			Segment:    r.Segment,
		}
	}
	return out
}

// ReadResults reads the full derived table as a result set.
func ReadResults(ctx context.Context, store retail.SegmentationStore) ([]ResultRow, error) {
	rows, err := store.ReadSegmentation(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read segmentation: %w", err)
	}
	return Project(rows), nil
}
