package rfm

import "strconv"

type Segment string

const (
	SegmentChampions      Segment = "Champions"
	SegmentLoyalCustomers Segment = "Loyal Customers"
	SegmentBigSpenders    Segment = "Big Spenders"
	SegmentLost           Segment = "Lost"
	SegmentOthers         Segment = "Others"
)

// Segments lists every segment in rule order.
var Segments = []Segment{
	SegmentChampions,
	SegmentLoyalCustomers,
	SegmentBigSpenders,
	SegmentLost,
	SegmentOthers,
}

// Score inverts a bucket so that bucket 1 scores 5 and bucket 5 scores 1.
func Score(bucket int) int {
	return 6 - bucket
}

// ComposeScore concatenates the three score digits in r, f, m order.
func ComposeScore(r, f, m int) string {
	return strconv.Itoa(r) + strconv.Itoa(f) + strconv.Itoa(m)
}

// Classify returns the segment of the first matching rule.
func Classify(r, f, m int) Segment {
	switch {
	case r == 5 && f == 5 && m == 5:
		return SegmentChampions
	case r >= 4 && f >= 4:
		return SegmentLoyalCustomers
	case m == 5:
		return SegmentBigSpenders
	case r == 1:
		return SegmentLost
	default:
		return SegmentOthers
	}
}
