package rfm

import "sort"

// Quintiles is the number of buckets each dimension is split into.
const Quintiles = 5

// NtileBucket returns the 1-based bucket of the 0-based position pos when n
// sorted rows are split into k buckets. Bucket sizes differ by at most one
// and the larger buckets come first, as with SQL NTILE(k).
func NtileBucket(pos, n, k int) int {
	size, extra := n/k, n%k
	big := extra * (size + 1)
	if pos < big {
		return pos/(size+1) + 1
	}
	return extra + (pos-big)/size + 1
}

// BucketSizes returns how many of n rows fall in each of k buckets.
func BucketSizes(n, k int) []int {
	sizes := make([]int, k)
	for pos := 0; pos < n; pos++ {
		sizes[NtileBucket(pos, n, k)-1]++
	}
	return sizes
}

// rank sorts metric indices with less and assigns NTILE buckets.
// metrics must already be in tie-break order; the stable sort keeps it.
func rank(metrics []Metrics, less func(a, b Metrics) bool) []int {
	order := make([]int, len(metrics))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return less(metrics[order[i]], metrics[order[j]])
	})

	buckets := make([]int, len(metrics))
	for pos, idx := range order {
		buckets[idx] = NtileBucket(pos, len(metrics), Quintiles)
	}
	return buckets
}

func recencyAsc(a, b Metrics) bool    { return a.Recency < b.Recency }
func frequencyDesc(a, b Metrics) bool { return a.Frequency > b.Frequency }
func monetaryDesc(a, b Metrics) bool  { return a.Monetary.GreaterThan(b.Monetary) }
