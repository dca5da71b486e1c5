package bench

import (
	"slices"
	"time"
)

// Mean returns the arithmetic mean of samples, or zero for none.
func Mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return sum / time.Duration(len(samples))
}

// TrimmedMean drops the single smallest and largest sample before averaging.
// With two samples or fewer nothing is dropped.
func TrimmedMean(samples []time.Duration) time.Duration {
	if len(samples) <= 2 {
		return Mean(samples)
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	return Mean(sorted[1 : len(sorted)-1])
}
