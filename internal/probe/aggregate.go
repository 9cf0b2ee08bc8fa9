package probe

import (
	"errors"

	"github.com/hamed0406/nickicker/internal/domain"
)

// ErrNoEndpoints means there is nothing to aggregate, which is a configuration error.
var ErrNoEndpoints = errors.New("no endpoint results to aggregate")

// Aggregate reduces one cycle's results to a single verdict: connectivity is up
// if any endpoint is reachable.
func Aggregate(results []domain.ProbeResult) (bool, error) {
	if len(results) == 0 {
		return false, ErrNoEndpoints
	}
	return CountReachable(results) > 0, nil
}

// CountReachable returns how many endpoints answered.
func CountReachable(results []domain.ProbeResult) int {
	n := 0
	for _, r := range results {
		if r.Reachable {
			n++
		}
	}
	return n
}
