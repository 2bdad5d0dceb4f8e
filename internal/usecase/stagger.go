package usecase

import "time"

// Stagger computes the launch delay for the index-th of total monitors
// so their fetches spread evenly across the cycle window. The result is
// deterministic for fixed inputs and non-decreasing in index, which
// keeps repeated cycles predictable. Callers perform the actual wait.
func Stagger(index, total int, window time.Duration) time.Duration {
	if total <= 1 || index <= 0 || window <= 0 {
		return 0
	}
	if index >= total {
		index = total - 1
	}
	step := window / time.Duration(total)
	return time.Duration(index) * step
}
