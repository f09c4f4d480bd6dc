package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext/prng"
)

// Split partitions row positions 0..n-1 into a training and a test set. The
// test set takes ceil((1-trainFraction)*n) rows. Rows are drawn from a
// Mersenne Twister permutation seeded with seed, so equal arguments always
// give equal partitions.
func Split(n int, trainFraction float64, seed uint64) (train, test []int, err error) {
	if trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction %v must be in (0, 1)", trainFraction)
	}
	nTest := int(math.Ceil((1 - trainFraction) * float64(n)))
	nTrain := n - nTest
	if nTrain < 1 || nTest < 1 {
		return nil, nil, fmt.Errorf("cannot split %d rows with train fraction %v", n, trainFraction)
	}

	perm := permutation(n, seed)
	return perm[nTest:], perm[:nTest], nil
}

func permutation(n int, seed uint64) []int {
	src := prng.NewMT19937()
	src.Seed(seed)

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := boundedInt(src, i+1)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

func boundedInt(src *prng.MT19937, n int) int {
	bound := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%bound
	for {
		if v := src.Uint64(); v < limit {
			return int(v % bound)
		}
	}
}

// KFold returns the contiguous, unshuffled test folds for n rows. The first
// n%k folds hold one extra row.
func KFold(n, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}
	folds := make([][]int, k)
	start := 0
	for f := range folds {
		size := n / k
		if f < n%k {
			size++
		}
		fold := make([]int, size)
		for i := range fold {
			fold[i] = start + i
		}
		folds[f] = fold
		start += size
	}
	return folds, nil
}
