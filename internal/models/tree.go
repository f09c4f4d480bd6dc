package models

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext/prng"
)

// tree is a fitted regression tree stored as a flat node array. Leaves have
// feature -1.
type tree struct {
	nodes []node
}

type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

func (t *tree) predict(row []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if row[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeBuilder struct {
	x           *mat.Dense
	y           []float64
	rng         *prng.MT19937
	minLeaf     int
	minSplit    int
	maxFeatures int

	nodes []node
}

type split struct {
	feature   int
	threshold float64
	pos       int
	score     float64
}

func (b *treeBuilder) grow(rows []int) *tree {
	b.nodes = b.nodes[:0]
	b.build(rows)
	return &tree{nodes: append([]node(nil), b.nodes...)}
}

// build appends the subtree for rows and returns its node index. Splits
// minimise the summed squared error of the children.
func (b *treeBuilder) build(rows []int) int {
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1, value: b.mean(rows)})

	if len(rows) < b.minSplit || len(rows) < 2*b.minLeaf {
		return idx
	}

	best, ok := b.bestSplit(rows)
	if !ok {
		return idx
	}

	ordered := b.sortedBy(rows, best.feature)
	left := b.build(ordered[:best.pos])
	right := b.build(ordered[best.pos:])
	b.nodes[idx].feature = best.feature
	b.nodes[idx].threshold = best.threshold
	b.nodes[idx].left = left
	b.nodes[idx].right = right
	return idx
}

func (b *treeBuilder) bestSplit(rows []int) (split, bool) {
	_, c := b.x.Dims()
	candidates := b.sampleFeatures(c)

	var total, totalSq float64
	for _, r := range rows {
		total += b.y[r]
		totalSq += b.y[r] * b.y[r]
	}
	n := float64(len(rows))
	parent := totalSq - total*total/n

	best := split{score: parent}
	found := false
	for _, feat := range candidates {
		ordered := b.sortedBy(rows, feat)
		var leftSum float64
		for i := 0; i < len(ordered)-1; i++ {
			leftSum += b.y[ordered[i]]
			pos := i + 1
			if pos < b.minLeaf || len(ordered)-pos < b.minLeaf {
				continue
			}
			lo, hi := b.x.At(ordered[i], feat), b.x.At(ordered[pos], feat)
			if lo == hi {
				continue
			}
			nl, nr := float64(pos), n-float64(pos)
			rightSum := total - leftSum
			// Squared error of the children is totalSq minus these terms.
			score := totalSq - leftSum*leftSum/nl - rightSum*rightSum/nr
			if score < best.score-1e-12 {
				best = split{
					feature:   feat,
					threshold: lo + (hi-lo)/2,
					pos:       pos,
					score:     score,
				}
				found = true
			}
		}
	}
	return best, found
}

// sampleFeatures draws maxFeatures distinct feature indices with a partial
// Fisher-Yates shuffle.
func (b *treeBuilder) sampleFeatures(c int) []int {
	perm := make([]int, c)
	for i := range perm {
		perm[i] = i
	}
	k := b.maxFeatures
	if k > c {
		k = c
	}
	for i := 0; i < k; i++ {
		j := i + intn(b.rng, c-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}

func (b *treeBuilder) sortedBy(rows []int, feat int) []int {
	out := append([]int(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return b.x.At(out[i], feat) < b.x.At(out[j], feat)
	})
	return out
}

func (b *treeBuilder) mean(rows []int) float64 {
	if len(rows) == 0 {
		return math.NaN()
	}
	var s float64
	for _, r := range rows {
		s += b.y[r]
	}
	return s / float64(len(rows))
}
