package timeseries

import (
	"fmt"
	"math"
	"time"
)

// JoinKind selects which rows survive a join.
type JoinKind int

const (
	// LeftJoin keeps every row of the left frame; right columns are NaN where the
	// right frame has no row with the same timestamp.
	LeftJoin JoinKind = iota
	// InnerJoin keeps only timestamps present in both frames.
	InnerJoin
)

func (k JoinKind) String() string {
	switch k {
	case LeftJoin:
		return "left"
	case InnerJoin:
		return "inner"
	}
	return fmt.Sprintf("JoinKind(%d)", int(k))
}

// Join merges right into left on exact timestamp equality, keeping the left row
// order. Column names must not collide. When the right frame repeats a timestamp
// the first occurrence is used.
func Join(left, right *Frame, kind JoinKind) (*Frame, error) {
	for _, name := range right.columns {
		if left.Has(name) {
			return nil, fmt.Errorf("column %q present in both frames", name)
		}
	}

	lookup := make(map[int64]int, right.Len())
	for i, t := range right.index {
		key := t.UnixNano()
		if _, seen := lookup[key]; !seen {
			lookup[key] = i
		}
	}

	leftRows := make([]int, 0, left.Len())
	rightRows := make([]int, 0, left.Len())
	for i, t := range left.index {
		j, ok := lookup[t.UnixNano()]
		if !ok {
			if kind == InnerJoin {
				continue
			}
			j = -1
		}
		leftRows = append(leftRows, i)
		rightRows = append(rightRows, j)
	}

	base := left.Take(leftRows)
	index := make([]time.Time, len(leftRows))
	copy(index, base.index)

	names := base.Columns()
	values := make([][]float64, 0, len(names)+len(right.columns))
	for _, name := range names {
		values = append(values, base.data[name])
	}
	for _, name := range right.columns {
		src := right.data[name]
		dst := make([]float64, len(rightRows))
		for k, j := range rightRows {
			if j < 0 {
				dst[k] = math.NaN()
				continue
			}
			dst[k] = src[j]
		}
		names = append(names, name)
		values = append(values, dst)
	}
	return New(index, names, values)
}
