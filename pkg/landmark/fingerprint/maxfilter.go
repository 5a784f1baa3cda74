package fingerprint

import "context"

// Footprint selects the neighbourhood used by the local-maximum test.
type Footprint int

const (
	// ShapeDiamond covers every cell within Manhattan distance N.
	ShapeDiamond Footprint = iota
	// ShapeSquare covers the (2N+1)x(2N+1) box.
	ShapeSquare
)

func (f Footprint) String() string {
	switch f {
	case ShapeDiamond:
		return "diamond"
	case ShapeSquare:
		return "square"
	default:
		return "unknown"
	}
}

// maxFilter returns, for every cell, the maximum over the footprint of radius
// n centred on it. Cells outside the grid are ignored.
func maxFilter(ctx context.Context, values [][]float64, n int, shape Footprint) ([][]float64, error) {
	switch shape {
	case ShapeSquare:
		return squareMax(ctx, values, n)
	default:
		return diamondMax(ctx, values, n)
	}
}

// diamondMax dilates with the radius-1 cross n times. Inside a rectangle every
// cell at Manhattan distance <= n is reachable in n in-bounds steps, so the
// result is exactly the diamond maximum.
func diamondMax(ctx context.Context, values [][]float64, n int) ([][]float64, error) {
	cur := cloneGrid(values)
	if n <= 0 {
		return cur, nil
	}
	next := cloneGrid(values)
	rows, cols := len(cur), len(cur[0])

	for iter := 0; iter < n; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for f := 0; f < rows; f++ {
			row := cur[f]
			out := next[f]
			for t := 0; t < cols; t++ {
				m := row[t]
				if t > 0 && row[t-1] > m {
					m = row[t-1]
				}
				if t+1 < cols && row[t+1] > m {
					m = row[t+1]
				}
				if f > 0 && cur[f-1][t] > m {
					m = cur[f-1][t]
				}
				if f+1 < rows && cur[f+1][t] > m {
					m = cur[f+1][t]
				}
				out[t] = m
			}
		}
		cur, next = next, cur
	}
	return cur, nil
}

// squareMax runs two separable 1-D passes, along time then along frequency.
func squareMax(ctx context.Context, values [][]float64, n int) ([][]float64, error) {
	rows, cols := len(values), len(values[0])
	if n <= 0 {
		return cloneGrid(values), nil
	}

	horiz := make([][]float64, rows)
	for f := 0; f < rows; f++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		horiz[f] = slidingMax(values[f], n)
	}

	out := make([][]float64, rows)
	for f := range out {
		out[f] = make([]float64, cols)
	}
	column := make([]float64, rows)
	for t := 0; t < cols; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for f := 0; f < rows; f++ {
			column[f] = horiz[f][t]
		}
		for f, m := range slidingMax(column, n) {
			out[f][t] = m
		}
	}
	return out, nil
}

// slidingMax computes the max of line[i-n : i+n+1] (clipped) for every i using a
// monotonic deque of indices.
func slidingMax(line []float64, n int) []float64 {
	out := make([]float64, len(line))
	deque := make([]int, 0, 2*n+1)
	next := 0
	for i := range line {
		hi := min(i+n, len(line)-1)
		for ; next <= hi; next++ {
			for len(deque) > 0 && line[deque[len(deque)-1]] <= line[next] {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, next)
		}
		for deque[0] < i-n {
			deque = deque[1:]
		}
		out[i] = line[deque[0]]
	}
	return out
}

func cloneGrid(values [][]float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, row := range values {
		out[i] = append([]float64(nil), row...)
	}
	return out
}
