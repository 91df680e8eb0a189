package graph

import (
	"math"
	"sort"
)

// pageRank runs personalized PageRank over the citation adjacency.
// A node's rank flows to the nodes it cites; dangling mass returns to the
// personalization vector. It returns ranks normalized by their maximum and
// the number of iterations used.
func pageRank(out [][]int, personal []float64, damping, epsilon float64, maxIter int) ([]float64, int) {
	n := len(personal)
	if n == 0 {
		return nil, 0
	}

	p := make([]float64, n)
	total := 0.0
	for _, v := range personal {
		total += v
	}
	for i, v := range personal {
		if total > 0 {
			p[i] = v / total
		} else {
			p[i] = 1 / float64(n)
		}
	}

	rank := append([]float64(nil), p...)
	next := make([]float64, n)
	iterations := 0

	for iterations < maxIter {
		iterations++

		dangling := 0.0
		for i := range rank {
			if len(out[i]) == 0 {
				dangling += rank[i]
			}
		}
		for i := range next {
			next[i] = (1-damping)*p[i] + damping*dangling*p[i]
		}
		for i, targets := range out {
			if len(targets) == 0 {
				continue
			}
			share := damping * rank[i] / float64(len(targets))
			for _, t := range targets {
				next[t] += share
			}
		}

		delta := 0.0
		for i := range rank {
			delta += math.Abs(next[i] - rank[i])
		}
		rank, next = next, rank
		if delta < epsilon {
			break
		}
	}

	max := 0.0
	for _, v := range rank {
		if v > max {
			max = v
		}
	}
	if max > 0 {
		for i := range rank {
			rank[i] /= max
		}
	}
	return rank, iterations
}

// citationCycles returns the strongly connected components with more than
// one node, each sorted ascending, ordered by their smallest id
func citationCycles(out [][]int) [][]int {
	n := len(out)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	var (
		stack   []int
		counter int
		cycles  [][]int
	)

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range out[v] {
			if index[w] < 0 {
				strongConnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && index[w] < low[v] {
				low[v] = index[w]
			}
		}

		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		if len(comp) > 1 {
			sort.Ints(comp)
			cycles = append(cycles, comp)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] < 0 {
			strongConnect(v)
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// unionFind groups nodes into source families
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Smaller root wins so ids stay stable under input permutation
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
