package forest

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one entry of a flattened tree. Leaves have Feature == -1.
// Samples with x[Feature] <= Threshold go Left.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	// Value is the fraction of pathogenic training samples in the node.
	Value   float64 `json:"v"`
	Samples int     `json:"n"`
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return n.Feature < 0 }

// Tree is a CART classification tree stored as a flat node array; Nodes[0]
// is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
}

// builder grows one tree from a bootstrap sample.
type builder struct {
	X          [][]float64
	y          []int
	params     treeParams
	rng        *rand.Rand
	tree       Tree
	importance []float64
}

func newBuilder(X [][]float64, y []int, params treeParams, rng *rand.Rand) *builder {
	p := 0
	if len(X) > 0 {
		p = len(X[0])
	}
	return &builder{X: X, y: y, params: params, rng: rng, importance: make([]float64, p)}
}

func gini(pos, n int) float64 {
	if n == 0 {
		return 0
	}
	f := float64(pos) / float64(n)
	return 2 * f * (1 - f)
}

func (b *builder) countPositive(idx []int) int {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	return pos
}

// grow appends the subtree over idx and returns its node index.
func (b *builder) grow(idx []int, depth int) int {
	n := len(idx)
	pos := b.countPositive(idx)
	self := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Feature: -1, Value: float64(pos) / float64(n), Samples: n})

	if pos == 0 || pos == n ||
		n < b.params.minSamplesSplit ||
		n < 2*b.params.minSamplesLeaf ||
		(b.params.maxDepth > 0 && depth >= b.params.maxDepth) {
		return self
	}

	feature, threshold, decrease, ok := b.bestSplit(idx, pos)
	if !ok {
		return self
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	b.importance[feature] += decrease

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[self].Feature = feature
	b.tree.Nodes[self].Threshold = threshold
	b.tree.Nodes[self].Left = l
	b.tree.Nodes[self].Right = r
	return self
}

// bestSplit searches a random subset of features for the split with the
// largest weighted gini decrease.
func (b *builder) bestSplit(idx []int, pos int) (feature int, threshold, decrease float64, ok bool) {
	n := len(idx)
	parent := float64(n) * gini(pos, n)
	p := len(b.importance)

	candidates := b.rng.Perm(p)
	if b.params.maxFeatures > 0 && b.params.maxFeatures < p {
		candidates = candidates[:b.params.maxFeatures]
	}

	sorted := make([]int, n)
	best := 1e-12
	for _, f := range candidates {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		leftPos := 0
		for k := 0; k < n-1; k++ {
			leftPos += b.y[sorted[k]]
			lo, hi := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl, nr := k+1, n-k-1
			if nl < b.params.minSamplesLeaf || nr < b.params.minSamplesLeaf {
				continue
			}
			d := parent - float64(nl)*gini(leftPos, nl) - float64(nr)*gini(pos-leftPos, nr)
			if d > best {
				best = d
				feature, threshold, decrease, ok = f, lo+(hi-lo)/2, d, true
			}
		}
	}
	return feature, threshold, decrease, ok
}

// normalizedImportance scales impurity decreases to sum to one; a tree
// without splits contributes zeros.
func (b *builder) normalizedImportance() []float64 {
	var total float64
	for _, v := range b.importance {
		total += v
	}
	out := make([]float64, len(b.importance))
	if total <= 0 || math.IsNaN(total) {
		return out
	}
	for j, v := range b.importance {
		out[j] = v / total
	}
	return out
}
