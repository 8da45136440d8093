package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Logistic is a binary logistic regression: p1 = sigmoid(coef·x + intercept).
type Logistic struct {
	Coef      []float64 `yaml:"coef"`
	Intercept float64   `yaml:"intercept"`
}

// NumFeatures returns len(Coef).
func (m *Logistic) NumFeatures() int { return len(m.Coef) }

// PredictProba implements Classifier.
func (m *Logistic) PredictProba(x []float64) ([2]float64, error) {
	if err := checkShape(len(m.Coef), x); err != nil {
		return [2]float64{}, err
	}
	p1 := sigmoid(floats.Dot(m.Coef, x) + m.Intercept)
	return [2]float64{1 - p1, p1}, nil
}

// Node is one decision-tree node. A node with Left == LeafIndex is a leaf.
// Forest leaves carry class probabilities [p0, p1] in Value; boosted leaves
// carry a single margin.
type Node struct {
	Feature   int       `yaml:"feature"`
	Threshold float64   `yaml:"threshold"`
	Left      int       `yaml:"left"`
	Right     int       `yaml:"right"`
	Value     []float64 `yaml:"value,omitempty"`
}

// LeafIndex marks a node without children.
const LeafIndex = -1

// Tree is a flat node array rooted at index 0. Children always have a larger
// index than their parent, so every walk terminates.
type Tree struct {
	Nodes []Node `yaml:"nodes"`
}

// leaf walks the tree for x. lessEq selects the split rule: x <= threshold
// goes left when true, x < threshold when false.
func (t *Tree) leaf(x []float64, lessEq bool) *Node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == LeafIndex {
			return n
		}
		v := x[n.Feature]
		if (lessEq && v <= n.Threshold) || (!lessEq && v < n.Threshold) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate(arity, leafWidth int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Left == LeafIndex {
			if n.Right != LeafIndex {
				return fmt.Errorf("node %d: leaf with a right child", i)
			}
			if len(n.Value) != leafWidth {
				return fmt.Errorf("node %d: leaf holds %d values, want %d", i, len(n.Value), leafWidth)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= arity {
			return fmt.Errorf("node %d: feature %d out of range [0, %d)", i, n.Feature, arity)
		}
		for _, child := range []int{n.Left, n.Right} {
			if child <= i || child >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d must be in (%d, %d)", i, child, i, len(t.Nodes))
			}
		}
	}
	return nil
}

// Forest averages the leaf class probabilities of its trees. Splits send
// x <= threshold left.
type Forest struct {
	Trees []Tree `yaml:"trees"`
	arity int
}

// NumFeatures implements Classifier.
func (m *Forest) NumFeatures() int { return m.arity }

// PredictProba implements Classifier.
func (m *Forest) PredictProba(x []float64) ([2]float64, error) {
	if err := checkShape(m.arity, x); err != nil {
		return [2]float64{}, err
	}
	var p [2]float64
	for i := range m.Trees {
		leaf := m.Trees[i].leaf(x, true)
		p[0] += leaf.Value[0]
		p[1] += leaf.Value[1]
	}
	n := float64(len(m.Trees))
	return [2]float64{p[0] / n, p[1] / n}, nil
}

// Boosted sums leaf margins over its trees on top of BaseMargin and maps the
// total through the logistic function. Splits send x < threshold left.
type Boosted struct {
	BaseMargin float64 `yaml:"base_margin"`
	Trees      []Tree  `yaml:"trees"`
	arity      int
}

// NumFeatures implements Classifier.
func (m *Boosted) NumFeatures() int { return m.arity }

// PredictProba implements Classifier.
func (m *Boosted) PredictProba(x []float64) ([2]float64, error) {
	if err := checkShape(m.arity, x); err != nil {
		return [2]float64{}, err
	}
	margin := m.BaseMargin
	for i := range m.Trees {
		margin += m.Trees[i].leaf(x, false).Value[0]
	}
	p1 := sigmoid(margin)
	return [2]float64{1 - p1, p1}, nil
}
