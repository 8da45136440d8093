package classifier

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mealphase/mealphase/contract"
)

// ArtifactVersion identifies the serialized ensemble layout.
const ArtifactVersion = "1"

// Artifact is the on-disk description of a soft-voting ensemble.
type Artifact struct {
	Version     string       `yaml:"version"`
	NumFeatures int          `yaml:"num_features"`
	Members     []MemberSpec `yaml:"members"`
}

// MemberSpec describes one voter. Exactly one model field must be set.
// A nil Weight counts as 1.
type MemberSpec struct {
	Name     string    `yaml:"name"`
	Weight   *float64  `yaml:"weight,omitempty"`
	Logistic *Logistic `yaml:"logistic,omitempty"`
	Forest   *Forest   `yaml:"forest,omitempty"`
	Boosted  *Boosted  `yaml:"boosted,omitempty"`
}

type member struct {
	name   string
	weight float64
	model  Classifier
}

// Ensemble averages member probabilities with their weights.
type Ensemble struct {
	arity       int
	members     []member
	totalWeight float64
}

// NumFeatures implements Classifier.
func (e *Ensemble) NumFeatures() int { return e.arity }

// Members returns the member names in voting order.
func (e *Ensemble) Members() []string {
	names := make([]string, len(e.members))
	for i, m := range e.members {
		names[i] = m.name
	}
	return names
}

// PredictProba implements Classifier.
func (e *Ensemble) PredictProba(x []float64) ([2]float64, error) {
	if err := checkShape(e.arity, x); err != nil {
		return [2]float64{}, err
	}
	var p [2]float64
	for _, m := range e.members {
		mp, err := m.model.PredictProba(x)
		if err != nil {
			return [2]float64{}, fmt.Errorf("member %q: %w", m.name, err)
		}
		p[0] += m.weight * mp[0]
		p[1] += m.weight * mp[1]
	}
	return [2]float64{p[0] / e.totalWeight, p[1] / e.totalWeight}, nil
}

// Build validates an artifact and assembles the ensemble.
func Build(a *Artifact) (*Ensemble, error) {
	if a.Version != ArtifactVersion {
		return nil, fmt.Errorf("unsupported model version %q, want %q", a.Version, ArtifactVersion)
	}
	if a.NumFeatures <= 0 {
		return nil, fmt.Errorf("num_features must be positive, got %d", a.NumFeatures)
	}
	if len(a.Members) == 0 {
		return nil, fmt.Errorf("ensemble has no members")
	}
	e := &Ensemble{arity: a.NumFeatures}
	for i := range a.Members {
		spec := &a.Members[i]
		prefix := fmt.Sprintf("members[%d]", i)
		if spec.Name != "" {
			prefix = fmt.Sprintf("member %q", spec.Name)
		}
		model, err := buildMember(spec, a.NumFeatures)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prefix, err)
		}
		weight := 1.0
		if spec.Weight != nil {
			weight = *spec.Weight
		}
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
			return nil, fmt.Errorf("%s: weight must be finite and non-negative, got %v", prefix, weight)
		}
		e.members = append(e.members, member{name: spec.Name, weight: weight, model: model})
		e.totalWeight += weight
	}
	if e.totalWeight == 0 {
		return nil, fmt.Errorf("ensemble weights sum to zero")
	}
	return e, nil
}

func buildMember(spec *MemberSpec, arity int) (Classifier, error) {
	set := 0
	for _, present := range []bool{spec.Logistic != nil, spec.Forest != nil, spec.Boosted != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of logistic, forest, boosted must be set, got %d", set)
	}

	switch {
	case spec.Logistic != nil:
		if len(spec.Logistic.Coef) != arity {
			return nil, fmt.Errorf("logistic: %d coefficients, want %d", len(spec.Logistic.Coef), arity)
		}
		return spec.Logistic, nil
	case spec.Forest != nil:
		if err := validateTrees(spec.Forest.Trees, arity, 2); err != nil {
			return nil, fmt.Errorf("forest: %w", err)
		}
		spec.Forest.arity = arity
		return spec.Forest, nil
	default:
		if err := validateTrees(spec.Boosted.Trees, arity, 1); err != nil {
			return nil, fmt.Errorf("boosted: %w", err)
		}
		spec.Boosted.arity = arity
		return spec.Boosted, nil
	}
}

func validateTrees(trees []Tree, arity, leafWidth int) error {
	if len(trees) == 0 {
		return fmt.Errorf("no trees")
	}
	for i := range trees {
		if err := trees[i].validate(arity, leafWidth); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Load reads an ensemble artifact with strict field checking. Every failure
// wraps contract.ErrArtifactLoad.
func Load(path string) (*Ensemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading model: %v", contract.ErrArtifactLoad, err)
	}
	return Parse(data)
}

// Parse decodes and builds an ensemble artifact.
func Parse(data []byte) (*Ensemble, error) {
	var a Artifact
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: parsing model: %v", contract.ErrArtifactLoad, err)
	}
	e, err := Build(&a)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contract.ErrArtifactLoad, err)
	}
	return e, nil
}
