// Package benchmark runs named optimizer configurations against one
// objective and collects their results for comparison.
package benchmark

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/aimbench/internal/dataset"
	"github.com/copyleftdev/aimbench/internal/optimization"
	"github.com/copyleftdev/aimbench/internal/problems"
)

// Problem kinds.
const (
	KindLp        = "lp"
	KindLogistic  = "logistic"
	KindQuadratic = "quadratic"
)

// Limits on generated problems accepted from suite files.
const (
	MaxGeneratedEntries = 10_000_000
	MaxOptimizers       = 64
)

// Suite is one benchmark scenario: a problem and the optimizers to compare on it.
type Suite struct {
	Name       string          `yaml:"name" json:"name"`
	Problem    ProblemSpec     `yaml:"problem" json:"problem"`
	Optimizers []OptimizerSpec `yaml:"optimizers" json:"optimizers"`
}

// ProblemSpec describes how to build the objective.
//
// Lp and logistic problems use generated sparse data of shape Rows×Cols
// unless Data names an svmlight file. Logistic labels for generated data are
// 1 where the regression target is positive. Quadratic problems are
// ½Σ d_i x_i² - bᵀx over Diagonal.
type ProblemSpec struct {
	Kind     string  `yaml:"kind" json:"kind"`
	Rows     int     `yaml:"rows,omitempty" json:"rows,omitempty"`
	Cols     int     `yaml:"cols,omitempty" json:"cols,omitempty"`
	Sparsity float64 `yaml:"sparsity,omitempty" json:"sparsity,omitempty"`
	Seed     uint64  `yaml:"seed,omitempty" json:"seed,omitempty"`
	Data     string  `yaml:"data,omitempty" json:"data,omitempty"`

	// P and Epsilon parameterize the smoothed L_p penalty.
	P       float64 `yaml:"p,omitempty" json:"p,omitempty"`
	Epsilon float64 `yaml:"epsilon,omitempty" json:"epsilon,omitempty"`
	// Lambda is the logistic L2 weight.
	Lambda float64 `yaml:"lambda,omitempty" json:"lambda,omitempty"`

	Diagonal []float64 `yaml:"diagonal,omitempty" json:"diagonal,omitempty"`
	Linear   []float64 `yaml:"linear,omitempty" json:"linear,omitempty"`

	// X0 is the starting point; zero when omitted.
	X0 []float64 `yaml:"x0,omitempty" json:"x0,omitempty"`
}

// OptimizerSpec is a named optimizer configuration.
type OptimizerSpec struct {
	Name      string              `yaml:"name" json:"name"`
	Algorithm string              `yaml:"algorithm" json:"algorithm"`
	Params    optimization.Params `yaml:"params,omitempty" json:"params,omitempty"`
}

// ParseSuite decodes a YAML (or JSON) suite and validates it.
func ParseSuite(r io.Reader) (*Suite, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, errors.Wrap(err, "decoding suite")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSuite reads a suite file. A relative Data path is resolved against
// the suite file's directory.
func LoadSuite(path string) (*Suite, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading suite")
	}
	s, err := ParseSuite(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if s.Problem.Data != "" && !filepath.IsAbs(s.Problem.Data) {
		s.Problem.Data = filepath.Join(filepath.Dir(path), s.Problem.Data)
	}
	return s, nil
}

// LoadSuiteDir reads every *.yaml and *.yml file in dir, in name order.
func LoadSuiteDir(dir string) ([]*Suite, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrap(err, "listing suites")
		}
		paths = append(paths, m...)
	}

	suites := make([]*Suite, 0, len(paths))
	for _, p := range paths {
		s, err := LoadSuite(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Validate checks the suite for structural errors. Hyperparameter values are
// not validated; unknown parameter names are ignored by the optimizers.
func (s *Suite) Validate() error {
	if s.Name == "" {
		return errors.New("suite: name is required")
	}
	if len(s.Optimizers) == 0 {
		return errors.Errorf("suite %s: no optimizers", s.Name)
	}
	if len(s.Optimizers) > MaxOptimizers {
		return errors.Errorf("suite %s: %d optimizers, at most %d", s.Name, len(s.Optimizers), MaxOptimizers)
	}

	seen := make(map[string]bool, len(s.Optimizers))
	for i, o := range s.Optimizers {
		if o.Name == "" {
			return errors.Errorf("suite %s: optimizer %d has no name", s.Name, i)
		}
		if seen[o.Name] {
			return errors.Errorf("suite %s: duplicate optimizer name %q", s.Name, o.Name)
		}
		seen[o.Name] = true
		if _, err := NewOptimizer(o.Algorithm, o.Params); err != nil {
			return errors.Wrapf(err, "suite %s: optimizer %s", s.Name, o.Name)
		}
	}
	return errors.Wrapf(s.Problem.validate(), "suite %s", s.Name)
}

func (p *ProblemSpec) validate() error {
	switch p.Kind {
	case KindLp, KindLogistic:
		if p.Data != "" {
			return nil
		}
		if p.Rows <= 0 || p.Cols <= 0 {
			return errors.Errorf("problem: %s needs rows and cols or a data file", p.Kind)
		}
		if int64(p.Rows)*int64(p.Cols) > MaxGeneratedEntries {
			return errors.Errorf("problem: %dx%d exceeds %d entries", p.Rows, p.Cols, MaxGeneratedEntries)
		}
		if p.Sparsity <= 0 || p.Sparsity > 1 {
			return errors.Errorf("problem: sparsity %v outside (0, 1]", p.Sparsity)
		}
	case KindQuadratic:
		if len(p.Diagonal) == 0 {
			return errors.New("problem: quadratic needs a diagonal")
		}
		if p.Linear != nil && len(p.Linear) != len(p.Diagonal) {
			return errors.Errorf("problem: linear term has %d entries, want %d", len(p.Linear), len(p.Diagonal))
		}
	default:
		return errors.Errorf("problem: unknown kind %q (want lp, logistic or quadratic)", p.Kind)
	}
	return nil
}

// Build constructs the objective and the starting point.
func (p *ProblemSpec) Build() (optimization.Objective, []float64, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	var (
		obj optimization.Objective
		dim int
	)
	switch p.Kind {
	case KindQuadratic:
		q, err := problems.NewQuadratic(problems.Diagonal(p.Diagonal), p.Linear)
		if err != nil {
			return nil, nil, errors.Wrap(err, "problem")
		}
		obj, dim = q, len(p.Diagonal)

	case KindLp:
		a, b, err := p.data(false)
		if err != nil {
			return nil, nil, err
		}
		eps, pw := p.Epsilon, p.P
		if eps == 0 {
			eps = 0.1
		}
		if pw == 0 {
			pw = 0.5
		}
		lp, err := problems.NewSmoothedLpL2(a, b, eps, pw)
		if err != nil {
			return nil, nil, errors.Wrap(err, "problem")
		}
		obj, dim = lp, lp.Dim()

	case KindLogistic:
		a, b, err := p.data(true)
		if err != nil {
			return nil, nil, err
		}
		lambda := p.Lambda
		if lambda == 0 {
			lambda = 1
		}
		lr, err := problems.NewLogisticRegressionL2(a, b, lambda)
		if err != nil {
			return nil, nil, errors.Wrap(err, "problem")
		}
		obj, dim = lr, lr.Dim()
	}

	x0 := make([]float64, dim)
	if p.X0 != nil {
		if len(p.X0) != dim {
			return nil, nil, errors.Errorf("problem: x0 has %d entries, want %d", len(p.X0), dim)
		}
		copy(x0, p.X0)
	}
	return obj, x0, nil
}

// data returns the design matrix and targets, binarized for classification.
func (p *ProblemSpec) data(classify bool) (problems.Matrix, []float64, error) {
	if p.Data != "" {
		a, labels, err := dataset.LoadSVMLightFile(p.Data)
		if err != nil {
			return nil, nil, err
		}
		if classify {
			labels = dataset.BinarizeLabels(labels)
		}
		return a, labels, nil
	}

	seed := p.Seed
	if seed == 0 {
		seed = dataset.DefaultSeed
	}
	ds, err := dataset.GenerateSparseRegression(p.Rows, p.Cols, p.Sparsity, seed)
	if err != nil {
		return nil, nil, err
	}
	b := ds.B
	if classify {
		b = make([]float64, len(ds.B))
		for i, v := range ds.B {
			if v > 0 {
				b[i] = 1
			}
		}
	}
	return ds.A, b, nil
}
