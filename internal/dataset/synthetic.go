// Package dataset builds the design matrices and targets the benchmarks run on.
package dataset

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/copyleftdev/aimbench/internal/problems"
)

// DefaultSeed is the seed the benchmark suites use for generated data.
const DefaultSeed = 42

// SparseRegression is a generated least-squares instance b = A·v + δ.
type SparseRegression struct {
	A *problems.CSR
	B []float64
	// Truth is the planted coefficient vector v.
	Truth []float64
}

// GenerateSparseRegression draws an m×n design with ⌊m·n·sparsity⌋ standard
// normal entries at distinct random positions. Half of the planted
// coefficients (chosen by a fair coin) are zero and the rest are N(0, 1/n);
// the noise δ is standard normal. The output is fully determined by seed.
func GenerateSparseRegression(m, n int, sparsity float64, seed uint64) (*SparseRegression, error) {
	if m <= 0 || n <= 0 {
		return nil, errors.Errorf("dataset: invalid shape %dx%d", m, n)
	}
	if sparsity < 0 || sparsity > 1 || math.IsNaN(sparsity) {
		return nil, errors.Errorf("dataset: sparsity %v outside [0, 1]", sparsity)
	}

	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	nnz := int(float64(m*n) * sparsity)
	flat := make([]int, nnz)
	if nnz > 0 {
		sampleuv.WithoutReplacement(flat, m*n, src)
	}
	sort.Ints(flat)

	b := problems.NewCSRBuilder()
	k := 0
	for i := 0; i < m; i++ {
		var idx []int
		var vals []float64
		for ; k < nnz && flat[k]/n == i; k++ {
			idx = append(idx, flat[k]%n)
			vals = append(vals, normal.Rand())
		}
		b.AddRow(idx, vals)
	}
	a, err := b.Build(n)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: building design matrix")
	}

	coin := distuv.Bernoulli{P: 0.5, Src: src}
	small := distuv.Normal{Mu: 0, Sigma: math.Sqrt(1 / float64(n)), Src: src}
	truth := make([]float64, n)
	for j := range truth {
		if coin.Rand() == 0 {
			truth[j] = small.Rand()
		}
	}

	rhs := make([]float64, m)
	a.MulVecTo(rhs, truth)
	for i := range rhs {
		rhs[i] += normal.Rand()
	}

	return &SparseRegression{A: a, B: rhs, Truth: truth}, nil
}
