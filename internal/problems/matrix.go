// Package problems provides the objectives the optimizers are benchmarked on.
package problems

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a design matrix that can be applied and transposed-applied to
// vectors. Implementations must be safe for concurrent reads.
type Matrix interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)
	// MulVecTo stores A·x in dst (len r).
	MulVecTo(dst, x []float64)
	// MulTransVecTo stores Aᵀ·y in dst (len c).
	MulTransVecTo(dst, y []float64)
}

// Dense is a row-major dense design matrix backed by gonum.
type Dense struct {
	m *mat.Dense
}

// NewDense creates an r×c dense matrix. data is used directly when non-nil.
func NewDense(r, c int, data []float64) *Dense {
	return &Dense{m: mat.NewDense(r, c, data)}
}

// FromMat wraps an existing gonum matrix.
func FromMat(m *mat.Dense) *Dense {
	return &Dense{m: m}
}

// Identity returns the n×n identity.
func Identity(n int) *Dense {
	d := NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.m.Set(i, i, 1)
	}
	return d
}

func (d *Dense) Dims() (int, int) { return d.m.Dims() }

// Mat exposes the underlying gonum matrix.
func (d *Dense) Mat() *mat.Dense { return d.m }

func (d *Dense) MulVecTo(dst, x []float64) {
	r, c := d.m.Dims()
	out := mat.NewVecDense(r, dst)
	out.MulVec(d.m, mat.NewVecDense(c, x))
}

func (d *Dense) MulTransVecTo(dst, y []float64) {
	r, c := d.m.Dims()
	out := mat.NewVecDense(c, dst)
	out.MulVec(d.m.T(), mat.NewVecDense(r, y))
}

// Diagonal is a square diagonal matrix.
type Diagonal []float64

func (d Diagonal) Dims() (int, int) { return len(d), len(d) }

func (d Diagonal) MulVecTo(dst, x []float64) {
	for i, v := range d {
		dst[i] = v * x[i]
	}
}

func (d Diagonal) MulTransVecTo(dst, y []float64) { d.MulVecTo(dst, y) }

// CSR is a compressed sparse row matrix.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	values     []float64
}

// NewCSR validates and wraps CSR arrays. indptr has rows+1 entries.
func NewCSR(rows, cols int, indptr, indices []int, values []float64) (*CSR, error) {
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("csr: indptr has %d entries, want %d", len(indptr), rows+1)
	}
	if len(indices) != len(values) {
		return nil, fmt.Errorf("csr: %d indices but %d values", len(indices), len(values))
	}
	if indptr[0] != 0 || indptr[rows] != len(values) {
		return nil, fmt.Errorf("csr: indptr must span [0, %d]", len(values))
	}
	for i := 0; i < rows; i++ {
		if indptr[i] > indptr[i+1] {
			return nil, fmt.Errorf("csr: indptr decreases at row %d", i)
		}
	}
	for _, j := range indices {
		if j < 0 || j >= cols {
			return nil, fmt.Errorf("csr: column %d out of range [0, %d)", j, cols)
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, values: values}, nil
}

func (s *CSR) Dims() (int, int) { return s.rows, s.cols }

// NNZ returns the number of stored entries.
func (s *CSR) NNZ() int { return len(s.values) }

// At returns the (i, j) entry.
func (s *CSR) At(i, j int) float64 {
	for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
		if s.indices[k] == j {
			return s.values[k]
		}
	}
	return 0
}

func (s *CSR) MulVecTo(dst, x []float64) {
	for i := 0; i < s.rows; i++ {
		var sum float64
		for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
			sum += s.values[k] * x[s.indices[k]]
		}
		dst[i] = sum
	}
}

func (s *CSR) MulTransVecTo(dst, y []float64) {
	for j := range dst[:s.cols] {
		dst[j] = 0
	}
	for i := 0; i < s.rows; i++ {
		yi := y[i]
		if yi == 0 {
			continue
		}
		for k := s.indptr[i]; k < s.indptr[i+1]; k++ {
			dst[s.indices[k]] += s.values[k] * yi
		}
	}
}

// CSRBuilder accumulates rows of a sparse matrix.
type CSRBuilder struct {
	cols    int
	indptr  []int
	indices []int
	values  []float64
}

// NewCSRBuilder starts an empty matrix.
func NewCSRBuilder() *CSRBuilder {
	return &CSRBuilder{indptr: []int{0}}
}

// AddRow appends a row given its column indices and values. The column
// count grows to fit the largest index seen.
func (b *CSRBuilder) AddRow(indices []int, values []float64) {
	for k, j := range indices {
		if values[k] == 0 {
			continue
		}
		b.indices = append(b.indices, j)
		b.values = append(b.values, values[k])
		if j+1 > b.cols {
			b.cols = j + 1
		}
	}
	b.indptr = append(b.indptr, len(b.values))
}

// Build returns the matrix with at least minCols columns.
func (b *CSRBuilder) Build(minCols int) (*CSR, error) {
	cols := b.cols
	if minCols > cols {
		cols = minCols
	}
	return NewCSR(len(b.indptr)-1, cols, b.indptr, b.indices, b.values)
}
