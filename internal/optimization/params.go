package optimization

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Default stopping rule shared by every algorithm.
const (
	DefaultMaxIter = 10000
	DefaultGtol    = 1e-6
)

// Params is a set of named hyperparameters as supplied by a caller, for
// example decoded from a suite file or a request body. Values may be any
// numeric type, a json.Number or a numeric string. Names an algorithm does
// not recognise are ignored and malformed values fall back to the default.
type Params map[string]interface{}

// Float returns the named value as float64, or def when absent.
func (p Params) Float(name string, def float64) float64 {
	v, ok := p[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns the named value as int, or def when absent.
func (p Params) Int(name string, def int) int {
	v, ok := p[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

// String returns the named value as a string, or def when absent.
func (p Params) String(name, def string) string {
	v, ok := p[name]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Has reports whether name is set.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Merge returns a new Params holding p overlaid with other.
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Stopping is the termination rule common to all algorithms.
type Stopping struct {
	// MaxIter caps the number of outer iterations.
	MaxIter int `json:"max_iter" yaml:"max_iter"`
	// Gtol stops the run once the recorded gradient norm drops below it.
	Gtol float64 `json:"gtol" yaml:"gtol"`
}

// DefaultStopping returns max_iter=10000, gtol=1e-6.
func DefaultStopping() Stopping {
	return Stopping{MaxIter: DefaultMaxIter, Gtol: DefaultGtol}
}

// WithParams overrides max_iter and gtol from p.
func (s Stopping) WithParams(p Params) Stopping {
	s.MaxIter = p.Int("max_iter", s.MaxIter)
	s.Gtol = p.Float("gtol", s.Gtol)
	return s
}
