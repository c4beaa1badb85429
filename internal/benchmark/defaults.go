package benchmark

import (
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/pkg/errors"
)

// Built-in scenarios: smoothed L_p regression on generated data for
// p in {0.5, 1, 2} over five shapes, and logistic regression on the
// real-sim svmlight file (expected at Data/real-sim relative to the working
// directory) for lambda in {1e-5, 1e-6, 1e-7}.
//
//go:embed suites/*.yaml
var builtin embed.FS

// DefaultSuites returns the built-in suites sorted by name.
func DefaultSuites() ([]*Suite, error) {
	names, err := fs.Glob(builtin, "suites/*.yaml")
	if err != nil {
		return nil, errors.Wrap(err, "listing built-in suites")
	}
	sort.Strings(names)

	suites := make([]*Suite, 0, len(names))
	for _, name := range names {
		s, err := openBuiltin(name)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// DefaultSuite returns the built-in suite with the given name.
func DefaultSuite(name string) (*Suite, error) {
	s, err := openBuiltin(path.Join("suites", name+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Errorf("no built-in suite %q", name)
	}
	return s, err
}

func openBuiltin(name string) (*Suite, error) {
	f, err := builtin.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ParseSuite(f)
	if err != nil {
		return nil, errors.Wrapf(err, "built-in suite %s", name)
	}
	return s, nil
}
