package benchmark

import (
	"sort"
	"strings"

	"github.com/copyleftdev/aimbench/internal/optimization"
	"github.com/copyleftdev/aimbench/internal/optimization/firstorder"
	"github.com/copyleftdev/aimbench/internal/optimization/subspace"
)

type constructor func(p optimization.Params) (optimization.Optimizer, error)

var registry = map[string]constructor{
	"gd": func(p optimization.Params) (optimization.Optimizer, error) {
		return firstorder.NewGradientDescent(firstorder.GDConfigFromParams(p)), nil
	},
	"hb": func(p optimization.Params) (optimization.Optimizer, error) {
		return firstorder.NewHeavyBall(firstorder.HeavyBallConfigFromParams(p)), nil
	},
	"nag": func(p optimization.Params) (optimization.Optimizer, error) {
		return firstorder.NewNesterov(firstorder.NesterovConfigFromParams(p)), nil
	},
	"adagrad": func(p optimization.Params) (optimization.Optimizer, error) {
		return firstorder.NewAdagrad(firstorder.AdagradConfigFromParams(p)), nil
	},
	"adam": func(p optimization.Params) (optimization.Optimizer, error) {
		return firstorder.NewAdam(firstorder.AdamConfigFromParams(p)), nil
	},
	"drsom": func(p optimization.Params) (optimization.Optimizer, error) {
		return subspace.NewDRSOM(subspace.DRSOMConfigFromParams(p)), nil
	},
	"aim": func(p optimization.Params) (optimization.Optimizer, error) {
		cfg, err := subspace.AIMConfigFromParams(p)
		if err != nil {
			return nil, err
		}
		o, err := subspace.NewAIM(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	},
}

// Algorithms returns the names accepted by NewOptimizer, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewOptimizer builds the named algorithm with params merged over its
// defaults. Names are case-insensitive.
func NewOptimizer(algorithm string, params optimization.Params) (optimization.Optimizer, error) {
	ctor, ok := registry[strings.ToLower(algorithm)]
	if !ok {
		return nil, optimization.WrapErrorf(optimization.ErrUnknownAlgorithm,
			"%q (want one of %s)", algorithm, strings.Join(Algorithms(), ", ")).
			WithOperation("NewOptimizer")
	}
	return ctor(params)
}
