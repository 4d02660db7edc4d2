package core

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/XiaoConstantine/smac-go/pkg/errors"
)

// Parameter types understood by a Space.
const (
	ParamFloat       = "float"
	ParamInt         = "int"
	ParamCategorical = "categorical"
)

// Parameter declares a single dimension of the search space.
type Parameter struct {
	Name    string        `yaml:"name" validate:"required"`
	Type    string        `yaml:"type" validate:"required,oneof=float int categorical"`
	Lower   float64       `yaml:"lower,omitempty"`
	Upper   float64       `yaml:"upper,omitempty"`
	Log     bool          `yaml:"log,omitempty"`
	Choices []interface{} `yaml:"choices,omitempty"`
}

// Space is the typed parameter table configurations are drawn from. The core
// never decides which configuration to try next; Space only validates value
// maps, rebuilds configurations from persisted values and offers uniform
// sampling as a convenience for drivers and tests.
type Space struct {
	params []Parameter
	byName map[string]Parameter
}

// NewSpace validates the parameter declarations and builds a space over them.
func NewSpace(params []Parameter) (*Space, error) {
	if len(params) == 0 {
		return nil, errors.New(errors.InvalidInput, "space requires at least one parameter")
	}

	byName := make(map[string]Parameter, len(params))
	for _, p := range params {
		if p.Name == "" {
			return nil, errors.New(errors.InvalidInput, "parameter name must not be empty")
		}
		if _, exists := byName[p.Name]; exists {
			return nil, errors.New(errors.InvalidInput,
				fmt.Sprintf("duplicate parameter name: %s", p.Name))
		}

		switch p.Type {
		case ParamFloat, ParamInt:
			if p.Lower >= p.Upper {
				return nil, errors.WithFields(
					errors.New(errors.InvalidInput, "parameter bounds must satisfy lower < upper"),
					errors.Fields{"parameter": p.Name, "lower": p.Lower, "upper": p.Upper})
			}
			if p.Log && p.Lower <= 0 {
				return nil, errors.WithFields(
					errors.New(errors.InvalidInput, "log-scaled parameter requires a positive lower bound"),
					errors.Fields{"parameter": p.Name, "lower": p.Lower})
			}
		case ParamCategorical:
			if len(p.Choices) == 0 {
				return nil, errors.WithFields(
					errors.New(errors.InvalidInput, "categorical parameter requires choices"),
					errors.Fields{"parameter": p.Name})
			}
		default:
			return nil, errors.WithFields(
				errors.New(errors.InvalidInput, fmt.Sprintf("unknown parameter type: %s", p.Type)),
				errors.Fields{"parameter": p.Name})
		}

		byName[p.Name] = p
	}

	return &Space{params: params, byName: byName}, nil
}

// Parameters returns the declared parameters in declaration order.
func (s *Space) Parameters() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Sample draws a uniform random configuration. Float and int parameters draw
// uniformly between their bounds (log-uniform when Log is set), categoricals
// draw a uniform choice.
func (s *Space) Sample(rng *rand.Rand) *Configuration {
	values := make(map[string]interface{}, len(s.params))
	for _, p := range s.params {
		switch p.Type {
		case ParamFloat:
			values[p.Name] = s.sampleFloat(rng, p)
		case ParamInt:
			values[p.Name] = int64(math.Round(s.sampleFloat(rng, p)))
		case ParamCategorical:
			values[p.Name] = p.Choices[rng.Intn(len(p.Choices))]
		}
	}
	cfg := NewConfiguration(values)
	cfg.SetOrigin(OriginRandomSearch)
	return cfg
}

func (s *Space) sampleFloat(rng *rand.Rand, p Parameter) float64 {
	if p.Log {
		lo, hi := math.Log(p.Lower), math.Log(p.Upper)
		return math.Exp(lo + rng.Float64()*(hi-lo))
	}
	return p.Lower + rng.Float64()*(p.Upper-p.Lower)
}

// FromValues validates a raw value map against the space and builds a
// configuration from it, coercing numerics to the declared parameter type so
// identity stays stable across serialization boundaries.
func (s *Space) FromValues(values map[string]interface{}) (*Configuration, error) {
	if len(values) != len(s.params) {
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "value map does not cover the space"),
			errors.Fields{"want": len(s.params), "got": len(values)})
	}

	coerced := make(map[string]interface{}, len(values))
	for name, raw := range values {
		p, ok := s.byName[name]
		if !ok {
			return nil, errors.WithFields(
				errors.New(errors.ValidationFailed, "value for undeclared parameter"),
				errors.Fields{"parameter": name})
		}

		v, err := coerceValue(p, raw)
		if err != nil {
			return nil, err
		}
		coerced[name] = v
	}

	return NewConfiguration(coerced), nil
}

func coerceValue(p Parameter, raw interface{}) (interface{}, error) {
	switch p.Type {
	case ParamFloat:
		f, ok := toFloat(raw)
		if !ok {
			return nil, typeError(p, raw)
		}
		if f < p.Lower || f > p.Upper {
			return nil, boundsError(p, f)
		}
		return f, nil

	case ParamInt:
		f, ok := toFloat(raw)
		if !ok || f != math.Trunc(f) {
			return nil, typeError(p, raw)
		}
		if f < p.Lower || f > p.Upper {
			return nil, boundsError(p, f)
		}
		return int64(f), nil

	case ParamCategorical:
		for _, choice := range p.Choices {
			if valuesEqual(choice, raw) {
				return choice, nil
			}
		}
		return nil, errors.WithFields(
			errors.New(errors.ValidationFailed, "value is not one of the declared choices"),
			errors.Fields{"parameter": p.Name, "value": raw})
	}
	return nil, typeError(p, raw)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// valuesEqual compares a declared choice with a raw value, treating equal
// numerics of different Go types as the same choice.
func valuesEqual(choice, raw interface{}) bool {
	if cf, ok := toFloat(choice); ok {
		rf, rok := toFloat(raw)
		return rok && cf == rf
	}
	return choice == raw
}

func typeError(p Parameter, raw interface{}) error {
	return errors.WithFields(
		errors.New(errors.ValidationFailed, fmt.Sprintf("value has wrong type for %s parameter", p.Type)),
		errors.Fields{"parameter": p.Name, "value": raw})
}

func boundsError(p Parameter, v float64) error {
	return errors.WithFields(
		errors.New(errors.ValidationFailed, "value outside parameter bounds"),
		errors.Fields{"parameter": p.Name, "value": v, "lower": p.Lower, "upper": p.Upper})
}
