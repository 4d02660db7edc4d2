package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Scenario carries the run-level settings shared by every component: what the
// objectives are, which instances exist, the budget range and how many workers
// the caller intends to drive.
type Scenario struct {
	Name          string   `yaml:"name" validate:"required"`
	Seed          int64    `yaml:"seed"`
	Deterministic bool     `yaml:"deterministic"`
	Objectives    []string `yaml:"objectives" validate:"omitempty,unique,dive,required"`
	Instances     []string `yaml:"instances" validate:"omitempty,unique"`
	MinBudget     float64  `yaml:"min_budget" validate:"gte=0"`
	MaxBudget     float64  `yaml:"max_budget" validate:"gte=0"`
	NTrials       int      `yaml:"n_trials" validate:"gte=0"`
	NWorkers      int      `yaml:"n_workers" validate:"gte=0"`
	OutputDir     string   `yaml:"output_directory"`

	Parameters []Parameter `yaml:"parameters"`
}

// ValidationError represents a scenario validation error.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "gte":
		return fmt.Sprintf("%s must not be negative", e.Field)
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", e.Field)
	default:
		return fmt.Sprintf("%s failed validation", e.Field)
	}
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("scenario validation failed: %s", strings.Join(messages, "; "))
}

var scenarioValidate = validator.New()

// NewScenario fills defaults and validates the result. The zero objectives
// list becomes ["cost"], NWorkers defaults to 1 and NTrials to 100.
func NewScenario(s Scenario) (*Scenario, error) {
	if len(s.Objectives) == 0 {
		s.Objectives = []string{"cost"}
	}
	if s.NWorkers == 0 {
		s.NWorkers = 1
	}
	if s.NTrials == 0 {
		s.NTrials = 100
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate runs struct tag validation plus the cross-field rules.
func (s *Scenario) Validate() error {
	var validationErrors ValidationErrors

	if err := scenarioValidate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range errs {
				validationErrors = append(validationErrors, ValidationError{
					Field: e.Field(),
					Tag:   e.Tag(),
					Value: e.Value(),
				})
			}
		} else {
			validationErrors = append(validationErrors, ValidationError{Message: err.Error()})
		}
	}

	if s.MinBudget > 0 && s.MaxBudget > 0 && s.MinBudget > s.MaxBudget {
		validationErrors = append(validationErrors, ValidationError{
			Field:   "MinBudget",
			Value:   s.MinBudget,
			Message: "min_budget must not exceed max_budget",
		})
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

// BuildSpace constructs the search space declared by the scenario parameters.
func (s *Scenario) BuildSpace() (*Space, error) {
	return NewSpace(s.Parameters)
}

// LoadScenario reads a scenario from a YAML file, applies defaults and
// validates it.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario file: %w", err)
	}

	return NewScenario(s)
}

// Save writes the scenario as YAML, creating parent directories as needed.
func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o644)
}
