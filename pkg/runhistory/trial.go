package runhistory

import (
	"fmt"

	"github.com/XiaoConstantine/smac-go/pkg/core"
)

// TrialKey identifies a single evaluation of a configuration inside the run
// history. Instance and Budget hold their zero values when the scenario does
// not use them; the history rejects entries that mix the two forms, so a zero
// never collides with a real instance or budget.
type TrialKey struct {
	ConfigID int
	Instance string
	Seed     int64
	Budget   float64
}

// InstanceSeedKey groups trials of one configuration that ran on the same
// instance and seed, across budgets.
type InstanceSeedKey struct {
	Instance string
	Seed     int64
}

// InstanceSeedBudgetKey addresses one observed (instance, seed, budget)
// combination of a configuration.
type InstanceSeedBudgetKey struct {
	Instance string
	Seed     int64
	Budget   float64
}

func (k TrialKey) String() string {
	return fmt.Sprintf("config=%d instance=%q seed=%d budget=%g", k.ConfigID, k.Instance, k.Seed, k.Budget)
}

// InstanceSeedKey drops the budget component of the key.
func (k TrialKey) InstanceSeedKey() InstanceSeedKey {
	return InstanceSeedKey{Instance: k.Instance, Seed: k.Seed}
}

// TrialValue carries the outcome of a single trial. Cost always has one entry
// per objective, also for single-objective scenarios.
type TrialValue struct {
	Cost           []float64
	Time           float64
	Status         core.StatusType
	StartTime      float64
	EndTime        float64
	AdditionalInfo map[string]interface{}
}

// TrialInfo describes a trial an intensifier wants executed. Source tags the
// worker that issued the trial so results can be routed back to it.
type TrialInfo struct {
	Config   *core.Configuration
	Instance string
	Seed     int64
	Budget   float64
	Source   int
}

// Key binds the trial info to the identifier the history assigned to its
// configuration.
func (i TrialInfo) Key(configID int) TrialKey {
	return TrialKey{ConfigID: configID, Instance: i.Instance, Seed: i.Seed, Budget: i.Budget}
}

// InstanceSeedBudgetKey returns the observation key this trial produces.
func (i TrialInfo) InstanceSeedBudgetKey() InstanceSeedBudgetKey {
	return InstanceSeedBudgetKey{Instance: i.Instance, Seed: i.Seed, Budget: i.Budget}
}

// TrialInfoIntent tells the caller what to do with the trial info returned by
// an intensifier.
type TrialInfoIntent int

const (
	// IntentRun asks the caller to execute the returned trial.
	IntentRun TrialInfoIntent = iota
	// IntentSkip signals that the intensifier has nothing to run right now.
	IntentSkip
	// IntentWait signals that the intensifier needs pending results before it
	// can issue more trials.
	IntentWait
)

func (t TrialInfoIntent) String() string {
	switch t {
	case IntentRun:
		return "RUN"
	case IntentSkip:
		return "SKIP"
	case IntentWait:
		return "WAIT"
	default:
		return fmt.Sprintf("TrialInfoIntent(%d)", int(t))
	}
}

// DataOrigin distinguishes trials produced by this process from trials merged
// in from external run histories.
type DataOrigin int

const (
	// OriginInternal marks trials executed by the running optimization.
	OriginInternal DataOrigin = iota + 1
	// OriginExternalSameInstances marks imported trials that ran on the same
	// instance set and therefore count towards cost estimates.
	OriginExternalSameInstances
	// OriginExternalDifferentInstances marks imported trials from a different
	// instance set; they are kept for the model but excluded from costs.
	OriginExternalDifferentInstances
)

func (o DataOrigin) String() string {
	switch o {
	case OriginInternal:
		return "INTERNAL"
	case OriginExternalSameInstances:
		return "EXTERNAL_SAME_INSTANCES"
	case OriginExternalDifferentInstances:
		return "EXTERNAL_DIFFERENT_INSTANCES"
	default:
		return fmt.Sprintf("DataOrigin(%d)", int(o))
	}
}
