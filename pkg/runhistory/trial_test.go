package runhistory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrialKeyHelpers(t *testing.T) {
	k := TrialKey{ConfigID: 3, Instance: "i1", Seed: 7, Budget: 2.5}

	assert.Equal(t, InstanceSeedKey{Instance: "i1", Seed: 7}, k.InstanceSeedKey())
	assert.Equal(t, `config=3 instance="i1" seed=7 budget=2.5`, k.String())
}

func TestTrialInfoKey(t *testing.T) {
	info := TrialInfo{Instance: "i1", Seed: 7, Budget: 2.5, Source: 1}

	assert.Equal(t, TrialKey{ConfigID: 9, Instance: "i1", Seed: 7, Budget: 2.5}, info.Key(9))
	assert.Equal(t, InstanceSeedBudgetKey{Instance: "i1", Seed: 7, Budget: 2.5}, info.InstanceSeedBudgetKey())
}

func TestIntentAndOriginNames(t *testing.T) {
	assert.Equal(t, "RUN", IntentRun.String())
	assert.Equal(t, "SKIP", IntentSkip.String())
	assert.Equal(t, "WAIT", IntentWait.String())
	assert.Equal(t, "INTERNAL", OriginInternal.String())
	assert.Equal(t, "EXTERNAL_SAME_INSTANCES", OriginExternalSameInstances.String())
	assert.Equal(t, "EXTERNAL_DIFFERENT_INSTANCES", OriginExternalDifferentInstances.String())
}
