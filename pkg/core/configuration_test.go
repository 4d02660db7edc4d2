package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigurationIdentity(t *testing.T) {
	t.Run("same values same identity", func(t *testing.T) {
		a := NewConfiguration(map[string]interface{}{"x": 1.5, "y": "relu", "z": 3})
		b := NewConfiguration(map[string]interface{}{"z": 3, "y": "relu", "x": 1.5})

		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("different values different identity", func(t *testing.T) {
		a := NewConfiguration(map[string]interface{}{"x": 1.5})
		b := NewConfiguration(map[string]interface{}{"x": 1.6})

		assert.False(t, a.Equal(b))
		assert.NotEqual(t, a.Key(), b.Key())
	})

	t.Run("origin does not affect identity", func(t *testing.T) {
		a := NewConfiguration(map[string]interface{}{"x": 1})
		b := NewConfiguration(map[string]interface{}{"x": 1})
		a.SetOrigin(OriginRandomSearch)
		b.SetOrigin(OriginDefault)

		assert.True(t, a.Equal(b))
	})

	t.Run("nil comparisons", func(t *testing.T) {
		var a *Configuration
		b := NewConfiguration(map[string]interface{}{"x": 1})

		assert.True(t, a.Equal(nil))
		assert.False(t, a.Equal(b))
		assert.False(t, b.Equal(nil))
	})
}

func TestConfigurationNumericNormalization(t *testing.T) {
	// Values that cross a JSON boundary come back as float64. The canonical
	// key must not distinguish an int from the equal integral float.
	original := NewConfiguration(map[string]interface{}{"units": 64, "lr": 0.01})

	raw, err := json.Marshal(original.Values())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	reloaded := NewConfiguration(decoded)
	assert.True(t, original.Equal(reloaded))
}

func TestConfigurationCopySemantics(t *testing.T) {
	values := map[string]interface{}{"x": 1.0}
	cfg := NewConfiguration(values)

	// Mutating the source map must not change the configuration
	values["x"] = 99.0
	got, ok := cfg.Get("x")
	require.True(t, ok)
	assert.Equal(t, 1.0, got)

	// Mutating the returned map must not change the configuration either
	out := cfg.Values()
	out["x"] = 42.0
	got, _ = cfg.Get("x")
	assert.Equal(t, 1.0, got)
}

func TestConfigurationAccessors(t *testing.T) {
	cfg := NewConfiguration(map[string]interface{}{"a": true, "b": "v"})

	assert.Equal(t, 2, cfg.Len())

	v, ok := cfg.Get("a")
	assert.True(t, ok)
	assert.Equal(t, true, v)

	_, ok = cfg.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, cfg.Key(), cfg.String())
}
