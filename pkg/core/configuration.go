package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Well-known configuration origins.
const (
	OriginUnknown      = ""
	OriginDefault      = "Default"
	OriginRandomSearch = "Random Search"
	OriginExternal     = "External"
)

// Configuration is a single hyperparameter assignment. Two configurations with
// the same values are the same configuration, no matter where or when they were
// created; identity is the canonical key over the value map, never the pointer.
type Configuration struct {
	values map[string]interface{}
	origin string
	key    string
}

// NewConfiguration builds a configuration from a value map. The map is deep
// copied so later caller mutation cannot change the configuration's identity.
func NewConfiguration(values map[string]interface{}) *Configuration {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Configuration{
		values: copied,
		key:    canonicalKey(copied),
	}
}

// Values returns a copy of the underlying value map.
func (c *Configuration) Values() map[string]interface{} {
	copied := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		copied[k] = v
	}
	return copied
}

// Get returns a single value by parameter name.
func (c *Configuration) Get(name string) (interface{}, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Len returns the number of assigned parameters.
func (c *Configuration) Len() int {
	return len(c.values)
}

// Key returns the canonical identity string.
func (c *Configuration) Key() string {
	return c.key
}

// Equal reports value equality between two configurations.
func (c *Configuration) Equal(other *Configuration) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.key == other.key
}

// Origin describes how the configuration was produced, for bookkeeping only;
// it does not participate in identity.
func (c *Configuration) Origin() string {
	return c.origin
}

// SetOrigin records the configuration's provenance.
func (c *Configuration) SetOrigin(origin string) {
	c.origin = origin
}

func (c *Configuration) String() string {
	return c.key
}

// canonicalKey renders the value map into a stable string. Numeric values are
// normalized so an int and the equal integral float collapse to the same text,
// which keeps identity stable across a JSON round trip.
func canonicalKey(values map[string]interface{}) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: %s", name, formatValue(values[name]))
	}
	b.WriteByte('}')
	return b.String()
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
