package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_String(t *testing.T) {
	p := Params{"name": "alpha", "count": 3}
	assert.Equal(t, "alpha", p.String("name", "fallback"))
	assert.Equal(t, "fallback", p.String("missing", "fallback"))
	assert.Equal(t, "fallback", p.String("count", "fallback"))
}

func TestParams_Int(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		key  string
		want int
	}{
		{"int", Params{"n": 7}, "n", 7},
		{"int64", Params{"n": int64(8)}, "n", 8},
		{"whole float", Params{"n": float64(9)}, "n", 9},
		{"fractional float", Params{"n": 9.5}, "n", -1},
		{"missing", Params{}, "n", -1},
		{"wrong type", Params{"n": "nine"}, "n", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Int(tt.key, -1))
		})
	}
}

func TestParams_Bool(t *testing.T) {
	p := Params{"on": true, "off": false, "str": "true"}
	assert.True(t, p.Bool("on", false))
	assert.False(t, p.Bool("off", true))
	assert.True(t, p.Bool("missing", true))
	assert.False(t, p.Bool("str", false))
}

func TestParams_Float(t *testing.T) {
	p := Params{"f": 1.5, "i": 2, "i64": int64(3)}
	assert.Equal(t, 1.5, p.Float("f", 0))
	assert.Equal(t, 2.0, p.Float("i", 0))
	assert.Equal(t, 3.0, p.Float("i64", 0))
	assert.Equal(t, -1.0, p.Float("missing", -1))
}

func TestParams_Merge(t *testing.T) {
	base := Params{"a": 1, "b": 2}
	merged := base.Merge(Params{"b": 20, "c": 30})

	assert.Equal(t, 1, merged.Int("a", 0))
	assert.Equal(t, 20, merged.Int("b", 0))
	assert.Equal(t, 30, merged.Int("c", 0))

	// Inputs untouched.
	assert.Equal(t, 2, base.Int("b", 0))
	assert.False(t, base.Has("c"))
}

func TestParams_MergeNil(t *testing.T) {
	var base Params
	merged := base.Merge(Params{"x": 1})
	assert.Equal(t, 1, merged.Int("x", 0))

	merged = Params{"x": 1}.Merge(nil)
	assert.Equal(t, 1, merged.Int("x", 0))
}

func TestParams_Clone(t *testing.T) {
	base := Params{"a": 1}
	clone := base.Clone()
	clone["a"] = 2
	assert.Equal(t, 1, base.Int("a", 0))
}
