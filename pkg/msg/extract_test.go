package msg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type match struct {
	index int
	key   string
	str   string
	i     int64
	f     float64
}

func collect(t *testing.T, frame string, specs []Spec) []match {
	t.Helper()
	var out []match
	err := Extract([]byte(frame), specs, func(index int, spec Spec, v Value) bool {
		out = append(out, match{index: index, key: spec.Key, str: string(v.Str), i: v.Int, f: v.Float})
		return false
	})
	require.NoError(t, err)
	return out
}

func TestExtractScreencastFrame(t *testing.T) {
	frame := `{"method":"Page.screencastFrame","params":{"data":"AAA=","sessionId":7,"timestamp":1.5}}`
	specs := []Spec{
		{Key: "data", Depth: 2, Type: TypeString},
		{Key: "sessionId", Depth: 2, Type: TypeInteger},
		{Key: "timestamp", Depth: 2, Type: TypeFloat},
	}

	var found Found
	var data []byte
	var session int64
	var ts float64
	err := Extract([]byte(frame), specs, func(index int, spec Spec, v Value) bool {
		found.Set(index)
		switch spec.Key {
		case "data":
			data = v.Str
		case "sessionId":
			session = v.Int
		case "timestamp":
			ts = v.Float
		}
		return false
	})
	require.NoError(t, err)

	assert.True(t, found.All(len(specs)))
	assert.Equal(t, "AAA=", string(data))
	assert.Len(t, data, 4)
	assert.Equal(t, int64(7), session)
	assert.Equal(t, 1.5, ts)
}

func TestExtractDepthSelectsLevel(t *testing.T) {
	frame := `{"id":1,"result":{"id":2,"nested":{"id":3}}}`

	got := collect(t, frame, []Spec{{Key: "id", Depth: 1, Type: TypeInteger}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].i)

	got = collect(t, frame, []Spec{{Key: "id", Depth: 2, Type: TypeInteger}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].i)

	got = collect(t, frame, []Spec{{Key: "id", Depth: 3, Type: TypeInteger}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].i)
}

func TestExtractAnyDepth(t *testing.T) {
	frame := `{"id":1,"result":{"id":2,"nested":{"id":3}}}`
	got := collect(t, frame, []Spec{{Key: "id", Depth: 0, Type: TypeInteger}})
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].i)
	assert.Equal(t, int64(2), got[1].i)
	assert.Equal(t, int64(3), got[2].i)
}

func TestExtractIgnoresStringValuesThatLookLikeKeys(t *testing.T) {
	frame := `{"method":"id","params":{"note":"\"id\":5","list":["id"]}}`
	got := collect(t, frame, []Spec{{Key: "id", Depth: 0, Type: TypeInteger}})
	assert.Empty(t, got)
}

func TestExtractStringKeepsEscapes(t *testing.T) {
	frame := `{"id":9,"result":{"result":{"type":"string","value":"{\"x\":1, \"w\":[2]}"}}}`
	got := collect(t, frame, []Spec{{Key: "value", Depth: 3, Type: TypeString}})
	require.Len(t, got, 1)
	assert.Equal(t, `{\"x\":1, \"w\":[2]}`, got[0].str)
}

func TestExtractTypeMismatchIsSkipped(t *testing.T) {
	frame := `{"id":"seven","method":12,"params":{"n":"3"}}`
	got := collect(t, frame, []Spec{
		{Key: "id", Depth: 1, Type: TypeInteger},
		{Key: "method", Depth: 1, Type: TypeString},
		{Key: "n", Depth: 2, Type: TypeFloat},
	})
	assert.Empty(t, got)
}

func TestExtractIntegerStopsAtFraction(t *testing.T) {
	got := collect(t, `{"id":12.75}`, []Spec{{Key: "id", Depth: 1, Type: TypeInteger}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(12), got[0].i)
}

func TestExtractIntegerIsDecimal(t *testing.T) {
	got := collect(t, `{"x":0x10,"y":010}`, []Spec{
		{Key: "x", Depth: 1, Type: TypeInteger},
		{Key: "y", Depth: 1, Type: TypeInteger},
	})
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].i)
	assert.Equal(t, int64(10), got[1].i)
}

func TestExtractNegativeAndExponent(t *testing.T) {
	got := collect(t, `{"a":-4,"b":2.5e3}`, []Spec{
		{Key: "a", Depth: 1, Type: TypeInteger},
		{Key: "b", Depth: 1, Type: TypeFloat},
	})
	require.Len(t, got, 2)
	assert.Equal(t, int64(-4), got[0].i)
	assert.Equal(t, 2500.0, got[1].f)
}

func TestExtractKeyPrefixDoesNotMatch(t *testing.T) {
	got := collect(t, `{"identifier":4,"id":5}`, []Spec{{Key: "id", Depth: 1, Type: TypeInteger}})
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].i)
}

func TestExtractUnterminatedValueIsSkipped(t *testing.T) {
	got := collect(t, `{"a":"open`, []Spec{{Key: "a", Depth: 1, Type: TypeString}})
	assert.Empty(t, got)

	got = collect(t, `{"n":42`, []Spec{{Key: "n", Depth: 1, Type: TypeInteger}})
	assert.Empty(t, got)
}

func TestExtractStopsEarly(t *testing.T) {
	calls := 0
	err := Extract([]byte(`{"id":1,"method":"x"}`), []Spec{
		{Key: "id", Depth: 1, Type: TypeInteger},
		{Key: "method", Depth: 1, Type: TypeString},
	}, func(int, Spec, Value) bool {
		calls++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExtractRejectsNonObject(t *testing.T) {
	err := Extract([]byte(`[1,2]`), nil, func(int, Spec, Value) bool { return false })
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestExtractSpecLimit(t *testing.T) {
	specs := make([]Spec, MaxSpecs+1)
	err := Extract([]byte(`{}`), specs, func(int, Spec, Value) bool { return false })
	assert.ErrorIs(t, err, ErrTooManySpecs)

	err = Extract([]byte(`{}`), specs[:MaxSpecs], func(int, Spec, Value) bool { return false })
	assert.NoError(t, err)
}

func TestFoundBitmask(t *testing.T) {
	var f Found
	assert.False(t, f.All(1))
	assert.True(t, f.All(0))

	f.Set(0)
	f.Set(2)
	assert.True(t, f.Has(0))
	assert.False(t, f.Has(1))
	assert.True(t, f.Has(2))
	assert.False(t, f.All(3))

	f.Set(1)
	assert.True(t, f.All(3))

	var full Found
	for i := 0; i < MaxSpecs; i++ {
		full.Set(i)
	}
	assert.True(t, full.All(MaxSpecs))
}
