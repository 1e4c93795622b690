package uws

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericControllerClamps(t *testing.T) {
	min, max := 0.0, 100.0
	c := &NumericController{Name: "SPEED", Min: &min, Max: &max, Modifiable: true}

	got, err := c.Check(Context{}, 150.0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	got, err = c.Check(Context{}, -10.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	_, err = c.Check(Context{}, "abc")
	assert.Error(t, err)
}

func TestStringControllerPattern(t *testing.T) {
	c := &StringController{Name: "NAME", Pattern: regexp.MustCompile("[a-z]+"), CaseSensitive: false, Modifiable: true}

	got, err := c.Check(Context{}, "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)

	_, err = c.Check(Context{}, "123")
	assert.Error(t, err)
}

func TestStringControllerAnchorsRegardlessOfCaseSensitivity(t *testing.T) {
	c := &StringController{Name: "NAME", Pattern: regexp.MustCompile("[a-z]+"), CaseSensitive: true, Modifiable: true}

	got, err := c.Check(Context{}, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	_, err = c.Check(Context{}, "9zzz9")
	assert.Error(t, err, "a case-sensitive pattern must still be anchored, not matched as a substring")

	_, err = c.Check(Context{}, "Hello")
	assert.Error(t, err, "case-sensitive means exactly that: Hello must not match [a-z]+")
}

func TestParseDurationMillisUnits(t *testing.T) {
	cases := map[string]int64{
		"500ms": 500,
		"5s":    5000,
		"2m":    120000,
		"1h":    3600000,
		"1D":    86400000,
	}
	for in, want := range cases {
		got, err := ParseDurationMillis(in)
		require.NoErrorf(t, err, "parsing %q", in)
		assert.Equalf(t, want, got, "parsing %q", in)
	}

	_, err := ParseDurationMillis("-5s")
	assert.Error(t, err)
}

func TestExecutionDurationControllerClampsToMax(t *testing.T) {
	c := &ExecutionDurationController{DefaultSec: 60, MaxSec: 300, Modifiable: true}

	got, err := c.Check(Context{}, int64(1000))
	require.NoError(t, err)
	assert.Equal(t, int64(300), got)

	got, err = c.Check(Context{}, int64(0))
	require.NoError(t, err)
	assert.Equal(t, int64(300), got, "0 means no limit, clamped to the configured max")

	def, ok := c.DefaultValue(Context{})
	require.True(t, ok)
	assert.Equal(t, int64(60), def)
}

func TestDestructionTimeControllerClampsToMaxInterval(t *testing.T) {
	creation := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &DestructionTimeController{DefaultInterval: 24 * time.Hour, MaxInterval: 7 * 24 * time.Hour, Modifiable: true}
	ctx := Context{CreationTime: creation}

	def, ok := c.DefaultValue(ctx)
	require.True(t, ok)
	assert.Equal(t, creation.Add(24*time.Hour), def)

	farFuture := creation.Add(30 * 24 * time.Hour)
	got, err := c.Check(ctx, farFuture)
	require.NoError(t, err)
	assert.Equal(t, creation.Add(7*24*time.Hour), got)

	nearFuture := creation.Add(2 * 24 * time.Hour)
	got, err = c.Check(ctx, nearFuture)
	require.NoError(t, err)
	assert.Equal(t, nearFuture, got)
}
