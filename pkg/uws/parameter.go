// ============================================================================
// UWS Core — Parameter Controllers
// ============================================================================
//
// Package: pkg/uws
// File: parameter.go
// Purpose: Per-parameter validation, defaults, and coercion (§4.2)
//
// Design Philosophy:
//   The source models controllers through subclassing (String, Numeric,
//   Duration, ExecutionDuration, DestructionTime, Custom). Following the
//   "sum types over class hierarchies" note in the spec's design notes, each
//   kind here is a small, independent struct implementing one capability
//   interface (ParameterController) rather than a class tree — the same
//   shape the teacher uses for its EventType/EventHandler pair in
//   storage/wal, a tagged value plus a narrow behavior contract.
//
// ============================================================================

package uws

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Context carries the job-level facts a controller may need beyond the
// proposed value itself (currently just the job's creation time, needed by
// DestructionTimeController and any ExecutionDurationController default).
type Context struct {
	CreationTime time.Time
}

// ParameterController validates/coerces one named parameter (§4.2).
type ParameterController interface {
	// AllowModification reports whether a client may overwrite the value
	// after job creation.
	AllowModification() bool
	// DefaultValue returns the value to use when none was supplied, or
	// ok=false if the parameter has no default.
	DefaultValue(ctx Context) (value any, ok bool)
	// Check validates/coerces a proposed value. It may clamp (e.g. numeric
	// range) or return a *ParameterRejectedError-compatible error.
	Check(ctx Context, proposed any) (accepted any, err error)
}

// ----------------------------------------------------------------------------
// String controller
// ----------------------------------------------------------------------------

// StringController validates a string parameter against an optional regular
// expression, with an optional default.
type StringController struct {
	Name          string
	Default       *string
	Pattern       *regexp.Regexp // caller-supplied pattern, anchored by Check unless it starts with "^"; or nil
	CaseSensitive bool
	Modifiable    bool
}

func (c *StringController) AllowModification() bool { return c.Modifiable }

func (c *StringController) DefaultValue(Context) (any, bool) {
	if c.Default == nil {
		return nil, false
	}
	return *c.Default, true
}

func (c *StringController) Check(_ Context, proposed any) (any, error) {
	s, ok := proposed.(string)
	if !ok {
		return nil, &ParameterRejectedError{Name: c.Name, Reason: "value is not a string"}
	}
	if c.Pattern == nil {
		return s, nil
	}
	prefix := ""
	if !c.CaseSensitive {
		prefix = "(?i)"
	}
	pattern := regexp.MustCompile(prefix + anchor(c.Pattern.String()))
	if !pattern.MatchString(s) {
		return nil, &ParameterRejectedError{Name: c.Name, Reason: fmt.Sprintf("value %q does not match pattern %q", s, c.Pattern.String())}
	}
	return s, nil
}

func anchor(pattern string) string {
	if strings.HasPrefix(pattern, "^") {
		return pattern
	}
	return "^(?:" + pattern + ")$"
}

// ----------------------------------------------------------------------------
// Numeric controller
// ----------------------------------------------------------------------------

// NumericController clamps a finite real into [Min, Max] and rejects
// non-numeric input.
type NumericController struct {
	Name       string
	Default    *float64
	Min        *float64
	Max        *float64
	Modifiable bool
}

func (c *NumericController) AllowModification() bool { return c.Modifiable }

func (c *NumericController) DefaultValue(Context) (any, bool) {
	if c.Default == nil {
		return nil, false
	}
	return *c.Default, true
}

func (c *NumericController) Check(_ Context, proposed any) (any, error) {
	f, err := toFloat64(proposed)
	if err != nil {
		return nil, &ParameterRejectedError{Name: c.Name, Reason: err.Error()}
	}
	if c.Min != nil && f < *c.Min {
		f = *c.Min
	}
	if c.Max != nil && f > *c.Max {
		f = *c.Max
	}
	return f, nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

// ----------------------------------------------------------------------------
// Duration controller — canonical internal form is non-negative integer ms
// ----------------------------------------------------------------------------

// durationUnits maps the §4.2 unit suffixes to their millisecond factor.
// Calendar units (D/W/M/Y) use fixed approximations (24h day, 365-day year)
// — acceptable for advisory execution/destruction budgets.
var durationUnits = map[string]int64{
	"ms": 1,
	"s":  1000,
	"m":  60 * 1000,
	"h":  60 * 60 * 1000,
	"D":  24 * 60 * 60 * 1000,
	"W":  7 * 24 * 60 * 60 * 1000,
	"M":  30 * 24 * 60 * 60 * 1000,
	"Y":  365 * 24 * 60 * 60 * 1000,
}

// ParseDurationMillis parses a duration string accepting the unit suffixes
// listed in §4.2 (ms, s, m, h, D, W, M, Y). A bare number is treated as
// milliseconds.
func ParseDurationMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	for _, suffix := range []string{"ms", "s", "m", "h", "D", "W", "M", "Y"} {
		if strings.HasSuffix(s, suffix) {
			numPart := strings.TrimSuffix(s, suffix)
			f, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			if f < 0 {
				return 0, fmt.Errorf("invalid duration %q: negative", s)
			}
			return int64(f * float64(durationUnits[suffix])), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("invalid duration %q: negative", s)
	}
	return int64(f), nil
}

// RenderDurationMillis renders ms using the largest of Y, W, D, h, m, s that
// divides it evenly, falling back to milliseconds. The month unit M is never
// used for rendering.
func RenderDurationMillis(ms int64) string {
	order := []string{"Y", "W", "D", "h", "m", "s"}
	for _, u := range order {
		factor := durationUnits[u]
		if ms != 0 && ms%factor == 0 {
			return fmt.Sprintf("%d%s", ms/factor, u)
		}
	}
	return fmt.Sprintf("%dms", ms)
}

// DurationController validates/coerces a duration parameter, storing it
// internally as non-negative integer milliseconds.
type DurationController struct {
	Name       string
	Default    *int64 // milliseconds
	Modifiable bool
}

func (c *DurationController) AllowModification() bool { return c.Modifiable }

func (c *DurationController) DefaultValue(Context) (any, bool) {
	if c.Default == nil {
		return nil, false
	}
	return *c.Default, true
}

func (c *DurationController) Check(_ Context, proposed any) (any, error) {
	ms, err := coerceDurationMillis(proposed)
	if err != nil {
		return nil, &ParameterRejectedError{Name: c.Name, Reason: err.Error()}
	}
	return ms, nil
}

func coerceDurationMillis(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return n, nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return int64(n), nil
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return int64(n), nil
	case string:
		return ParseDurationMillis(n)
	case time.Duration:
		if n < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return n.Milliseconds(), nil
	default:
		return 0, fmt.Errorf("value %v is not a duration", v)
	}
}

// ----------------------------------------------------------------------------
// ExecutionDuration controller — targets the job's executionDuration (§3, §4.2)
// ----------------------------------------------------------------------------

// ExecutionDurationController is a Duration controller with two named
// limits: the default applied when none is supplied, and the ceiling a
// client-supplied value is clamped to.
type ExecutionDurationController struct {
	DefaultSec int64
	MaxSec     int64
	Modifiable bool
}

func (c *ExecutionDurationController) AllowModification() bool { return c.Modifiable }

func (c *ExecutionDurationController) DefaultValue(Context) (any, bool) {
	return c.DefaultSec, true
}

// Check accepts seconds (any numeric/string/duration form) and clamps into
// [0, MaxSec]. When MaxSec is positive, both a value above MaxSec and 0
// ("no limit") are replaced by MaxSec; with MaxSec == 0 the value is kept.
func (c *ExecutionDurationController) Check(_ Context, proposed any) (any, error) {
	sec, err := toSeconds(proposed)
	if err != nil {
		return nil, &ParameterRejectedError{Name: "executionDuration", Reason: err.Error()}
	}
	if sec < 0 {
		return nil, &ParameterRejectedError{Name: "executionDuration", Reason: "must be non-negative"}
	}
	if c.MaxSec > 0 && (sec == 0 || sec > c.MaxSec) {
		sec = c.MaxSec
	}
	return sec, nil
}

func toSeconds(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		ms, err := ParseDurationMillis(withDefaultSecondsUnit(n))
		if err != nil {
			return 0, err
		}
		return ms / 1000, nil
	case time.Duration:
		return int64(n / time.Second), nil
	default:
		return 0, fmt.Errorf("value %v is not a duration", v)
	}
}

// withDefaultSecondsUnit appends "s" to a bare integer string so a plain
// "300" is interpreted as 300 seconds, matching executionDuration's §6 wire
// format ("seconds (integer >=0)") rather than ParseDurationMillis's
// bare-number-means-milliseconds default.
func withDefaultSecondsUnit(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return s + "s"
	}
	return s
}

// ----------------------------------------------------------------------------
// DestructionTime controller (§3, §4.2)
// ----------------------------------------------------------------------------

// DestructionTimeController coerces a client-supplied destruction time to
// min(supplied, creationTime+MaxInterval); its default is
// creationTime+DefaultInterval.
type DestructionTimeController struct {
	DefaultInterval time.Duration
	MaxInterval     time.Duration
	Modifiable      bool
}

func (c *DestructionTimeController) AllowModification() bool { return c.Modifiable }

func (c *DestructionTimeController) DefaultValue(ctx Context) (any, bool) {
	return ctx.CreationTime.Add(c.DefaultInterval), true
}

func (c *DestructionTimeController) Check(ctx Context, proposed any) (any, error) {
	t, err := toTime(proposed)
	if err != nil {
		return nil, &ParameterRejectedError{Name: "destruction", Reason: err.Error()}
	}
	if c.MaxInterval > 0 {
		ceiling := ctx.CreationTime.Add(c.MaxInterval)
		if t.After(ceiling) {
			t = ceiling
		}
	}
	return t, nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid ISO-8601 instant %q: %w", t, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("value %v is not an instant", v)
	}
}
