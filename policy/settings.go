/*
Package policy holds the organization-wide attendance settings.

PURPOSE:
  Named configuration values (work hours, break limit, overtime threshold,
  weekend flag, enforcement mode) with defaults for absent keys. Settings
  are global, singleton-per-key, mutated only by admin actions, and read
  by every transition request.

PARSING:
  Raw settings are strings in the store. Settings converts them to typed
  values; an unparseable value falls back to its default rather than
  failing the transition that read it.

SEE ALSO:
  - store.go: SettingsStore interface and TTL-cached Provider
  - attendance/guard.go: The consumer of these values
*/
package policy

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTING KEYS
// =============================================================================

const (
	KeyConfigurationEnabled = "system_configuration_enabled"
	KeyWorkStartTime        = "work_start_time"
	KeyWorkEndTime          = "work_end_time"
	KeyBreakDurationLimit   = "break_duration_limit"
	KeyOvertimeThreshold    = "overtime_threshold"
	KeyAutoCheckoutTime     = "auto_checkout_time"
	KeyWeekendWorkAllowed   = "weekend_work_allowed"
	KeyBreakReminders       = "break_reminders_enabled"
	KeyAutoRefreshInterval  = "auto_refresh_interval"
)

// Setting is one stored key/value with admin attribution.
type Setting struct {
	Key       string
	Value     string
	UpdatedBy string
	UpdatedAt time.Time
}

// =============================================================================
// CLOCK TIME - "HH:MM" wall-clock time of day
// =============================================================================

type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// OnDate returns the instant at this time of day on the given date (UTC).
func (c ClockTime) OnDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, time.UTC)
}

// MinutesOfDay returns minutes since midnight.
func (c ClockTime) MinutesOfDay() int { return c.Hour*60 + c.Minute }

// =============================================================================
// SETTINGS - Typed view of the whole key space
// =============================================================================

// Settings is the typed, read-only snapshot the guard consumes.
type Settings struct {
	// ConfigurationEnabled selects the mode: true = Configured (rules
	// enforced), false = Flexible (everything allowed).
	ConfigurationEnabled bool

	WorkStart              ClockTime
	WorkEnd                ClockTime
	BreakLimitMinutes      int
	OvertimeThresholdHours decimal.Decimal
	AutoCheckout           ClockTime
	WeekendWorkAllowed     bool
	BreakRemindersEnabled  bool
	AutoRefreshSeconds     int
}

// Defaults are applied when a key is absent or unparseable.
func Defaults() Settings {
	return Settings{
		ConfigurationEnabled:   true,
		WorkStart:              ClockTime{Hour: 9},
		WorkEnd:                ClockTime{Hour: 17},
		BreakLimitMinutes:      60,
		OvertimeThresholdHours: decimal.NewFromInt(8),
		AutoCheckout:           ClockTime{Hour: 18},
		WeekendWorkAllowed:     false,
		BreakRemindersEnabled:  true,
		AutoRefreshSeconds:     30,
	}
}

// FromSettings builds a typed Settings from stored key/values. Missing or
// invalid values keep their defaults; a half-broken settings table must not
// take attendance down.
func FromSettings(raw []Setting) Settings {
	s := Defaults()
	for _, kv := range raw {
		switch kv.Key {
		case KeyConfigurationEnabled:
			if v, err := strconv.ParseBool(kv.Value); err == nil {
				s.ConfigurationEnabled = v
			}
		case KeyWorkStartTime:
			if v, err := ParseClockTime(kv.Value); err == nil {
				s.WorkStart = v
			}
		case KeyWorkEndTime:
			if v, err := ParseClockTime(kv.Value); err == nil {
				s.WorkEnd = v
			}
		case KeyBreakDurationLimit:
			if v, err := strconv.Atoi(kv.Value); err == nil && v >= 0 {
				s.BreakLimitMinutes = v
			}
		case KeyOvertimeThreshold:
			if v, err := decimal.NewFromString(kv.Value); err == nil && !v.IsNegative() {
				s.OvertimeThresholdHours = v
			}
		case KeyAutoCheckoutTime:
			if v, err := ParseClockTime(kv.Value); err == nil {
				s.AutoCheckout = v
			}
		case KeyWeekendWorkAllowed:
			if v, err := strconv.ParseBool(kv.Value); err == nil {
				s.WeekendWorkAllowed = v
			}
		case KeyBreakReminders:
			if v, err := strconv.ParseBool(kv.Value); err == nil {
				s.BreakRemindersEnabled = v
			}
		case KeyAutoRefreshInterval:
			if v, err := strconv.Atoi(kv.Value); err == nil && v > 0 {
				s.AutoRefreshSeconds = v
			}
		}
	}
	return s
}

// =============================================================================
// VALIDATION - For admin writes
// =============================================================================

var validators = map[string]func(string) error{
	KeyConfigurationEnabled: validateBool,
	KeyWorkStartTime:        validateClockTime,
	KeyWorkEndTime:          validateClockTime,
	KeyBreakDurationLimit:   validateNonNegativeInt,
	KeyOvertimeThreshold:    validateNonNegativeDecimal,
	KeyAutoCheckoutTime:     validateClockTime,
	KeyWeekendWorkAllowed:   validateBool,
	KeyBreakReminders:       validateBool,
	KeyAutoRefreshInterval:  validatePositiveInt,
}

// KnownKeys lists every settable key, for admin UIs.
func KnownKeys() []string {
	return []string{
		KeyConfigurationEnabled,
		KeyWorkStartTime,
		KeyWorkEndTime,
		KeyBreakDurationLimit,
		KeyOvertimeThreshold,
		KeyAutoCheckoutTime,
		KeyWeekendWorkAllowed,
		KeyBreakReminders,
		KeyAutoRefreshInterval,
	}
}

// Validate rejects unknown keys and unparseable values before they reach
// the store.
func Validate(key, value string) error {
	v, ok := validators[key]
	if !ok {
		return fmt.Errorf("unknown setting key %q", key)
	}
	return v(value)
}

func validateBool(v string) error {
	_, err := strconv.ParseBool(v)
	return err
}

func validateClockTime(v string) error {
	_, err := ParseClockTime(v)
	return err
}

func validateNonNegativeInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("must not be negative: %d", n)
	}
	return nil
}

func validatePositiveInt(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if n <= 0 {
		return fmt.Errorf("must be positive: %d", n)
	}
	return nil
}

func validateNonNegativeDecimal(v string) error {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return err
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative: %s", d)
	}
	return nil
}
