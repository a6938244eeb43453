package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	// DefaultScanInterval is how often the collector looks for idle actors, in seconds
	DefaultScanInterval int64 = 60
	// DefaultIdleTimeout is how long an actor may stay unused before it is collected, in seconds
	DefaultIdleTimeout int64 = 3600
)

// ErrInvalidConfiguration is matched by every rejected GCSettings construction
var ErrInvalidConfiguration = errors.New("invalid gc configuration")

// GCViolation names the GCSettings constraint that was broken
type GCViolation int

const (
	// IdleTimeoutNotPositive means idleTimeout <= 0
	IdleTimeoutNotPositive GCViolation = iota + 1
	// ScanIntervalNotPositive means scanInterval <= 0
	ScanIntervalNotPositive
	// RatioBelowMinimum means idleTimeout/scanInterval truncates to zero
	RatioBelowMinimum
)

func (v GCViolation) String() string {
	switch v {
	case IdleTimeoutNotPositive:
		return "IdleTimeoutNotPositive"
	case ScanIntervalNotPositive:
		return "ScanIntervalNotPositive"
	case RatioBelowMinimum:
		return "RatioBelowMinimum"
	}
	return fmt.Sprintf("GCViolation(%d)", int(v))
}

// GCSettingsError is returned by NewGCSettings. It unwraps to ErrInvalidConfiguration
type GCSettingsError struct {
	Violation    GCViolation
	IdleTimeout  int64
	ScanInterval int64
}

func (e *GCSettingsError) Error() string {
	switch e.Violation {
	case IdleTimeoutNotPositive:
		return "idleTimeout must be positive"
	case ScanIntervalNotPositive:
		return "scanInterval must be positive"
	default:
		return "idleTimeout/scanInterval ratio invalid"
	}
}

func (e *GCSettingsError) Unwrap() error {
	return ErrInvalidConfiguration
}

// GCSettings holds the timing of the idle actor collector.
// Values are immutable once built; the zero value is equal to DefaultGCSettings
type GCSettings struct {
	scanInterval int64
	idleTimeout  int64
}

// DefaultGCSettings returns a scan every 60s and a one hour idle timeout
func DefaultGCSettings() GCSettings {
	return GCSettings{
		scanInterval: DefaultScanInterval,
		idleTimeout:  DefaultIdleTimeout,
	}
}

// NewGCSettings validates both values (in seconds) and builds the settings.
// The checks run in order: idleTimeout > 0, scanInterval > 0, idleTimeout/scanInterval >= 1
func NewGCSettings(idleTimeout, scanInterval int64) (GCSettings, error) {
	fail := func(v GCViolation) (GCSettings, error) {
		return GCSettings{}, &GCSettingsError{
			Violation:    v,
			IdleTimeout:  idleTimeout,
			ScanInterval: scanInterval,
		}
	}

	if idleTimeout <= 0 {
		return fail(IdleTimeoutNotPositive)
	}

	if scanInterval <= 0 {
		return fail(ScanIntervalNotPositive)
	}

	// integer division: 19/10 passes, 59/60 does not
	if idleTimeout/scanInterval < 1 {
		return fail(RatioBelowMinimum)
	}

	return GCSettings{
		scanInterval: scanInterval,
		idleTimeout:  idleTimeout,
	}, nil
}

// Copy returns an independent value with the same timing, without validating again
func (s GCSettings) Copy() GCSettings {
	return GCSettings{
		scanInterval: s.ScanIntervalInSeconds(),
		idleTimeout:  s.IdleTimeoutInSeconds(),
	}
}

// ScanIntervalInSeconds returns how often the collector runs
func (s GCSettings) ScanIntervalInSeconds() int64 {
	if s.scanInterval == 0 {
		return DefaultScanInterval
	}
	return s.scanInterval
}

// IdleTimeoutInSeconds returns how long an unused actor survives
func (s GCSettings) IdleTimeoutInSeconds() int64 {
	if s.idleTimeout == 0 {
		return DefaultIdleTimeout
	}
	return s.idleTimeout
}

// ScanInterval is ScanIntervalInSeconds as a time.Duration
func (s GCSettings) ScanInterval() time.Duration {
	return seconds(s.ScanIntervalInSeconds())
}

// IdleTimeout is IdleTimeoutInSeconds as a time.Duration
func (s GCSettings) IdleTimeout() time.Duration {
	return seconds(s.IdleTimeoutInSeconds())
}

// IdleScans is the number of consecutive scans an actor has to stay untouched
// before it gets collected. Never less than 1
func (s GCSettings) IdleScans() int64 {
	return s.IdleTimeoutInSeconds() / s.ScanIntervalInSeconds()
}

func (s GCSettings) String() string {
	return fmt.Sprintf("scan_interval=%ds idle_timeout=%ds", s.ScanIntervalInSeconds(), s.IdleTimeoutInSeconds())
}

// MarshalLogObject lets the settings be logged with zap.Object
func (s GCSettings) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("scan_interval_seconds", s.ScanIntervalInSeconds())
	enc.AddInt64("idle_timeout_seconds", s.IdleTimeoutInSeconds())
	enc.AddInt64("idle_scans", s.IdleScans())
	return nil
}

// seconds saturates instead of overflowing time.Duration
func seconds(n int64) time.Duration {
	if n > math.MaxInt64/int64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(n) * time.Second
}
