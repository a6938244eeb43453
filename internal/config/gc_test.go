package config

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestDefaultGCSettings(t *testing.T) {
	s := DefaultGCSettings()

	assert.Equal(t, int64(60), s.ScanIntervalInSeconds())
	assert.Equal(t, int64(3600), s.IdleTimeoutInSeconds())
	assert.Equal(t, time.Minute, s.ScanInterval())
	assert.Equal(t, time.Hour, s.IdleTimeout())
	assert.Equal(t, int64(60), s.IdleScans())
}

func TestGCSettings_ZeroValueIsDefault(t *testing.T) {
	var s GCSettings

	assert.Equal(t, DefaultGCSettings().ScanIntervalInSeconds(), s.ScanIntervalInSeconds())
	assert.Equal(t, DefaultGCSettings().IdleTimeoutInSeconds(), s.IdleTimeoutInSeconds())
	assert.Equal(t, DefaultGCSettings(), s.Copy())
}

func TestNewGCSettings(t *testing.T) {
	tests := []struct {
		name         string
		idleTimeout  int64
		scanInterval int64
		wantErr      bool
		violation    GCViolation
	}{
		{"Scenario 120/30", 120, 30, false, 0},
		{"Minimum ratio 60/60", 60, 60, false, 0},
		{"Truncated ratio 19/10", 19, 10, false, 0},
		{"Huge values", math.MaxInt64, 1, false, 0},
		{"Ratio below minimum 59/60", 59, 60, true, RatioBelowMinimum},
		{"Ratio below minimum 1/2", 1, 2, true, RatioBelowMinimum},
		{"Ratio below minimum 50/60", 50, 60, true, RatioBelowMinimum},
		{"Idle timeout zero", 0, 30, true, IdleTimeoutNotPositive},
		{"Idle timeout negative", -5, 30, true, IdleTimeoutNotPositive},
		{"Idle timeout checked before scan interval", 0, 0, true, IdleTimeoutNotPositive},
		{"Both negative", -1, -1, true, IdleTimeoutNotPositive},
		{"Scan interval zero", 30, 0, true, ScanIntervalNotPositive},
		{"Scan interval negative", 30, -10, true, ScanIntervalNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewGCSettings(tt.idleTimeout, tt.scanInterval)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, tt.scanInterval, s.ScanIntervalInSeconds())
				assert.Equal(t, tt.idleTimeout, s.IdleTimeoutInSeconds())
				assert.GreaterOrEqual(t, s.IdleScans(), int64(1))
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfiguration))

			var settingsErr *GCSettingsError
			require.True(t, errors.As(err, &settingsErr))
			assert.Equal(t, tt.violation, settingsErr.Violation)
			assert.Equal(t, tt.idleTimeout, settingsErr.IdleTimeout)
			assert.Equal(t, tt.scanInterval, settingsErr.ScanInterval)

			assert.Equal(t, GCSettings{}, s, "no settings value must leak out of a failed construction")
		})
	}
}

func TestGCSettingsError_Messages(t *testing.T) {
	_, err := NewGCSettings(0, 30)
	assert.EqualError(t, err, "idleTimeout must be positive")

	_, err = NewGCSettings(30, 0)
	assert.EqualError(t, err, "scanInterval must be positive")

	_, err = NewGCSettings(59, 60)
	assert.EqualError(t, err, "idleTimeout/scanInterval ratio invalid")
}

func TestGCSettings_Copy(t *testing.T) {
	src, err := NewGCSettings(120, 30)
	require.NoError(t, err)

	cp := src.Copy()
	assert.Equal(t, src.ScanIntervalInSeconds(), cp.ScanIntervalInSeconds())
	assert.Equal(t, src.IdleTimeoutInSeconds(), cp.IdleTimeoutInSeconds())

	// copies live in their own storage
	assert.NotSame(t, &src, &cp)

	other, err := NewGCSettings(7200, 60)
	require.NoError(t, err)
	cp = other
	assert.Equal(t, int64(120), src.IdleTimeoutInSeconds())
	assert.Equal(t, int64(7200), cp.IdleTimeoutInSeconds())
}

func TestGCSettings_IdleScans(t *testing.T) {
	tests := []struct {
		idleTimeout  int64
		scanInterval int64
		want         int64
	}{
		{120, 30, 4},
		{60, 60, 1},
		{19, 10, 1},
		{3600, 60, 60},
	}

	for _, tt := range tests {
		s, err := NewGCSettings(tt.idleTimeout, tt.scanInterval)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.IdleScans(), "idle=%d scan=%d", tt.idleTimeout, tt.scanInterval)
	}
}

func TestGCSettings_DurationSaturates(t *testing.T) {
	s, err := NewGCSettings(math.MaxInt64, math.MaxInt64/2)
	require.NoError(t, err)

	assert.Equal(t, time.Duration(math.MaxInt64), s.IdleTimeout())
	assert.Equal(t, time.Duration(math.MaxInt64), s.ScanInterval())
}

func TestGCSettings_MarshalLogObject(t *testing.T) {
	s, err := NewGCSettings(120, 30)
	require.NoError(t, err)

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, s.MarshalLogObject(enc))

	assert.Equal(t, int64(30), enc.Fields["scan_interval_seconds"])
	assert.Equal(t, int64(120), enc.Fields["idle_timeout_seconds"])
	assert.Equal(t, int64(4), enc.Fields["idle_scans"])
	assert.Equal(t, "scan_interval=30s idle_timeout=120s", s.String())
}

func TestGCViolation_String(t *testing.T) {
	assert.Equal(t, "IdleTimeoutNotPositive", IdleTimeoutNotPositive.String())
	assert.Equal(t, "ScanIntervalNotPositive", ScanIntervalNotPositive.String())
	assert.Equal(t, "RatioBelowMinimum", RatioBelowMinimum.String())
	assert.Equal(t, "GCViolation(9)", GCViolation(9).String())
}

func BenchmarkGCSettings_Read(b *testing.B) {
	s := DefaultGCSettings()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = s.IdleScans()
		}
	})
}
