package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "console", cfg.Mail.Provider)
	assert.Equal(t, "*/15 * * * *", cfg.Population.Cron)
	assert.Equal(t, 10*time.Minute, cfg.Population.LockTTL)
	assert.InDelta(t, 4.0, cfg.Signup.OverbookingFactor, 0.0001)
	assert.Equal(t, 3, cfg.Signup.AttendanceLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.Signup.SignoffWindow)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MAIL_PROVIDER", "SendGrid")
	t.Setenv("POPULATION_LOCK_TTL", "90s")
	t.Setenv("JWT_AUDIENCE", "langcenter, admin ,")
	t.Setenv("ATTENDANCE_LIMIT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sendgrid", cfg.Mail.Provider)
	assert.Equal(t, 90*time.Second, cfg.Population.LockTTL)
	assert.Equal(t, []string{"langcenter", "admin"}, cfg.JWT.Audience)
	assert.Equal(t, 5, cfg.Signup.AttendanceLimit)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Hour, parseDuration("2h", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
