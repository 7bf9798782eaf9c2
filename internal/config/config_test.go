package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data", cfg.OutputDir)

	assert.True(t, cfg.ScheduleEnabled)
	assert.Equal(t, time.Monday, cfg.Schedule.Weekday)
	assert.Equal(t, 6, cfg.Schedule.Hour)
	assert.Equal(t, 0, cfg.Schedule.Minute)
	assert.Equal(t, time.Local, cfg.Schedule.Location)

	assert.Equal(t, 60*time.Second, cfg.RequestTimeoutShort)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeoutLong)
	assert.Equal(t, 300*time.Second, cfg.RequestTimeoutBulk)
	assert.InDelta(t, 5.0, cfg.UpstreamRateLimit, 0)

	assert.Equal(t, DefaultCrashAPIURL, cfg.CrashAPIURL)
	assert.Equal(t, DefaultCrashCSVURL, cfg.CrashCSVURL)
	assert.Equal(t, 2000, cfg.CrashPageSize)
	assert.Equal(t, "43", cfg.CrashJurisCode)
	assert.Equal(t, "087", cfg.CrashFIPS)
	assert.Equal(t, []string{"HENRICO", "043. Henrico County"}, cfg.CrashNamePatterns)
	assert.Equal(t, "NonVDOT", cfg.CrashOwnershipMarker)

	assert.Equal(t, DefaultGrantsURLTemplate, cfg.GrantsURLTemplate)
	assert.Equal(t, 7, cfg.GrantsLookbackDays)
	assert.Equal(t, 30, cfg.GrantsActiveWindowDays)

	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "civic-data-refreshed", cfg.KafkaTopic)
	assert.Empty(t, cfg.ObjectStoreEndpoint)
	assert.Equal(t, "civic-data", cfg.ObjectStoreBucket)
	assert.True(t, cfg.ObjectStoreUseSSL)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("OUTPUT_DIR", "/var/lib/civic")
	t.Setenv("SCHEDULE_ENABLED", "false")
	t.Setenv("SCHEDULE_WEEKDAY", "thu")
	t.Setenv("SCHEDULE_TIME", "21:15")
	t.Setenv("SCHEDULE_TZ", "America/New_York")
	t.Setenv("REQUEST_TIMEOUT_SHORT", "5s")
	t.Setenv("REQUEST_TIMEOUT_LONG", "10s")
	t.Setenv("REQUEST_TIMEOUT_BULK", "1m")
	t.Setenv("UPSTREAM_RATE_LIMIT", "0.5")
	t.Setenv("CRASH_API_URL", "http://arcgis.local/query")
	t.Setenv("CRASH_CSV_URL", "")
	t.Setenv("CRASH_PAGE_SIZE", "500")
	t.Setenv("CRASH_NAME_PATTERNS", " CHESTERFIELD , ")
	t.Setenv("GRANTS_URL_TEMPLATE", "http://mirror.local/{date}.zip")
	t.Setenv("GRANTS_LOOKBACK_DAYS", "3")
	t.Setenv("GRANTS_ACTIVE_WINDOW_DAYS", "90")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")
	t.Setenv("OBJECT_STORE_ENDPOINT", "minio:9000")
	t.Setenv("OBJECT_STORE_BUCKET", "exports")
	t.Setenv("OBJECT_STORE_USE_SSL", "false")
	t.Setenv("OBJECT_STORE_PREFIX", "henrico")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/civic", cfg.OutputDir)
	assert.False(t, cfg.ScheduleEnabled)
	assert.Equal(t, "Thursday 21:15 America/New_York", cfg.Schedule.String())
	assert.Equal(t, 5*time.Second, cfg.RequestTimeoutShort)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeoutLong)
	assert.Equal(t, time.Minute, cfg.RequestTimeoutBulk)
	assert.InDelta(t, 0.5, cfg.UpstreamRateLimit, 0)
	assert.Equal(t, "http://arcgis.local/query", cfg.CrashAPIURL)
	assert.Empty(t, cfg.CrashCSVURL)
	assert.Equal(t, 500, cfg.CrashPageSize)
	assert.Equal(t, []string{"CHESTERFIELD"}, cfg.CrashNamePatterns)
	assert.Equal(t, "http://mirror.local/{date}.zip", cfg.GrantsURLTemplate)
	assert.Equal(t, 3, cfg.GrantsLookbackDays)
	assert.Equal(t, 90, cfg.GrantsActiveWindowDays)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
	assert.Equal(t, "minio:9000", cfg.ObjectStoreEndpoint)
	assert.Equal(t, "exports", cfg.ObjectStoreBucket)
	assert.False(t, cfg.ObjectStoreUseSSL)
	assert.Equal(t, "henrico", cfg.ObjectStorePrefix)
}

func TestLoad_EmptyHTTPAddrDisablesServer(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTPAddr)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SCHEDULE_ENABLED", "sometimes"},
		{"SCHEDULE_WEEKDAY", "funday"},
		{"SCHEDULE_TIME", "6am"},
		{"SCHEDULE_TZ", "Mars/Olympus"},
		{"REQUEST_TIMEOUT_SHORT", "soon"},
		{"REQUEST_TIMEOUT_LONG", "-1s"},
		{"REQUEST_TIMEOUT_BULK", "0s"},
		{"UPSTREAM_RATE_LIMIT", "-2"},
		{"CRASH_PAGE_SIZE", "0"},
		{"GRANTS_LOOKBACK_DAYS", "week"},
		{"GRANTS_ACTIVE_WINDOW_DAYS", "-30"},
		{"GRANTS_URL_TEMPLATE", "http://mirror.local/latest.zip"},
		{"OBJECT_STORE_USE_SSL", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_NoCrashSource(t *testing.T) {
	t.Setenv("CRASH_API_URL", "")
	t.Setenv("CRASH_CSV_URL", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRASH_API_URL")
}

func TestLoad_KafkaTopicRequiredWithBrokers(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_TOPIC", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_TOPIC")
}

func TestLoad_BucketRequiredWithEndpoint(t *testing.T) {
	t.Setenv("OBJECT_STORE_ENDPOINT", "minio:9000")
	t.Setenv("OBJECT_STORE_BUCKET", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OBJECT_STORE_BUCKET")
}
