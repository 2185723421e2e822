package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gufagu-backend/pkg/constants"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, constants.RingTimeout, cfg.Realtime.RingTimeout)
	assert.Equal(t, constants.QueueEntryTTL, cfg.Realtime.QueueTTL)
	assert.Equal(t, constants.MaxChatMessageLength, cfg.Realtime.MaxMessageLength)
	assert.Equal(t, int64(constants.MaxFrameSize), cfg.Realtime.MaxFrameSize)
	assert.Equal(t, "mock", cfg.Push.Provider)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("CALL_RING_TIMEOUT", "45s")
	t.Setenv("CASSANDRA_HOSTS", "cass-1,cass-2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.gufagu.com")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Realtime.RingTimeout)
	assert.Equal(t, []string{"cass-1", "cass-2"}, cfg.Cassandra.Hosts)
	assert.Equal(t, []string{"https://app.gufagu.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.MinIO.UseSSL)
}

func TestLoad_ProductionRequirements(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		push    string
		wantErr string
	}{
		{"missing secret", "", "firebase", "JWT_SECRET must be set"},
		{"short secret", "short", "firebase", "at least 32 characters"},
		{"mock push", strings.Repeat("s", 32), "mock", "PUSH_PROVIDER=mock"},
		{"valid", strings.Repeat("s", 32), "firebase", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", "production")
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("PUSH_PROVIDER", tt.push)

			cfg, err := Load()

			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.True(t, cfg.IsProduction())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_RealtimeLimits(t *testing.T) {
	t.Setenv("ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Realtime.RingTimeout = 0
	assert.ErrorContains(t, cfg.Validate(), "CALL_RING_TIMEOUT")

	cfg.Realtime.RingTimeout = time.Second
	cfg.Realtime.MaxConnections = 0
	assert.ErrorContains(t, cfg.Validate(), "WS_MAX_CONNECTIONS")
}
