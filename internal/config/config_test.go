package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

const testSecret = "0123456789abcdef0123456789abcdef"

// withSecret adds a valid JWT_SECRET to env unless it already sets one.
func withSecret(m map[string]string) func(string) (string, bool) {
	out := map[string]string{"JWT_SECRET": testSecret}
	for k, v := range m {
		out[k] = v
	}
	return envMap(out)
}

func TestDefaultsNeedOnlySecret(t *testing.T) {
	cfg, err := Load(nil, withSecret(nil), "")
	require.NoError(t, err)
	want := Defaults()
	want.JWTSecret = testSecret
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestLoadRequiresSecret(t *testing.T) {
	assert.Empty(t, Defaults().JWTSecret)
	assert.Error(t, Defaults().Validate())

	_, err := Load(nil, envMap(nil), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWTSecret")

	_, err = Load([]string{"-addr", ":9090"}, envMap(map[string]string{"JWT_SECRET": ""}), "")
	assert.Error(t, err)
}

func TestSecretFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("JWT_SECRET="+testSecret+"\n"), 0o600))
	cfg, err := Load(nil, envMap(nil), envFile)
	require.NoError(t, err)
	assert.Equal(t, testSecret, cfg.JWTSecret)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_DRIVER=postgres\nDB_DSN=postgres://file\nJWT_TTL=30m\nTOKEN_CODEC=sqids\n"), 0o600))

	env := withSecret(map[string]string{
		"DB_DSN":        "postgres://env",
		"BLOB_DRIVER":   "s3",
		"S3_BUCKET":     "pastes",
		"S3_PREFIX":     "pastebox/",
		"S3_ENDPOINT":   "http://localhost:9000",
		"S3_PATH_STYLE": "true",
		"LOG_LEVEL":     "DEBUG",
	})
	cfg, err := Load([]string{"-addr", ":9090"}, env, envFile)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://env", cfg.DBDSN)
	assert.Equal(t, 30*time.Minute, cfg.JWTTTL)
	assert.Equal(t, "sqids", cfg.TokenCodec)
	assert.Equal(t, "s3", cfg.BlobDriver)
	assert.True(t, cfg.S3PathStyle)
	assert.Equal(t, "pastebox/", cfg.S3Prefix)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":   {"DB_DRIVER": "mysql"},
		"codec":    {"TOKEN_CODEC": "hex"},
		"secret":   {"JWT_SECRET": "short"},
		"s3":       {"BLOB_DRIVER": "s3"},
		"duration": {"JWT_TTL": "soon"},
		"bool":     {"BEHIND_PROXY": "maybe"},
		"mailfrom": {"SMTP_HOST": "smtp.example.com"},
		"ttl":      {"JWT_TTL": "10ms"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(nil, withSecret(env), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"-nope"}, withSecret(nil), "")
	assert.Error(t, err)
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(nil, withSecret(nil), filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
