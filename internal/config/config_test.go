package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvFile, EnvEngine, EnvModel, EnvModelDir, EnvLanguage, EnvAddr, EnvMaxUpload,
		EnvSessionTTL, EnvOpenAIKey, EnvOpenAIBaseURL, EnvOpenAIModel, EnvGoogleSampleRate,
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	s, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, Defaults(), s)
	require.Equal(t, "tiny.en", s.Model)
	require.Equal(t, "en", s.Language)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvEngine, "openai")
	t.Setenv(EnvAddr, "127.0.0.1:9000")
	t.Setenv(EnvMaxUpload, "25")
	t.Setenv(EnvSessionTTL, "15m")
	t.Setenv(EnvGoogleSampleRate, "16000")

	s, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "openai", s.Engine)
	require.Equal(t, "127.0.0.1:9000", s.Addr)
	require.Equal(t, int64(25), s.MaxUploadMB)
	require.Equal(t, 15*time.Minute, s.SessionTTL)
	require.Equal(t, 16000, s.GoogleSampleRate)
}

func TestFromEnvRejectsMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMaxUpload, "lots")
	t.Setenv(EnvSessionTTL, "-1s")

	_, err := FromEnv()
	require.Error(t, err)
	require.Contains(t, err.Error(), EnvMaxUpload)
	require.Contains(t, err.Error(), EnvSessionTTL)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "voxsrt.env")
	require.NoError(t, os.WriteFile(path, []byte("VOXSRT_MODEL=base\nVOXSRT_LANGUAGE=de\n"), 0o644))
	t.Setenv(EnvFile, path)
	t.Setenv(EnvLanguage, "fr")
	// godotenv only fills unset variables; an empty value still counts as set.
	require.NoError(t, os.Unsetenv(EnvModel))

	require.NoError(t, LoadDotEnv())

	s, err := FromEnv()
	require.NoError(t, err)
	require.Equal(t, "base", s.Model)
	require.Equal(t, "fr", s.Language)
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvFile, filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, LoadDotEnv())
}
