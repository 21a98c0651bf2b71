// Package config resolves flag defaults from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvFile             = "VOXSRT_ENV"
	EnvEngine           = "VOXSRT_ENGINE"
	EnvModel            = "VOXSRT_MODEL"
	EnvModelDir         = "VOXSRT_MODEL_DIR"
	EnvLanguage         = "VOXSRT_LANGUAGE"
	EnvAddr             = "VOXSRT_ADDR"
	EnvMaxUpload        = "VOXSRT_MAX_UPLOAD_MB"
	EnvSessionTTL       = "VOXSRT_SESSION_TTL"
	EnvOpenAIKey        = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_BASE_URL"
	EnvOpenAIModel      = "VOXSRT_OPENAI_MODEL"
	EnvGoogleSampleRate = "VOXSRT_GOOGLE_SAMPLE_RATE"
)

type Settings struct {
	Engine           string
	Model            string
	ModelDir         string
	Language         string
	Addr             string
	MaxUploadMB      int64
	SessionTTL       time.Duration
	OpenAIKey        string
	OpenAIBaseURL    string
	OpenAIModel      string
	GoogleSampleRate int
}

func Defaults() Settings {
	return Settings{
		Engine:      "whisper",
		Model:       "tiny.en",
		Language:    "en",
		Addr:        ":8501",
		MaxUploadMB: 200,
		SessionTTL:  time.Hour,
	}
}

// LoadDotEnv loads the file named by VOXSRT_ENV and then ./.env. Files that do
// not exist are skipped and variables already set in the environment win.
func LoadDotEnv() error {
	var paths []string
	if p := strings.TrimSpace(os.Getenv(EnvFile)); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, ".env")

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file %s: %w", p, err)
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// FromEnv overlays environment variables on Defaults. Malformed numeric values
// are reported instead of silently ignored.
func FromEnv() (Settings, error) {
	s := Defaults()
	s.Engine = envOrDefault(EnvEngine, s.Engine)
	s.Model = envOrDefault(EnvModel, s.Model)
	s.ModelDir = envOrDefault(EnvModelDir, s.ModelDir)
	s.Language = envOrDefault(EnvLanguage, s.Language)
	s.Addr = envOrDefault(EnvAddr, s.Addr)
	s.OpenAIKey = envOrDefault(EnvOpenAIKey, s.OpenAIKey)
	s.OpenAIBaseURL = envOrDefault(EnvOpenAIBaseURL, s.OpenAIBaseURL)
	s.OpenAIModel = envOrDefault(EnvOpenAIModel, s.OpenAIModel)

	var errs []error
	if v := envOrDefault(EnvMaxUpload, ""); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", EnvMaxUpload, v))
		} else {
			s.MaxUploadMB = n
		}
	}
	if v := envOrDefault(EnvSessionTTL, ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration, got %q", EnvSessionTTL, v))
		} else {
			s.SessionTTL = d
		}
	}
	if v := envOrDefault(EnvGoogleSampleRate, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive integer, got %q", EnvGoogleSampleRate, v))
		} else {
			s.GoogleSampleRate = n
		}
	}

	return s, errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
