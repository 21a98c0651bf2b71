package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "voxsrt"

// Env carries the environment inputs used to locate data directories.
type Env struct {
	GOOS         string
	HomeDir      string
	XDGDataHome  string
	LocalAppData string
}

func CurrentEnv() (Env, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}

	return Env{
		GOOS:         runtime.GOOS,
		HomeDir:      homeDir,
		XDGDataHome:  os.Getenv("XDG_DATA_HOME"),
		LocalAppData: os.Getenv("LOCALAPPDATA"),
	}, nil
}

func DefaultModelDirFor(env Env) (string, error) {
	dataDir, err := defaultDataDirFor(env)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

// ResolveModelDir returns override when set, otherwise the per-user model
// directory for the host OS.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	env, err := CurrentEnv()
	if err != nil {
		return "", err
	}

	return DefaultModelDirFor(env)
}

func defaultDataDirFor(env Env) (string, error) {
	if env.HomeDir == "" {
		return "", errors.New("home directory is empty")
	}

	switch env.GOOS {
	case "linux", "freebsd", "openbsd":
		if env.XDGDataHome != "" {
			return filepath.Join(env.XDGDataHome, appDirName), nil
		}
		return filepath.Join(env.HomeDir, ".local", "share", appDirName), nil
	case "darwin":
		return filepath.Join(env.HomeDir, "Library", "Application Support", appDirName), nil
	case "windows":
		if env.LocalAppData != "" {
			return filepath.Join(env.LocalAppData, appDirName), nil
		}
		return filepath.Join(env.HomeDir, "AppData", "Local", appDirName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", env.GOOS)
	}
}
