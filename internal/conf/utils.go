// conf/utils.go path helpers for the conf package
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/tphakala/medtel-go/internal/errors"
)

// GetDefaultConfigPaths returns the OS specific default configuration paths,
// most preferred first.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "medtel-go"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "medtel-go"),
			"/etc/medtel-go",
		}
	}

	// Current working directory is always a fallback
	configPaths = append(configPaths, ".")

	return configPaths, nil
}

// GetBasePath expands and normalizes the given path and makes sure the
// directory exists.
func GetBasePath(path string) string {
	expandedPath := os.ExpandEnv(path)
	basePath := filepath.Clean(expandedPath)

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			fmt.Printf("failed to create directory '%s': %v\n", basePath, err)
		}
	}

	return basePath
}
