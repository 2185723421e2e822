// Package env reads typed settings from environment variables. Malformed
// values fall back to the default rather than failing startup.
package env

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// GetStringFromFile prefers the contents of the file named by <key>_FILE,
// so secrets can be mounted instead of exported.
func GetStringFromFile(key, defaultValue string) string {
	if path := os.Getenv(key + "_FILE"); path != "" {
		if content, err := os.ReadFile(filepath.Clean(path)); err == nil {
			return string(bytes.TrimSpace(content))
		}
	}
	return GetString(key, defaultValue)
}

// GetString returns the variable or defaultValue when it is unset or empty
func GetString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetInt(key string, defaultValue int) int {
	return parsed(key, defaultValue, strconv.Atoi)
}

func GetBool(key string, defaultValue bool) bool {
	return parsed(key, defaultValue, strconv.ParseBool)
}

func GetDuration(key string, defaultValue time.Duration) time.Duration {
	return parsed(key, defaultValue, time.ParseDuration)
}

// GetStringSlice splits a comma-separated variable, dropping blank items
func GetStringSlice(key string, defaultValue []string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func parsed[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
