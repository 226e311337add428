package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// envReader reads typed overrides. Unparsable values keep the fallback and
// leave a warning behind.
type envReader struct {
	warnings []string
}

func (e *envReader) getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *envReader) getFloat64(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		e.warnf("invalid float64 %q for %s, using default %v", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (e *envReader) getInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valueStr)
	if err != nil {
		e.warnf("invalid int %q for %s, using default %d", valueStr, key, fallback)
		return fallback
	}
	return val
}

func (e *envReader) getBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valueStr)
	if err != nil {
		e.warnf("invalid bool %q for %s, using default %t", valueStr, key, fallback)
		return fallback
	}
	return val
}

// getList splits a comma separated value, dropping empty items.
func (e *envReader) getList(key string, fallback []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (e *envReader) warnf(format string, args ...interface{}) {
	e.warnings = append(e.warnings, fmt.Sprintf(format, args...))
}
