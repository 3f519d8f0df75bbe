package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnv(key, defaultVal string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultVal
}

// getEnvAsKeyValueMap parses "Name=Code;Other Name=OC" lists. Semicolons
// separate pairs because names may contain commas.
func getEnvAsKeyValueMap(key string, defaults map[string]string) map[string]string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaults
	}
	parsed := make(map[string]string)
	for _, pair := range strings.Split(value, ";") {
		k, v, found := strings.Cut(pair, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if found && k != "" && v != "" {
			parsed[k] = v
		}
	}
	if len(parsed) == 0 {
		return defaults
	}
	return parsed
}

// getEnvAsStageNames parses "1=Purchase Order;2=Proforma Invoice" lists into
// the stage-name lookup.
func getEnvAsStageNames(key string, defaults map[int]string) map[int]string {
	raw := getEnvAsKeyValueMap(key, nil)
	if raw == nil {
		return defaults
	}
	parsed := make(map[int]string, len(raw))
	for k, v := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		parsed[n] = v
	}
	if len(parsed) == 0 {
		return defaults
	}
	return parsed
}

func getEnvAsInt(key string, defaultVal int) int {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.Atoi(value); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if v, err := strconv.ParseBool(value); err == nil {
			return v
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvAsStringSlice(key string, defaults []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		filtered := make([]string, 0, len(parts))
		for _, part := range parts {
			p := strings.TrimSpace(part)
			if p != "" {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}
	return defaults
}
