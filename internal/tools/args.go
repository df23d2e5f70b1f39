package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ValidationError represents a tool argument validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// GetString returns the first of keys present in args. A present key with a
// non-string value is an error rather than a miss.
func GetString(args map[string]any, keys ...string) (string, bool, error) {
	for _, key := range keys {
		val, ok := args[key]
		if !ok || val == nil {
			continue
		}
		str, ok := val.(string)
		if !ok {
			return "", false, NewValidationError(key, "must be a string")
		}
		return str, true, nil
	}
	return "", false, nil
}

// RequireString is GetString for a required non-empty argument. The error
// names the first key.
func RequireString(args map[string]any, keys ...string) (string, error) {
	s, ok, err := GetString(args, keys...)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(s) == "" {
		return "", NewValidationError(keys[0], "is required")
	}
	return s, nil
}

// GetInt extracts an integer argument. Models send numbers as JSON numbers
// or, occasionally, as numeric strings; both are accepted.
func GetInt(args map[string]any, key string) (int, bool, error) {
	val, ok := args[key]
	if !ok || val == nil {
		return 0, false, nil
	}
	switch v := val.(type) {
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, NewValidationError(key, "must be an integer")
		}
		return int(v), true, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false, NewValidationError(key, "must be an integer")
		}
		return int(n), true, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false, NewValidationError(key, "must be an integer")
		}
		return n, true, nil
	}
	return 0, false, NewValidationError(key, "must be an integer")
}

// GetIntDefault extracts an integer argument with a default value.
func GetIntDefault(args map[string]any, key string, defaultVal int) (int, error) {
	n, ok, err := GetInt(args, key)
	if err != nil || !ok {
		return defaultVal, err
	}
	return n, nil
}
