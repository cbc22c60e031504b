package toolwrap

import "strings"

// RedactionMarker replaces values of sensitive input keys in logs.
const RedactionMarker = "[REDACTED]"

var sensitiveKeyFragments = []string{
	"password",
	"token",
	"secret",
	"key",
	"auth",
	"credential",
}

// redactInput returns a copy of input with values of sensitive top-level
// keys replaced by the redaction marker. Redaction is deliberately shallow:
// nested maps are passed through untouched, matching the documented behavior
// integrators rely on when reading logs.
func redactInput(input map[string]interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		if isSensitiveKey(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
