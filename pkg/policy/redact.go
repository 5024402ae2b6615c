package policy

import (
	"fmt"
	"sort"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// Redact returns a masked deep copy of payload and the violations found.
// It is a pure function: the input is never mutated, and repeated
// application is idempotent because masks match none of the detectors.
//
// Traversal is a tagged-variant walk over {mapping, sequence, scalar}:
// maps and slices recurse, strings are scanned, every other scalar passes
// through untouched. Map keys are visited in sorted order so violation
// ordering is deterministic.
func Redact(payload any) (any, []domain.Violation) {
	return redactValue(payload, "$")
}

func redactValue(value any, location string) (any, []domain.Violation) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		var violations []domain.Violation
		for _, key := range sortedKeys(v) {
			child, found := redactValue(v[key], location+"."+key)
			out[key] = child
			violations = append(violations, found...)
		}
		return out, violations

	case []any:
		out := make([]any, len(v))
		var violations []domain.Violation
		for i, item := range v {
			child, found := redactValue(item, fmt.Sprintf("%s[%d]", location, i))
			out[i] = child
			violations = append(violations, found...)
		}
		return out, violations

	case string:
		redacted, types := scanString(v)
		if len(types) == 0 {
			return v, nil
		}
		violations := make([]domain.Violation, 0, len(types))
		for _, t := range types {
			violations = append(violations, domain.Violation{
				Type:     t,
				Location: location,
				Note:     "masked in place",
			})
		}
		return redacted, violations

	default:
		return value, nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
