package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

var varPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.-]+)\}`)

// resolveValue walks a parameter value and substitutes every ${ref} against
// the run context. A string that is exactly one reference resolves to the
// referenced value with its type intact; references embedded in larger
// strings are rendered with fmt.Sprint. Maps and slices resolve recursively.
func resolveValue(value any, runCtx map[string]any, taskID string) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, runCtx, taskID)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolveValue(item, runCtx, taskID)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveValue(item, runCtx, taskID)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(s string, runCtx map[string]any, taskID string) (any, error) {
	matches := varPattern.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	// Whole-token references preserve the referenced type so a task can
	// pass a list or mapping produced upstream without stringifying it.
	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		ref := s[matches[0][2]:matches[0][3]]
		value, ok := lookup(runCtx, ref)
		if !ok {
			return nil, &domain.TaskParameterError{TaskID: taskID, Reference: ref}
		}
		return value, nil
	}

	var firstErr error
	out := varPattern.ReplaceAllStringFunc(s, func(token string) string {
		ref := token[2 : len(token)-1]
		value, ok := lookup(runCtx, ref)
		if !ok {
			if firstErr == nil {
				firstErr = &domain.TaskParameterError{TaskID: taskID, Reference: ref}
			}
			return token
		}
		return fmt.Sprint(value)
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// lookup resolves a dotted reference through nested map[string]any values,
// so ${ground.answer} reaches into the grounding tool's output map.
func lookup(runCtx map[string]any, ref string) (any, bool) {
	// A literal key wins over path navigation, so output keys that happen
	// to contain dots stay addressable.
	if value, ok := runCtx[ref]; ok {
		return value, true
	}
	parts := strings.Split(ref, ".")
	var current any = runCtx
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
