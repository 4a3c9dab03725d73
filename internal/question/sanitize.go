package question

import (
	"reflect"
	"strconv"
)

// defaultCorrectAnswer is the placeholder used when a source document carries
// no usable correct answer. Records built with it are flagged FallbackAnswer.
const defaultCorrectAnswer = "A"

// Clean deep-copies an arbitrary upstream question document into a
// CleanedQuestion. It returns nil only for nil input; any other input produces
// a record, falling back to a minimal field-by-field copy when the nested
// structure is malformed. Non-serializable values (funcs, channels, live
// handles) never survive into the result.
func Clean(raw any) *CleanedQuestion {
	if isNil(raw) {
		return nil
	}

	doc, ok := sanitizeValue(raw).(map[string]any)
	if !ok {
		return minimalClean(raw)
	}

	cq := &CleanedQuestion{
		ExternalID: asString(doc["external_id"]),
		Stem:       asString(doc["stem"]),
		Stimulus:   asString(doc["stimulus"]),
		Type:       asStringOr(doc["type"], "mcq"),
		Domain:     asString(doc["domain"]),
		Rationale:  asString(doc["rationale"]),
		Image:      asString(doc["image"]),
	}
	cq.CorrectAnswer, cq.FallbackAnswer = correctAnswers(doc["correct_answer"])

	if opts, ok := doc["answerOptions"].([]any); ok {
		for _, o := range opts {
			om, ok := o.(map[string]any)
			if !ok {
				continue
			}
			cq.AnswerOptions = append(cq.AnswerOptions, AnswerOption{
				ID:      asString(om["id"]),
				Content: asString(om["content"]),
			})
		}
	}
	return cq
}

// minimalClean builds the smallest valid record from whatever top-level fields
// can be coerced. Used when the full clean fails; never returns nil.
func minimalClean(raw any) *CleanedQuestion {
	doc, _ := raw.(map[string]any)
	cq := &CleanedQuestion{
		ExternalID: asString(doc["external_id"]),
		Stem:       asString(doc["stem"]),
		Type:       asStringOr(doc["type"], "mcq"),
		Domain:     asString(doc["domain"]),
		Rationale:  asString(doc["rationale"]),
	}
	cq.CorrectAnswer, cq.FallbackAnswer = correctAnswers(doc["correct_answer"])
	return cq
}

// correctAnswers derives the correct-answer list in priority order: existing
// array with falsy entries dropped, then a single scalar wrapped, then the
// default placeholder (flagged).
func correctAnswers(v any) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := asString(e); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out, false
		}
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out, false
		}
	default:
		if s := asString(v); s != "" {
			return []string{s}, false
		}
	}
	return []string{defaultCorrectAnswer}, true
}

// sanitizeValue returns a deep copy of v containing only JSON-representable
// values. Anything else (funcs, channels, unsafe pointers) is dropped, the way
// a JSON round-trip would drop it.
func sanitizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			if s := sanitizeValue(e); s != nil {
				out[k] = s
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if s := sanitizeValue(e); s != nil {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		if len(t) > 0 {
			return asString(t[0])
		}
	case []string:
		if len(t) > 0 {
			return t[0]
		}
	}
	return ""
}

func asStringOr(v any, def string) string {
	if s := asString(v); s != "" {
		return s
	}
	return def
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
