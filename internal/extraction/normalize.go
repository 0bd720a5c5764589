// Package extraction is the trust boundary between the vision model and
// the intake pipeline. The upstream output is unvalidated JSON; every
// field here independently defaults instead of failing, so one malformed
// field never sinks a whole card.
package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extracted is the typed result of normalizing raw vision output.
type Extracted struct {
	Name          string
	Email         *string
	Phone         *string
	PrayerRequest *string
	Interests     []string
	IsPrivate     bool
	WantsFollowUp bool
	Notes         *string
}

// Normalize converts raw vision-model output into an Extracted record.
// It is pure and total: any JSON-shaped input produces a result, never
// an error.
func Normalize(raw map[string]any) Extracted {
	var e Extracted

	e.Name = strings.TrimSpace(stringField(raw, "name"))
	if e.Name == "" {
		first := strings.TrimSpace(stringField(raw, "first_name"))
		last := strings.TrimSpace(stringField(raw, "last_name"))
		e.Name = strings.TrimSpace(first + " " + last)
	}

	e.Email = optionalString(raw, "email")
	e.Phone = optionalString(raw, "phone")
	e.PrayerRequest = optionalString(raw, "prayer_request")
	e.Interests = stringSlice(raw, "interests")
	e.IsPrivate = boolField(raw, "is_private")
	e.WantsFollowUp = boolField(raw, "wants_follow_up")
	e.Notes = coerceNotes(raw["additional_notes"])

	return e
}

// stringField returns the value only if it really is a string.
func stringField(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}

func optionalString(raw map[string]any, key string) *string {
	s, ok := raw[key].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func boolField(raw map[string]any, key string) bool {
	b, ok := raw[key].(bool)
	return ok && b
}

// stringSlice passes the value through only if it is an array, keeping
// just its string elements. A wrong-shaped value becomes nil.
func stringSlice(raw map[string]any, key string) []string {
	arr, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range arr {
		if s, ok := v.(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// coerceNotes keeps nil as nil and strings as-is; any other shape is
// serialized so nothing the model saw is silently dropped.
func coerceNotes(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return &val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s := fmt.Sprint(val)
			return &s
		}
		s := string(data)
		return &s
	}
}
