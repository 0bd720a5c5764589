package extraction

import (
	"encoding/json"
	"testing"
)

func TestNormalizeWellFormed(t *testing.T) {
	raw := map[string]any{
		"name":             "Mary Smith",
		"email":            "mary@example.com",
		"phone":            "(555) 123-4567",
		"prayer_request":   "Pray for my family",
		"interests":        []any{"Small Groups", "Serving"},
		"is_private":       true,
		"wants_follow_up":  true,
		"additional_notes": "prefers evening calls",
	}

	e := Normalize(raw)

	if e.Name != "Mary Smith" {
		t.Errorf("Name = %q", e.Name)
	}
	if e.Email == nil || *e.Email != "mary@example.com" {
		t.Errorf("Email = %v", e.Email)
	}
	if e.Phone == nil || *e.Phone != "(555) 123-4567" {
		t.Errorf("Phone = %v", e.Phone)
	}
	if e.PrayerRequest == nil || *e.PrayerRequest != "Pray for my family" {
		t.Errorf("PrayerRequest = %v", e.PrayerRequest)
	}
	if len(e.Interests) != 2 || e.Interests[0] != "Small Groups" {
		t.Errorf("Interests = %v", e.Interests)
	}
	if !e.IsPrivate || !e.WantsFollowUp {
		t.Errorf("flags = %v %v", e.IsPrivate, e.WantsFollowUp)
	}
	if e.Notes == nil || *e.Notes != "prefers evening calls" {
		t.Errorf("Notes = %v", e.Notes)
	}
}

func TestNormalizeSplitName(t *testing.T) {
	e := Normalize(map[string]any{"first_name": "Mary", "last_name": "Smith"})
	if e.Name != "Mary Smith" {
		t.Errorf("Name = %q", e.Name)
	}

	e = Normalize(map[string]any{"first_name": "Mary"})
	if e.Name != "Mary" {
		t.Errorf("Name = %q", e.Name)
	}
}

// Every field must independently default when the shape is wrong —
// the normalizer is total over arbitrary JSON.
func TestNormalizeWrongShapes(t *testing.T) {
	raw := map[string]any{
		"name":            42,
		"email":           []any{"a@b.com"},
		"phone":           map[string]any{"value": "555"},
		"prayer_request":  false,
		"interests":       "not-an-array",
		"is_private":      "yes",
		"wants_follow_up": 1,
	}

	e := Normalize(raw)

	if e.Name != "" {
		t.Errorf("Name = %q, want empty", e.Name)
	}
	if e.Email != nil || e.Phone != nil || e.PrayerRequest != nil {
		t.Errorf("expected nil optional strings: %v %v %v", e.Email, e.Phone, e.PrayerRequest)
	}
	if e.Interests != nil {
		t.Errorf("Interests = %v, want nil", e.Interests)
	}
	if e.IsPrivate || e.WantsFollowUp {
		t.Errorf("expected false flags")
	}
}

func TestNormalizeEmptyAndNil(t *testing.T) {
	e := Normalize(map[string]any{})
	if e.Name != "" || e.Email != nil || e.Interests != nil || e.Notes != nil {
		t.Errorf("empty input should produce zero record: %+v", e)
	}

	e = Normalize(map[string]any{
		"name":             nil,
		"email":            nil,
		"interests":        nil,
		"additional_notes": nil,
	})
	if e.Name != "" || e.Email != nil || e.Interests != nil || e.Notes != nil {
		t.Errorf("nil fields should produce zero record: %+v", e)
	}
}

func TestNormalizeInterestsFiltersNonStrings(t *testing.T) {
	e := Normalize(map[string]any{
		"interests": []any{"Kids Ministry", 7, nil, true, "Worship"},
	})
	if len(e.Interests) != 2 || e.Interests[0] != "Kids Ministry" || e.Interests[1] != "Worship" {
		t.Errorf("Interests = %v", e.Interests)
	}
}

func TestNormalizeNotesCoercion(t *testing.T) {
	e := Normalize(map[string]any{"additional_notes": map[string]any{"allergies": "none"}})
	if e.Notes == nil {
		t.Fatal("expected serialized notes")
	}
	var decoded map[string]string
	if err := json.Unmarshal([]byte(*e.Notes), &decoded); err != nil {
		t.Fatalf("notes not valid JSON: %v", err)
	}
	if decoded["allergies"] != "none" {
		t.Errorf("decoded = %v", decoded)
	}

	e = Normalize(map[string]any{"additional_notes": 12.5})
	if e.Notes == nil || *e.Notes != "12.5" {
		t.Errorf("Notes = %v", e.Notes)
	}
}

// Normalize must never panic, whatever the decoder hands it.
func TestNormalizeTotality(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"name": null}`,
		`{"interests": {"nested": [1,2]}}`,
		`{"is_private": null, "additional_notes": [1, "two", {"three": 3}]}`,
		`{"name": {"first": "x"}, "email": 0, "phone": [], "prayer_request": {}}`,
	}
	for _, in := range inputs {
		var raw map[string]any
		if err := json.Unmarshal([]byte(in), &raw); err != nil {
			t.Fatalf("bad fixture %q: %v", in, err)
		}
		_ = Normalize(raw) // must not panic
	}
	_ = Normalize(nil)
}
