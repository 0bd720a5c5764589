package triage

import (
	"sort"
	"strings"

	"github.com/dukerupert/shepherd/internal/model"
)

// Display categories derived at read time, never stored.
const (
	DisplayCritical = "Critical"
	DisplayPrivate  = "Private"
	CategoryOther   = "Other"
)

// Classifier buckets prayer requests for the triage queue.
type Classifier struct {
	keywords   []string
	categories map[string]bool
	order      []string
}

func NewClassifier(t Taxonomy) *Classifier {
	c := &Classifier{
		categories: make(map[string]bool, len(t.Categories)),
		order:      t.DisplayOrder,
	}
	// Flatten groups; the group names are documentation for the
	// taxonomy file, not part of the matching.
	var groups []string
	for name := range t.CriticalGroups {
		groups = append(groups, name)
	}
	sort.Strings(groups)
	for _, g := range groups {
		for _, kw := range t.CriticalGroups[g] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				c.keywords = append(c.keywords, kw)
			}
		}
	}
	for _, cat := range t.Categories {
		c.categories[cat] = true
	}
	return c
}

// Display derives the triage bucket for a request. Rule order: urgent
// keywords win unless the request is private; private wins next; then
// the stored category if it is a known one; then Other.
func (c *Classifier) Display(text string, isPrivate bool, stored string) string {
	if !isPrivate && c.isCritical(text) {
		return DisplayCritical
	}
	if isPrivate {
		return DisplayPrivate
	}
	if c.categories[stored] {
		return stored
	}
	return CategoryOther
}

// DisplayFor derives the bucket for a card.
func (c *Classifier) DisplayFor(card *model.VisitorCard) string {
	var text, stored string
	if card.PrayerRequest != nil {
		text = *card.PrayerRequest
	}
	if card.Category != nil {
		stored = *card.Category
	}
	return c.Display(text, card.IsPrivate, stored)
}

func (c *Classifier) isCritical(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Bucket is one named triage queue section.
type Bucket struct {
	Name  string               `json:"name"`
	Cards []*model.VisitorCard `json:"cards"`
}

// Group partitions requests into display buckets in the fixed queue
// order. Empty buckets are omitted.
func (c *Classifier) Group(cards []*model.VisitorCard) []Bucket {
	byName := make(map[string][]*model.VisitorCard)
	for _, card := range cards {
		name := c.DisplayFor(card)
		byName[name] = append(byName[name], card)
	}

	var buckets []Bucket
	for _, name := range c.order {
		if group, ok := byName[name]; ok {
			buckets = append(buckets, Bucket{Name: name, Cards: group})
		}
	}
	return buckets
}

// Stats summarizes a triage queue. The critical count is re-derived
// through the same rule as Display, never read from storage.
type Stats struct {
	Total     int `json:"total"`
	Critical  int `json:"critical"`
	Answered  int `json:"answered"`
	Remaining int `json:"remaining"`
}

func (c *Classifier) Stats(cards []*model.VisitorCard) Stats {
	var st Stats
	st.Total = len(cards)
	for _, card := range cards {
		if c.DisplayFor(card) == DisplayCritical {
			st.Critical++
		}
		if card.PrayerStatus == model.PrayerStatusAnswered {
			st.Answered++
		}
	}
	st.Remaining = st.Total - st.Answered
	return st
}
