package dedupe

import (
	"fmt"

	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/store"
)

// Candidate is the identity a new card claims.
type Candidate struct {
	Name      string
	Email     *string
	Phone     *string
	ExcludeID int64 // skip this card id (edit-in-place checks)
}

// Matcher finds likely duplicates of a candidate within one
// organization. Matching is deliberately conservative: exact name
// equality plus an exact email or phone match. False negatives are
// preferred over merging two different visitors.
type Matcher struct {
	cards *store.CardStore
}

func NewMatcher(cards *store.CardStore) *Matcher {
	return &Matcher{cards: cards}
}

// FindDuplicate returns the most recently scanned card matching the
// candidate, or nil. A name is mandatory; without one no match is
// attempted. The email and phone gates only apply when the candidate
// supplies those fields.
func (m *Matcher) FindDuplicate(orgID int64, c Candidate) (*model.VisitorCard, error) {
	name := store.NormalizeName(c.Name)
	if name == "" {
		return nil, nil
	}

	var email, phone string
	if c.Email != nil {
		email = store.NormalizeEmail(*c.Email)
	}
	if c.Phone != nil {
		phone = store.NormalizePhone(*c.Phone)
	}
	if email == "" && phone == "" {
		return nil, nil
	}

	// Ordered most recently scanned first; the first hit wins ties.
	existing, err := m.cards.ListByNormalizedName(orgID, name)
	if err != nil {
		return nil, fmt.Errorf("list cards by name: %w", err)
	}

	for _, card := range existing {
		if card.ID == c.ExcludeID {
			continue
		}
		if email != "" && card.Email != nil && store.NormalizeEmail(*card.Email) == email {
			return card, nil
		}
		if phone != "" && card.Phone != nil && store.NormalizePhone(*card.Phone) == phone {
			return card, nil
		}
	}
	return nil, nil
}
