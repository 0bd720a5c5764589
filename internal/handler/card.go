package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/dedupe"
	"github.com/dukerupert/shepherd/internal/extraction"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/prayer"
	"github.com/dukerupert/shepherd/internal/storage"
	"github.com/dukerupert/shepherd/internal/store"
	"github.com/dukerupert/shepherd/internal/websocket"
)

const maxPhotoBytes = 10 << 20 // 10 MiB

type CardHandler struct {
	cards     *store.CardStore
	batches   *store.BatchStore
	orgs      *store.OrgStore
	matcher   *dedupe.Matcher
	extractor *extraction.Client
	photos    *storage.PhotoStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewCardHandler(
	cs *store.CardStore,
	bs *store.BatchStore,
	os *store.OrgStore,
	m *dedupe.Matcher,
	ec *extraction.Client,
	ps *storage.PhotoStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *CardHandler {
	return &CardHandler{
		cards:     cs,
		batches:   bs,
		orgs:      os,
		matcher:   m,
		extractor: ec,
		photos:    ps,
		hub:       hub,
		logger:    logger.With("component", "card"),
	}
}

type scanResponse struct {
	Card        *model.VisitorCard `json:"card"`
	DuplicateOf *model.VisitorCard `json:"duplicate_of,omitempty"`
}

// Scan ingests one card photo: vision extraction, normalization,
// duplicate detection, then persistence. Extraction failure aborts the
// scan; photo archival failure does not.
func (h *CardHandler) Scan(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo is required"})
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	raw, err := h.extractor.Extract(r.Context(), photo, mimeType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	extracted := extraction.Normalize(raw)
	if extracted.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "could not read a name from the card"})
		return
	}

	duplicate, err := h.matcher.FindDuplicate(scope.OrgID, dedupe.Candidate{
		Name:  extracted.Name,
		Email: extracted.Email,
		Phone: extracted.Phone,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	batch, err := h.activeBatch(scope)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	card := &model.VisitorCard{
		OrganizationID: scope.OrgID,
		LocationID:     batch.LocationID,
		BatchID:        &batch.ID,
		Name:           extracted.Name,
		Email:          extracted.Email,
		Phone:          extracted.Phone,
		PrayerRequest:  extracted.PrayerRequest,
		Notes:          extracted.Notes,
		Interests:      extracted.Interests,
		IsPrivate:      extracted.IsPrivate,
		WantsFollowUp:  extracted.WantsFollowUp,
	}

	created, err := h.cards.Create(card)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if duplicate != nil {
		dup := model.CardStatusDuplicate
		created, err = h.cards.Update(scope.OrgID, created.ID, store.CardUpdate{Status: &dup})
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	if h.photos.Enabled() {
		key, err := h.photos.Put(r.Context(), scope.OrgID, photo)
		if err != nil {
			h.logger.Warn("photo archival failed", "card_id", created.ID, "error", err)
		} else {
			created, err = h.cards.Update(scope.OrgID, created.ID, store.CardUpdate{PhotoKey: &key})
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
		}
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("card", "created", created.ID, map[string]any{
		"batch_id": batch.ID,
	}))

	writeJSON(w, http.StatusCreated, scanResponse{Card: created, DuplicateOf: duplicate})
}

// activeBatch finds or creates the collector's pending batch using the
// same naming as the batch handler.
func (h *CardHandler) activeBatch(scope auth.Scope) (*model.IntakeBatch, error) {
	date := time.Now().UTC().Format("Jan 2, 2006")
	name := date
	var locationID *int64

	member, err := h.orgs.GetMember(scope.OrgID, scope.UserID)
	if err == nil && member != nil && member.DefaultLocationID != nil {
		if loc, err := h.orgs.GetLocation(scope.OrgID, *member.DefaultLocationID); err == nil && loc != nil {
			name = loc.Name + " " + date
			locationID = member.DefaultLocationID
		}
	}
	return h.batches.GetOrCreateActive(scope.OrgID, scope.UserID, name, locationID)
}

type checkDuplicateRequest struct {
	Name      string  `json:"name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	ExcludeID int64   `json:"exclude_id"`
}

// CheckDuplicate runs the matcher without creating anything, for
// edit-in-place checks on the review screen.
func (h *CardHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	var req checkDuplicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	match, err := h.matcher.FindDuplicate(scope.OrgID, dedupe.Candidate{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		ExcludeID: req.ExcludeID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"duplicate_of": match})
}

func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	filter := store.CardFilter{
		Status:     r.URL.Query().Get("status"),
		LocationID: scope.LocationID,
		HasPrayer:  r.URL.Query().Get("has_prayer") == "true",
	}

	cards, err := h.cards.List(scope.OrgID, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]*model.VisitorCard, 0, len(cards))
	for _, c := range cards {
		out = append(out, prayer.Redact(scope, c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}
	if !scope.AllowsLocation(card.LocationID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}
	writeJSON(w, http.StatusOK, prayer.Redact(scope, card))
}

type cardUpdateRequest struct {
	Name          *string   `json:"name"`
	Email         *string   `json:"email"`
	Phone         *string   `json:"phone"`
	PrayerRequest *string   `json:"prayer_request"`
	Notes         *string   `json:"notes"`
	Interests     *[]string `json:"interests"`
	IsPrivate     *bool     `json:"is_private"`
	IsUrgent      *bool     `json:"is_urgent"`
	WantsFollowUp *bool     `json:"wants_follow_up"`
	Status        *string   `json:"status"`
	Category      *string   `json:"category"`
	FollowedUp    *bool     `json:"followed_up"`
}

// Update applies a partial edit. Omitted fields stay untouched.
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}
	if err := prayer.CanEdit(scope, card); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req cardUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Status != nil && !validCardStatus(*req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	updated, err := h.cards.Update(scope.OrgID, id, store.CardUpdate{
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		PrayerRequest: req.PrayerRequest,
		Notes:         req.Notes,
		Interests:     req.Interests,
		IsPrivate:     req.IsPrivate,
		IsUrgent:      req.IsUrgent,
		WantsFollowUp: req.WantsFollowUp,
		Status:        req.Status,
		Category:      req.Category,
		FollowedUp:    req.FollowedUp,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("card", "updated", id, nil))
	writeJSON(w, http.StatusOK, prayer.Redact(scope, updated))
}

// Review marks the card reviewed, the single exit from the intake queue.
func (h *CardHandler) Review(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}

	reviewed := model.CardStatusReviewed
	updated, err := h.cards.Update(scope.OrgID, id, store.CardUpdate{Status: &reviewed})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("card", "reviewed", id, nil))
	writeJSON(w, http.StatusOK, prayer.Redact(scope, updated))
}

// Delete removes a card. Reviewed cards are kept history; deleting one
// requires admin.
func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "card not found"})
		return
	}
	if card.Status == model.CardStatusReviewed && !scope.IsAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "reviewed cards may only be deleted by an admin"})
		return
	}

	if err := h.cards.Delete(scope.OrgID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card.PhotoKey != nil {
		if err := h.photos.Delete(r.Context(), []string{*card.PhotoKey}); err != nil {
			h.logger.Warn("card photo cleanup failed", "card_id", id, "error", err)
		}
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("card", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Photo streams the decrypted original card image.
func (h *CardHandler) Photo(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil || card.PhotoKey == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "photo not found"})
		return
	}

	photo, err := h.photos.Get(r.Context(), *card.PhotoKey)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(photo)
}

func validCardStatus(s string) bool {
	switch s {
	case model.CardStatusNew, model.CardStatusReviewed, model.CardStatusDuplicate:
		return true
	}
	return false
}
