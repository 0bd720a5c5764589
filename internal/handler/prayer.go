package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/shepherd/internal/apperr"
	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/email"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/prayer"
	"github.com/dukerupert/shepherd/internal/push"
	"github.com/dukerupert/shepherd/internal/store"
	"github.com/dukerupert/shepherd/internal/triage"
	"github.com/dukerupert/shepherd/internal/websocket"
)

type PrayerHandler struct {
	cards      *store.CardStore
	users      *store.UserStore
	orgs       *store.OrgStore
	pushSubs   *store.PushStore
	classifier *triage.Classifier
	pushSvc    *push.Service
	email      *email.Client
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewPrayerHandler(
	cs *store.CardStore,
	us *store.UserStore,
	os *store.OrgStore,
	pss *store.PushStore,
	cl *triage.Classifier,
	psvc *push.Service,
	ec *email.Client,
	hub *websocket.Hub,
	logger *slog.Logger,
) *PrayerHandler {
	return &PrayerHandler{
		cards:      cs,
		users:      us,
		orgs:       os,
		pushSubs:   pss,
		classifier: cl,
		pushSvc:    psvc,
		email:      ec,
		hub:        hub,
		logger:     logger.With("component", "prayer"),
	}
}

type queueResponse struct {
	Buckets []triage.Bucket `json:"buckets"`
	Stats   triage.Stats    `json:"stats"`
}

// Queue returns the triage view: cards with prayer requests, redacted
// per viewer, bucketed and counted.
func (h *PrayerHandler) Queue(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	cards, err := h.cards.List(scope.OrgID, store.CardFilter{
		LocationID: scope.LocationID,
		HasPrayer:  true,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Stats and buckets are computed on the unredacted cards; only the
	// serialized output hides private submitters.
	stats := h.classifier.Stats(cards)

	redacted := make([]*model.VisitorCard, 0, len(cards))
	for _, c := range cards {
		redacted = append(redacted, prayer.Redact(scope, c))
	}
	buckets := h.classifier.Group(redacted)
	if buckets == nil {
		buckets = []triage.Bucket{}
	}

	writeJSON(w, http.StatusOK, queueResponse{Buckets: buckets, Stats: stats})
}

type assignRequest struct {
	AssigneeID int64 `json:"assignee_id"`
}

// Assign hands a prayer request to a team member, enforcing the privacy
// rules, then notifies the assignee out of band.
func (h *PrayerHandler) Assign(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	card, err := h.cards.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if card == nil || !card.HasPrayerRequest() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prayer request not found"})
		return
	}

	if err := prayer.CanAssign(scope, card, req.AssigneeID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	// The assignee must belong to the same organization.
	member, err := h.orgs.GetMember(scope.OrgID, req.AssigneeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if member == nil {
		writeError(w, h.logger, apperr.NotFound("assignee is not a member of this organization"))
		return
	}
	assignee, err := h.users.GetByID(req.AssigneeID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if assignee == nil {
		writeError(w, h.logger, apperr.NotFound("assignee not found"))
		return
	}

	updated, err := h.cards.Assign(scope.OrgID, id, assignee.ID, assignee.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Self-assignment needs no notification.
	if assignee.ID != scope.UserID {
		h.notifyAssignee(scope, assignee)
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("prayer", "assigned", id, nil))
	writeJSON(w, http.StatusOK, prayer.Redact(scope, updated))
}

// notifyAssignee sends push and email notifications, best effort. The
// notification says only that an assignment exists.
func (h *PrayerHandler) notifyAssignee(scope auth.Scope, assignee *model.User) {
	assigner, err := h.users.GetByID(scope.UserID)
	assignerName := "A teammate"
	if err == nil && assigner != nil && assigner.Name != "" {
		assignerName = assigner.Name
	}

	if h.pushSvc.Configured() {
		subs, err := h.pushSubs.ListByUser(assignee.ID)
		if err != nil {
			h.logger.Warn("list push subscriptions", "error", err)
		}
		for _, sub := range subs {
			err := h.pushSvc.Send(sub, push.Payload{
				Title: "New prayer assignment",
				Body:  assignerName + " assigned you a prayer request",
				URL:   "/prayer",
				Tag:   "prayer-assignment",
			})
			if errors.Is(err, push.ErrExpired) {
				h.pushSubs.DeleteByEndpoint(sub.Endpoint)
			} else if err != nil {
				h.logger.Warn("send push", "error", err)
			}
		}
	}

	if h.email.Configured() {
		if err := h.email.SendAssignment(assignee.Email, assignerName); err != nil {
			h.logger.Warn("send assignment email", "error", err)
		}
	}
}

type prayerUpdateRequest struct {
	PrayerStatus *string `json:"prayer_status"`
	AnswerNote   *string `json:"answer_note"`
}

// UpdateStatus moves a request through the prayer workflow.
func (h *PrayerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	if card == nil || !card.HasPrayerRequest() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "prayer request not found"})
		return
	}
	if err := prayer.CanEdit(scope, card); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req prayerUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PrayerStatus != nil && !validPrayerStatus(*req.PrayerStatus) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prayer_status"})
		return
	}

	updated, err := h.cards.Update(scope.OrgID, id, store.CardUpdate{
		PrayerStatus: req.PrayerStatus,
		AnswerNote:   req.AnswerNote,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("prayer", "updated", id, nil))
	writeJSON(w, http.StatusOK, prayer.Redact(scope, updated))
}

func validPrayerStatus(s string) bool {
	switch s {
	case model.PrayerStatusPending, model.PrayerStatusAssigned, model.PrayerStatusPraying, model.PrayerStatusAnswered:
		return true
	}
	return false
}
