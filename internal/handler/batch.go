package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/model"
	"github.com/dukerupert/shepherd/internal/storage"
	"github.com/dukerupert/shepherd/internal/store"
	"github.com/dukerupert/shepherd/internal/websocket"
)

type BatchHandler struct {
	batches *store.BatchStore
	cards   *store.CardStore
	orgs    *store.OrgStore
	photos  *storage.PhotoStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewBatchHandler(
	bs *store.BatchStore,
	cs *store.CardStore,
	os *store.OrgStore,
	ps *storage.PhotoStore,
	hub *websocket.Hub,
	logger *slog.Logger,
) *BatchHandler {
	return &BatchHandler{
		batches: bs,
		cards:   cs,
		orgs:    os,
		photos:  ps,
		hub:     hub,
		logger:  logger.With("component", "batch"),
	}
}

// batchName derives a default batch name from the collector's default
// location and today's date.
func (h *BatchHandler) batchName(scope auth.Scope) (string, *int64) {
	date := time.Now().UTC().Format("Jan 2, 2006")

	member, err := h.orgs.GetMember(scope.OrgID, scope.UserID)
	if err != nil || member == nil || member.DefaultLocationID == nil {
		return date, nil
	}

	loc, err := h.orgs.GetLocation(scope.OrgID, *member.DefaultLocationID)
	if err != nil || loc == nil {
		return date, nil
	}
	return fmt.Sprintf("%s %s", loc.Name, date), member.DefaultLocationID
}

// Active returns the caller's pending batch, creating one on first use.
func (h *BatchHandler) Active(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	name, locationID := h.batchName(scope)
	batch, err := h.batches.GetOrCreateActive(scope.OrgID, scope.UserID, name, locationID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	summary, err := h.batches.Summary(batch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	batches, err := h.batches.List(scope.OrgID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if batches == nil {
		batches = []*model.IntakeBatch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (h *BatchHandler) Cards(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	batch, err := h.batches.GetByID(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if batch == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	}

	cards, err := h.cards.ListByBatch(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if cards == nil {
		cards = []*model.VisitorCard{}
	}
	writeJSON(w, http.StatusOK, cards)
}

// Complete closes the batch. Idempotent.
func (h *BatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.batches.Complete(scope.OrgID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("batch", "completed", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// StartNew completes the caller's current pending batch, if any, and
// opens a fresh one.
func (h *BatchHandler) StartNew(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	name, locationID := h.batchName(scope)
	batch, err := h.batches.StartNew(scope.OrgID, scope.UserID, name, locationID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	summary, err := h.batches.Summary(batch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("batch", "created", batch.ID, nil))
	writeJSON(w, http.StatusCreated, summary)
}

// Delete removes a batch with its cards; stored photos are cleaned up
// best effort after the rows are gone.
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, _ := auth.FromContext(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	keys, err := h.batches.Delete(scope.OrgID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.photos.Delete(r.Context(), keys); err != nil {
		h.logger.Warn("batch photo cleanup incomplete", "batch_id", id, "error", err)
	}

	h.hub.Broadcast(scope.OrgID, websocket.NewMessage("batch", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
