// Package prayer holds the visibility rules for the triage workflow.
// The rules are pure functions over the actor's scope and the card so
// they can be checked at every mutation site without touching storage.
package prayer

import (
	"github.com/dukerupert/shepherd/internal/apperr"
	"github.com/dukerupert/shepherd/internal/auth"
	"github.com/dukerupert/shepherd/internal/model"
)

func isExistingAssignee(scope auth.Scope, card *model.VisitorCard) bool {
	return card.AssignedTo != nil && *card.AssignedTo == scope.UserID
}

// CanAssign checks whether the actor may assign the request to
// assigneeID. Private requests are guarded: a non-admin who isn't the
// current assignee may only take the request themself.
func CanAssign(scope auth.Scope, card *model.VisitorCard, assigneeID int64) error {
	if !scope.AllowsLocation(card.LocationID) {
		return apperr.AccessDenied("request belongs to another campus")
	}
	if card.IsPrivate && !scope.IsAdmin && !isExistingAssignee(scope, card) && assigneeID != scope.UserID {
		return apperr.AccessDenied("private requests may only be self-assigned")
	}
	return nil
}

// CanEdit checks whether the actor may modify the request. Unlike
// assignment, the existing assignee may always edit, admin or not.
func CanEdit(scope auth.Scope, card *model.VisitorCard) error {
	if !scope.AllowsLocation(card.LocationID) {
		return apperr.AccessDenied("request belongs to another campus")
	}
	if card.IsPrivate && !scope.IsAdmin && !isExistingAssignee(scope, card) {
		return apperr.AccessDenied("private requests may only be edited by an admin or the assignee")
	}
	return nil
}

// CanSeeSubmitter reports whether the actor may see who submitted a
// private request. Lists redact the submitter name when this is false.
func CanSeeSubmitter(scope auth.Scope, card *model.VisitorCard) bool {
	if !card.IsPrivate {
		return true
	}
	return scope.IsAdmin || isExistingAssignee(scope, card)
}

// Redact returns a copy of the card safe for the given actor: private
// submitter identity is hidden from non-admins not assigned to it.
func Redact(scope auth.Scope, card *model.VisitorCard) *model.VisitorCard {
	if CanSeeSubmitter(scope, card) {
		return card
	}
	redacted := *card
	redacted.Name = "Private request"
	redacted.Email = nil
	redacted.Phone = nil
	return &redacted
}
