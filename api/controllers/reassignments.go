package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/api/validators"
	reassignsvc "github.com/mkastler/poolcart-backend/internal/reassignment"
	"github.com/mkastler/poolcart-backend/pkg/logger"
)

type reassignmentRequest struct {
	ToUserID string `json:"to_user_id" validate:"required,uuid"`
}

// RequestReassignment opens a leadership handover from the caller.
func RequestReassignment(svc reassignsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reassignmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		toUserID, _ := uuid.Parse(payload.ToUserID)

		request, err := svc.Request(r.Context(), runID, uid, toUserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

// ResolveReassignment accepts, declines or cancels a pending request
// depending on the action route parameter.
func ResolveReassignment(svc reassignsvc.Service, logg *logger.Logger, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requestID, err := pathUUID(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var resolve func(r *http.Request) (any, error)
		switch action {
		case "accept":
			resolve = func(r *http.Request) (any, error) { return svc.Accept(r.Context(), requestID, uid) }
		case "decline":
			resolve = func(r *http.Request) (any, error) { return svc.Decline(r.Context(), requestID, uid) }
		default:
			resolve = func(r *http.Request) (any, error) { return svc.Cancel(r.Context(), requestID, uid) }
		}

		request, err := resolve(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// PendingReassignment returns the run's single open request, if any.
func PendingReassignment(svc reassignsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.Pending(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, request)
	}
}

// ReassignmentHistory returns every request ever made on the run.
func ReassignmentHistory(svc reassignsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.History(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, history)
	}
}
