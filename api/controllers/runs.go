package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mkastler/poolcart-backend/api/responses"
	"github.com/mkastler/poolcart-backend/api/validators"
	runsvc "github.com/mkastler/poolcart-backend/internal/runs"
	"github.com/mkastler/poolcart-backend/internal/storage"
	"github.com/mkastler/poolcart-backend/pkg/enums"
	pkgerrors "github.com/mkastler/poolcart-backend/pkg/errors"
	"github.com/mkastler/poolcart-backend/pkg/logger"
	"github.com/mkastler/poolcart-backend/pkg/pagination"
)

type createRunRequest struct {
	GroupID string  `json:"group_id" validate:"required,uuid"`
	StoreID string  `json:"store_id" validate:"required,uuid"`
	Comment *string `json:"comment,omitempty"`
}

// CreateRun opens a new run in PLANNING with the caller as leader.
func CreateRun(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createRunRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		groupID, _ := uuid.Parse(payload.GroupID)
		storeID, _ := uuid.Parse(payload.StoreID)

		run, err := svc.CreateRun(r.Context(), runsvc.CreateRunInput{
			GroupID:   groupID,
			StoreID:   storeID,
			CreatorID: uid,
			Comment:   payload.Comment,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, run)
	}
}

// GetRun returns a run with its memberships.
func GetRun(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), runID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// ListGroupRuns pages through a group's runs, optionally filtered by state.
func ListGroupRuns(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, err := pathUUID(r, "groupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := storage.RunFilter{}
		if raw := strings.TrimSpace(r.URL.Query().Get("state")); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				state, parseErr := enums.ParseRunState(strings.TrimSpace(part))
				if parseErr != nil {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid state filter"))
					return
				}
				filter.States = append(filter.States, state)
			}
		}

		page, err := svc.ListByGroup(r.Context(), groupID, filter, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, page)
	}
}

type transitionRequest struct {
	Target string `json:"target" validate:"required"`
}

// TransitionRun moves a run to the requested lifecycle state.
func TransitionRun(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseRunState(payload.Target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target state"))
			return
		}

		run, err := svc.Transition(r.Context(), runsvc.TransitionInput{
			RunID:       runID,
			Target:      target,
			ActorUserID: uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, run)
	}
}

// JoinRun adds the caller as a participant.
func JoinRun(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		participation, err := svc.Join(r.Context(), runID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, participation)
	}
}

// LeaveRun removes the caller from the run.
func LeaveRun(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Leave(r.Context(), runID, uid); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "left"})
	}
}

// ToggleReady flips the caller's readiness flag.
func ToggleReady(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		participation, err := svc.ToggleReady(r.Context(), runID, uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, participation)
	}
}

type setHelperRequest struct {
	Helper bool `json:"helper"`
}

// SetHelper marks or unmarks a participant as a shopping helper.
func SetHelper(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, err := pathUUID(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload setHelperRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		participation, err := svc.SetHelper(r.Context(), runID, userID, payload.Helper)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, participation)
	}
}

type updateCommentRequest struct {
	Comment *string `json:"comment"`
}

// UpdateRunComment sets or clears the run comment.
func UpdateRunComment(svc runsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID, err := pathUUID(r, "runId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateCommentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		run, err := svc.UpdateComment(r.Context(), runID, payload.Comment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, run)
	}
}
