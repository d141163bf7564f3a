package handlers

import (
	"fmt"
	"net/http"

	"timeledger/export"
	"timeledger/middleware"
	"timeledger/models"
	"timeledger/timesheet"
)

type ProjectHandler struct {
	service *timesheet.Service
}

func NewProjectHandler(service *timesheet.Service) *ProjectHandler {
	return &ProjectHandler{service: service}
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req timesheet.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.CreateProject(r.Context(), middleware.IdentityFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

type addMemberRequest struct {
	UserID string            `json:"user_id"`
	Role   models.MemberRole `json:"role"`
}

func (h *ProjectHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := parseUUID(req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	member, err := h.service.AddMember(r.Context(), middleware.IdentityFromContext(r.Context()), projectID, userID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *ProjectHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.RemoveMember(r.Context(), middleware.IdentityFromContext(r.Context()), projectID, userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type weeklyPlanRequest struct {
	Weeks []timesheet.PlanWeek `json:"weeks"`
}

func (h *ProjectHandler) SetWeeklyPlan(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req weeklyPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := h.service.SetWeeklyPlan(r.Context(), middleware.IdentityFromContext(r.Context()), projectID, userID, req.Weeks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *ProjectHandler) UpsertCosting(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req timesheet.CostingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	costing, err := h.service.UpsertCosting(r.Context(), middleware.IdentityFromContext(r.Context()), projectID, userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, costing)
}

func (h *ProjectHandler) Approve(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.ApproveProject(r.Context(), middleware.IdentityFromContext(r.Context()), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ProjectHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.service.Reconcile(r.Context(), middleware.IdentityFromContext(r.Context()), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *ProjectHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.service.Reconcile(r.Context(), middleware.IdentityFromContext(r.Context()), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="reconciliation-%s.csv"`, projectID))
	if err := export.WriteCSV(w, report); err != nil {
		// Headers are already out; all that is left is to log it.
		hlogError(r, err)
	}
}
