package handlers

import (
	"net/http"

	"timeledger/middleware"
	"timeledger/reconcile"
	"timeledger/timesheet"
)

type TimesheetHandler struct {
	service *timesheet.Service
}

func NewTimesheetHandler(service *timesheet.Service) *TimesheetHandler {
	return &TimesheetHandler{service: service}
}

type entryRequest struct {
	Date  string          `json:"date"`
	Hours reconcile.Hours `json:"hours"`
}

type saveDraftRequest struct {
	Entries []entryRequest `json:"entries"`
}

// SaveDraft stores the caller's draft on a project. Super admins may pass
// ?user_id= to save on behalf of someone else.
func (h *TimesheetHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req saveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ident := middleware.IdentityFromContext(r.Context())
	userID := ident.UserID
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		parsed, err := parseUUID(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		userID = parsed
	}

	entries := make([]reconcile.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = reconcile.Entry{Date: e.Date, Hours: e.Hours}
	}

	ts, err := h.service.SaveDraft(r.Context(), ident, projectID, userID, entries)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *TimesheetHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "timesheetID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ts, err := h.service.Submit(r.Context(), middleware.IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *TimesheetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "timesheetID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	ts, err := h.service.GetTimesheet(r.Context(), middleware.IdentityFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}
