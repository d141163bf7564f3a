package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"timeledger/errs"
)

type problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

type errorResponse struct {
	Error    string    `json:"error"`
	Problems []problem `json:"problems,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders domain errors with their mapped status and full detail.
// Anything else is logged and reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, domain := errs.StatusFor(err)
	if !domain {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, status, errorResponse{Error: "internal server error"})
		return
	}

	resp := errorResponse{Error: err.Error()}
	var batch errs.ValidationErrors
	if errors.As(err, &batch) {
		resp.Error = "validation failed"
		for _, e := range batch {
			resp.Problems = append(resp.Problems, describe(e))
		}
	} else {
		resp.Problems = []problem{describe(err)}
	}
	writeJSON(w, status, resp)
}

func describe(err error) problem {
	p := problem{Message: err.Error()}

	var (
		capErr     *errs.DailyCapExceeded
		cellErr    *errs.CellOutOfRange
		dateErr    *errs.DateOutOfRange
		dupErr     *errs.DuplicateDate
		transition *errs.InvalidTransition
		incomplete *errs.IncompleteSubmission
	)
	switch {
	case errors.As(err, &capErr):
		p.Code, p.Detail = "daily_cap_exceeded", capErr
	case errors.As(err, &cellErr):
		p.Code, p.Detail = "cell_out_of_range", cellErr
	case errors.As(err, &dateErr):
		p.Code, p.Detail = "date_out_of_range", dateErr
	case errors.As(err, &dupErr):
		p.Code, p.Detail = "duplicate_date", dupErr
	case errors.As(err, &transition):
		p.Code, p.Detail = "invalid_transition", transition
	case errors.As(err, &incomplete):
		p.Code, p.Detail = "incomplete_submission", incomplete
	case errors.Is(err, errs.ErrInvalidRange):
		p.Code = "invalid_range"
	case errors.Is(err, errs.ErrApprovalRaceDetected):
		p.Code = "approval_race_detected"
	case errors.Is(err, errs.ErrNotFound):
		p.Code = "not_found"
	case errors.Is(err, errs.ErrForbidden):
		p.Code = "forbidden"
	default:
		p.Code = "invalid_input"
	}
	return p
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(chi.URLParam(r, name))
}

func parseUUID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q is not a valid id", errs.ErrInvalidInput, raw)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errs.ErrInvalidInput, err)
	}
	return nil
}

func hlogError(r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("response write failed")
}
