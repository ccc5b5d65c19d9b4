package http

import (
	"net/http"

	"scadenze/internal/log"
	"scadenze/internal/services"
)

// handleListPending runs a reconciliation pass. A missing or future asOf
// means today; the response reports the date actually used.
func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDateValue("asOf", r.URL.Query().Get("asOf"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	asOf = s.engine.PendingAsOf(asOf)

	pending, err := s.engine.ListPending(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := PendingResponse{AsOf: asOf, Pending: make([]PendingDTO, len(pending))}
	for i, p := range pending {
		resp.Pending[i] = toPendingDTO(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAccept materializes one period. A repeated accept answers 200 with
// alreadyResolved set instead of creating a second movement.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req OccurrenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	label, date, err := req.occurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.engine.Execute(r.Context(), services.AcceptOccurrence{Label: label, ExpectedDate: date})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.LogOccurrenceResolved(r.Context(), log.OpAccept, outcome.Label, outcome.ExpectedDate.String(), string(outcome.MovementRef))

	status := http.StatusCreated
	if outcome.AlreadyResolved {
		status = http.StatusOK
	}
	writeJSON(w, status, outcome)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req OccurrenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	label, date, err := req.occurrence()
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.engine.Execute(r.Context(), services.RejectOccurrence{Label: label, ExpectedDate: date})
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.LogOccurrenceResolved(r.Context(), log.OpReject, outcome.Label, outcome.ExpectedDate.String(), "")
	writeJSON(w, http.StatusOK, outcome)
}
