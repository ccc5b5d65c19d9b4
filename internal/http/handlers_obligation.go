package http

import (
	"net/http"
	"net/url"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

func (s *Server) handleListObligations(w http.ResponseWriter, r *http.Request) {
	obligations, err := s.engine.ListObligations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	dtos := make([]ObligationDTO, len(obligations))
	for i, o := range obligations {
		dtos[i] = toObligationDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleCreateObligation stores a new obligation. When the current period's
// date already passed, the response carries the first-occurrence prompt the
// client must answer on /first-occurrence.
func (s *Server) handleCreateObligation(w http.ResponseWriter, r *http.Request) {
	var req CreateObligationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := req.obligation()
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.engine.CreateObligation(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/obligations/"+url.PathEscape(result.Obligation.Label)).
		Body(CreateObligationResponse{
			Obligation:      toObligationDTO(result.Obligation),
			FirstOccurrence: result.FirstOccurrence,
		}).
		Write(w)
}

func (s *Server) handleGetObligation(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.engine.GetObligation(r.Context(), label)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(o))
}

func (s *Server) handleUpdateObligation(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateObligationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, rule, err := req.update()
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.engine.UpdateObligation(r.Context(), label, amount, rule)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toObligationDTO(o))
}

func (s *Server) handleDeleteObligation(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.DeleteObligation(r.Context(), label); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleResolveFirstOccurrence answers the creation-time prompt.
func (s *Server) handleResolveFirstOccurrence(w http.ResponseWriter, r *http.Request) {
	label, err := labelParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req FirstOccurrenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	decision, err := services.ParseDecision(sanitizeInput(req.Decision))
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDateValue("expectedDate", req.ExpectedDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := s.engine.Execute(r.Context(), services.ResolveFirstOccurrence{
		Label:        label,
		ExpectedDate: date,
		Decision:     decision,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.MovementRef != "" && !outcome.AlreadyResolved {
		status = http.StatusCreated
	}
	writeJSON(w, status, outcome)
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	if s.movements == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{Error: "movement history is not available for this ledger"})
		return
	}
	label, err := labelParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.engine.GetObligation(r.Context(), label)
	if err != nil {
		writeError(w, r, err)
		return
	}

	movements, err := s.movements.ListMovements(r.Context(), o.Label)
	if err != nil {
		writeError(w, r, &services.PersistenceError{Op: "list movements", Err: err})
		return
	}
	dtos := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		if m.Origin == core.OriginRecurring {
			dtos = append(dtos, toMovementDTO(m))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}
