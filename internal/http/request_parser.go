package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// requestError marks input that could not be read at all (400), as opposed
// to well-formed input the domain rejects (422).
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// labelParam returns the decoded {label} route segment. chi matches on the
// raw path when the request has one, so escapes like %2F are still there.
func labelParam(r *http.Request) (string, error) {
	label := chi.URLParam(r, "label")
	if r.URL.RawPath == "" {
		return label, nil
	}
	decoded, err := url.PathUnescape(label)
	if err != nil {
		return "", badRequest("invalid label in path", err)
	}
	return decoded, nil
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty", nil)
		case errors.As(err, &maxErr):
			return badRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), nil)
		default:
			return badRequest("invalid JSON body", err)
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object", nil)
	}
	return nil
}

// parseDateValue parses a YYYY-MM-DD value; empty yields the zero date.
func parseDateValue(field, v string) (core.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest(fmt.Sprintf("invalid %s (use YYYY-MM-DD)", field), nil)
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}

// amountValue turns the wire amount into a decimal; failures are field-level
// validation errors.
func amountValue(a Amount) (decimal.Decimal, error) {
	amount, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: "amount", Err: err}
	}
	return amount, nil
}

// obligation converts the request into a domain obligation. Field-level
// problems come back as *core.ValidationError.
func (req CreateObligationRequest) obligation() (core.Obligation, error) {
	created, err := parseDateValue("createdAt", req.CreatedAt)
	if err != nil {
		return core.Obligation{}, err
	}
	amount, err := amountValue(req.Amount)
	if err != nil {
		return core.Obligation{}, err
	}
	rule, err := req.Rule.spec().Rule()
	if err != nil {
		return core.Obligation{}, err
	}
	return core.Obligation{
		Label:     sanitizeInput(req.Label),
		Amount:    amount,
		Rule:      rule,
		CreatedAt: created,
	}, nil
}

// occurrence validates the label and date of an accept or reject request.
func (req OccurrenceRequest) occurrence() (string, core.Date, error) {
	label := sanitizeInput(req.Label)
	if label == "" {
		return "", core.Date{}, badRequest("label is required", nil)
	}
	date, err := parseDateValue("expectedDate", req.ExpectedDate)
	if err != nil {
		return "", core.Date{}, err
	}
	if date.IsZero() {
		return "", core.Date{}, badRequest("expectedDate is required", nil)
	}
	return label, date, nil
}

// update converts the request into the new amount and rule.
func (req UpdateObligationRequest) update() (decimal.Decimal, core.Rule, error) {
	amount, err := amountValue(req.Amount)
	if err != nil {
		return decimal.Zero, nil, err
	}
	rule, err := req.Rule.spec().Rule()
	if err != nil {
		return decimal.Zero, nil, err
	}
	return amount, rule, nil
}
