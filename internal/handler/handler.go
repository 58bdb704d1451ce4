// Package handler exposes the ledger services over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	customError "github.com/segyhp/ledger-engine/pkg/errors"
	"github.com/segyhp/ledger-engine/pkg/response"
	"github.com/shopspring/decimal"
)

const IdempotencyHeader = "Idempotency-Key"

// statusFor maps an error code to its HTTP status.
func statusFor(code string) int {
	switch code {
	case customError.ErrCodeValidation:
		return http.StatusBadRequest
	case customError.ErrCodeNotFound:
		return http.StatusNotFound
	case customError.ErrCodeInvalidWindow,
		customError.ErrCodeInsufficientBalance,
		customError.ErrCodeInsufficientAllowance:
		return http.StatusUnprocessableEntity
	case customError.ErrCodeInvalidTransition, customError.ErrCodeConcurrencyConflict:
		return http.StatusConflict
	case customError.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders a service error. Internal failures never leak details.
func writeError(w http.ResponseWriter, err error) {
	code := customError.Kind(err)
	status := statusFor(code)

	message := "internal error"
	var be *customError.BusinessError
	if errors.As(err, &be) && status != http.StatusInternalServerError {
		message = be.Message
	}
	response.Fail(w, status, code, message)
}

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return customError.WrapValidation("invalid request body: %v", err)
	}
	if err := v.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			names := make([]string, 0, len(fields))
			for _, f := range fields {
				names = append(names, f.Field()+" failed "+f.Tag())
			}
			return customError.WrapValidation("Validation failed: %s", strings.Join(names, ", "))
		}
		return customError.WrapValidation("Validation failed: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["id"]
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, customError.WrapValidation("id %q is not a valid UUID", raw)
	}
	return id, nil
}

func parseAmount(raw json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, customError.WrapValidation("amount %q is not a number", raw)
	}
	return d, nil
}

func parseOptionalAmount(raw json.Number) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates, the latter read in
// loc. An empty value yields the zero time.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, customError.WrapValidation("%q is neither a date nor an RFC 3339 timestamp", raw)
	}
	return t, nil
}

type createdBody struct {
	ID       string `json:"id"`
	Replayed bool   `json:"replayed,omitempty"`
}

func writeCreated(w http.ResponseWriter, id string, replayed bool) {
	if replayed {
		response.Success(w, createdBody{ID: id, Replayed: true})
		return
	}
	response.Created(w, createdBody{ID: id})
}
