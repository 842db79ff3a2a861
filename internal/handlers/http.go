package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/abrezinsky/blockvote/internal/auth"
	"github.com/abrezinsky/blockvote/internal/errors"
)

// Error codes for standardized API error responses. Every ledger error kind
// has its own code.
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidTimeWindow = "INVALID_TIME_WINDOW"
	ErrCodeElectionLocked    = "ELECTION_LOCKED"
	ErrCodeNotEmpty          = "NOT_EMPTY"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeNotVerified       = "NOT_VERIFIED"
	ErrCodeVotingClosed      = "VOTING_CLOSED"
	ErrCodeAlreadyVoted      = "ALREADY_VOTED"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeInternalServer    = "INTERNAL_SERVER_ERROR"
)

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error for malformed requests
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// ValidationError creates a 400 error for well-formed requests with invalid fields
func ValidationError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeValidation, Message: message}
}

var kindStatus = map[errors.Kind]struct {
	status int
	code   string
}{
	errors.ErrUnauthorized:      {http.StatusUnauthorized, ErrCodeUnauthorized},
	errors.ErrNotFound:          {http.StatusNotFound, ErrCodeNotFound},
	errors.ErrInvalidTimeWindow: {http.StatusBadRequest, ErrCodeInvalidTimeWindow},
	errors.ErrInvalidInput:      {http.StatusBadRequest, ErrCodeValidation},
	errors.ErrElectionLocked:    {http.StatusConflict, ErrCodeElectionLocked},
	errors.ErrNotEmpty:          {http.StatusConflict, ErrCodeNotEmpty},
	errors.ErrAlreadyExists:     {http.StatusConflict, ErrCodeAlreadyExists},
	errors.ErrNotVerified:       {http.StatusForbidden, ErrCodeNotVerified},
	errors.ErrVotingClosed:      {http.StatusConflict, ErrCodeVotingClosed},
	errors.ErrAlreadyVoted:      {http.StatusConflict, ErrCodeAlreadyVoted},
}

// ToAPIError converts ledger errors to API errors. An Unauthorized error for
// a signed-in caller becomes 403, for an anonymous one 401.
func ToAPIError(err error, authenticated bool) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeUnavailable, Message: "Request cancelled"}
	}

	var appErr *errors.Error
	if stderrors.As(err, &appErr) {
		if appErr.Kind == errors.ErrUnauthorized && authenticated {
			return &APIError{Status: http.StatusForbidden, Code: ErrCodeForbidden, Message: appErr.Message}
		}
		if m, ok := kindStatus[appErr.Kind]; ok {
			return &APIError{Status: m.status, Code: m.code, Message: appErr.Message}
		}
	}

	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondSuccess writes a 200 OK with a message
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondDeleted writes a 204 No Content response
func respondDeleted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondError writes an error response, logging internal failures
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	_, authenticated := auth.CallerFromContext(r.Context())
	apiErr := ToAPIError(err, authenticated)
	if apiErr.Status >= http.StatusInternalServerError && h.Log != nil {
		h.Log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

var requestValidator = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes and validates the request body into target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	if err := requestValidator.Struct(target); err != nil {
		return ValidationError(describeValidation(err))
	}
	return nil
}

// describeValidation turns validator errors into one readable message
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" failed "+fe.Tag())
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

// parseIDParam extracts and parses a positive integer URL parameter
func parseIDParam(r *http.Request, name string) (int64, error) {
	param := chi.URLParam(r, name)
	if param == "" {
		return 0, BadRequest("Missing " + name + " parameter")
	}
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, BadRequest("Invalid " + name + " parameter")
	}
	return id, nil
}

// parseWalletParam extracts a hex wallet address URL parameter
func parseWalletParam(r *http.Request, name string) (common.Address, error) {
	param := chi.URLParam(r, name)
	if !common.IsHexAddress(param) {
		return common.Address{}, BadRequest("Invalid " + name + " parameter")
	}
	return common.HexToAddress(param), nil
}

// parseIntQuery parses an optional non-negative integer query parameter
func parseIntQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, BadRequest("Invalid " + name + " query parameter")
	}
	return n, nil
}

// callerFrom returns the authenticated wallet, or the zero address
func callerFrom(r *http.Request) common.Address {
	wallet, _ := auth.CallerFromContext(r.Context())
	return wallet
}
