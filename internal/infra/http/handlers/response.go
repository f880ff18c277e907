package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xavierca1/leadpool/internal/usecase"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	usecase.CodeUnauthenticated:    http.StatusUnauthorized,
	usecase.CodeForbidden:          http.StatusForbidden,
	usecase.CodeNotFound:           http.StatusNotFound,
	usecase.CodeInvalidArgument:    http.StatusBadRequest,
	usecase.CodeTransactionAborted: http.StatusConflict,
	usecase.CodeUnavailable:        http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the use case error taxonomy onto HTTP status codes.
// Unclassified errors become a 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	code := usecase.ErrorCode(err)
	status, ok := statusByCode[code]
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: "internal error"})
		return
	}
	msg := err.Error()
	if usecase.IsTechnicalError(err) {
		// do not leak driver messages
		msg = http.StatusText(status)
	}
	writeJSON(w, status, ErrorResponse{Code: code, Message: msg})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: usecase.CodeInvalidArgument, Message: msg})
}

// decodeAndValidate reads a JSON body into dst and checks its struct tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
