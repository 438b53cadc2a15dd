package response

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in ErrorDetail.Code
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeValidation             = "VALIDATION_ERROR"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeNotFound               = "NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInvalidTransition      = "INVALID_TRANSITION"
	CodeRunAlreadyExists       = "RUN_ALREADY_EXISTS"
	CodePreconditionFailed     = "PRECONDITION_FAILED"
	CodeTooManyRequests        = "TOO_MANY_REQUESTS"
	CodeBadGateway             = "BAD_GATEWAY"
	CodeInternal               = "INTERNAL_SERVER_ERROR"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    *Meta        `json:"meta,omitempty"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	TotalItems int64 `json:"total_items,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
}

// NewMeta builds pagination metadata, defaulting page to 1 and limit to defaultLimit
func NewMeta(page, limit, defaultLimit int, total int64) *Meta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	pages := int(total / int64(limit))
	if total%int64(limit) != 0 {
		pages++
	}
	return &Meta{Page: page, Limit: limit, TotalItems: total, TotalPages: pages}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_ = json.NewEncoder(w).Encode(Response{
			Error: &ErrorDetail{Code: "ENCODING_ERROR", Message: "Failed to encode response"},
		})
	}
}

func fail(w http.ResponseWriter, statusCode int, detail ErrorDetail, data interface{}) {
	writeJSON(w, statusCode, Response{Error: &detail, Data: data})
}

// Success responses
func Success(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func SuccessWithMessage(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func Created(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func SuccessWithMeta(w http.ResponseWriter, data interface{}, meta *Meta) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

// Error responses
func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	fail(w, http.StatusBadRequest, ErrorDetail{Code: CodeBadRequest, Message: message, Details: details}, nil)
}

func ValidationError(w http.ResponseWriter, details map[string]string) {
	fail(w, http.StatusUnprocessableEntity, ErrorDetail{Code: CodeValidation, Message: "Validation failed", Details: details}, nil)
}

func Unauthorized(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnauthorized, ErrorDetail{Code: CodeUnauthorized, Message: message}, nil)
}

func Forbidden(w http.ResponseWriter, message string) {
	fail(w, http.StatusForbidden, ErrorDetail{Code: CodeForbidden, Message: message}, nil)
}

func NotFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, ErrorDetail{Code: CodeNotFound, Message: message}, nil)
}

// Conflict writes a 409 with the given code, CONFLICT when code is empty
func Conflict(w http.ResponseWriter, code, message string) {
	if code == "" {
		code = CodeConflict
	}
	fail(w, http.StatusConflict, ErrorDetail{Code: code, Message: message}, nil)
}

// PreconditionFailed reports that the data a request depends on is not ready
func PreconditionFailed(w http.ResponseWriter, message string) {
	fail(w, http.StatusUnprocessableEntity, ErrorDetail{Code: CodePreconditionFailed, Message: message}, nil)
}

func TooManyRequests(w http.ResponseWriter, message string) {
	fail(w, http.StatusTooManyRequests, ErrorDetail{Code: CodeTooManyRequests, Message: message}, nil)
}

// BadGateway reports an upstream failure, with partial results in data
func BadGateway(w http.ResponseWriter, message string, data interface{}) {
	fail(w, http.StatusBadGateway, ErrorDetail{Code: CodeBadGateway, Message: message}, data)
}

func InternalServerError(w http.ResponseWriter, message string) {
	fail(w, http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: message}, nil)
}
