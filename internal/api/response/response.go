// Package response writes JSON and problem+json responses.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/courierfee/courierfee/internal/api/middleware"
	"github.com/courierfee/courierfee/internal/api/models"
)

// JSON writes a JSON response with the given status code and echoes the
// request id in X-Request-Id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 validation problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, errors))
}

// VehicleForbidden writes the 400 returned when the weather forbids a vehicle.
func VehicleForbidden(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewVehicleForbidden(traceID(r), detail))
}

// NotFound writes a 404 Not Found problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), detail))
}

// InternalError writes a 500 problem. The detail is fixed so internal
// errors never reach the client.
func InternalError(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewInternalError(traceID(r), models.InternalErrorDetail))
}

// ServiceUnavailable writes a 503 Service Unavailable problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}
