package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("city must not be empty").
		WithInstance("/v1/delivery").
		WithErrors([]models.FieldError{{Field: "city", Message: "required", Code: "REQUIRED"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "city must not be empty", p.Detail)
	assert.Equal(t, "/v1/delivery", p.Instance)
	assert.Equal(t, "req_test123", p.TraceID)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "REQUIRED", p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "timestamp", Message: "timestamp cannot be in the future"},
	})
	p.Instance = "/v1/delivery/tallinn/car"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, *p, result)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		title  string
		status int
	}{
		{"bad request", models.NewBadRequest("req_1", "d", nil), models.ProblemTypeValidation, "Validation error", 400},
		{"vehicle forbidden", models.NewVehicleForbidden("req_1", "d"), models.ProblemTypeVehicleForbidden, "Vehicle forbidden", 400},
		{"unauthorized", models.NewUnauthorized("req_1", "d"), models.ProblemTypeUnauthorized, "Unauthorized", 401},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, "Not found", 404},
		{"too many requests", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, "Too many requests", 429},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, "Internal server error", 500},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, "Service unavailable", 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.title, tt.p.Title)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "d", tt.p.Detail)
			assert.Equal(t, "req_1", tt.p.TraceID)
		})
	}
}

func TestDeliveryFee_JSON(t *testing.T) {
	data, err := json.Marshal(models.DeliveryFee{Fee: decimal.RequireFromString("4.50")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee":4.5}`, string(data))

	var decoded models.DeliveryFee
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Fee.Equal(decimal.RequireFromString("4.5")))
}

func TestTimestamp_JSON(t *testing.T) {
	at := time.Date(2024, 3, 14, 12, 0, 0, 0, time.FixedZone("EET", 2*3600))

	data, err := json.Marshal(models.Timestamp(at))
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-14T10:00:00Z"`, string(data))

	var decoded models.Timestamp
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, at.Equal(decoded.Time()))

	assert.Nil(t, models.TimestampPtr(nil))
	assert.Equal(t, at, models.TimestampPtr(&at).Time())
}
