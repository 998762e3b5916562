// Package handler provides HTTP handlers for the delivery fee API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/courierfee/courierfee/internal/api/models"
	"github.com/courierfee/courierfee/internal/api/response"
	"github.com/courierfee/courierfee/internal/delivery"
)

// FeeQuoter quotes delivery fees.
type FeeQuoter interface {
	GetDeliveryFee(ctx context.Context, req delivery.Request) (decimal.Decimal, error)
}

// DeliveryHandler handles fee quote endpoints.
type DeliveryHandler struct {
	quoter FeeQuoter
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(quoter FeeQuoter) *DeliveryHandler {
	return &DeliveryHandler{quoter: quoter}
}

// GetFeeByPath handles GET /v1/delivery/{city}/{vehicleType}?timestamp=.
func (h *DeliveryHandler) GetFeeByPath(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, chi.URLParam(r, "city"), chi.URLParam(r, "vehicleType"))
}

// GetFeeByQuery handles GET /v1/delivery?city=&vehicleType=&timestamp=.
func (h *DeliveryHandler) GetFeeByQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.quote(w, r, q.Get("city"), q.Get("vehicleType"))
}

func (h *DeliveryHandler) quote(w http.ResponseWriter, r *http.Request, city, vehicleType string) {
	at, err := parseTimestamp(r.URL.Query().Get("timestamp"))
	if err != nil {
		response.BadRequest(w, r, "timestamp must be a unix time in seconds", []models.FieldError{
			{Field: "timestamp", Message: err.Error(), Code: "INVALID_FORMAT"},
		})
		return
	}

	fee, err := h.quoter.GetDeliveryFee(r.Context(), delivery.Request{
		City:        city,
		VehicleType: vehicleType,
		RequestTime: at,
	})
	if err != nil {
		writeFeeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.DeliveryFee{Fee: fee})
}

// parseTimestamp reads an optional unix seconds value. Empty means "now".
func parseTimestamp(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("not an integer")
	}
	at := time.Unix(secs, 0).UTC()
	return &at, nil
}

// writeFeeError maps service errors onto problems. Internal errors were
// already logged by the service.
func writeFeeError(w http.ResponseWriter, r *http.Request, err error) {
	var feeErr *delivery.FeeError
	if !errors.As(err, &feeErr) {
		response.InternalError(w, r)
		return
	}

	switch {
	case errors.Is(err, delivery.ErrBadRequest):
		var fields []models.FieldError
		if feeErr.Field != "" {
			fields = []models.FieldError{{Field: feeErr.Field, Message: feeErr.Detail}}
		}
		response.BadRequest(w, r, feeErr.Detail, fields)
	case errors.Is(err, delivery.ErrForbidden):
		response.VehicleForbidden(w, r, feeErr.Detail)
	case errors.Is(err, delivery.ErrNotFound):
		response.NotFound(w, r, feeErr.Detail)
	default:
		response.InternalError(w, r)
	}
}
