package delivery

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds returned by GetDeliveryFee. Use errors.Is to classify.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// ForbiddenMessage is returned when weather makes the vehicle unsafe.
const ForbiddenMessage = "Usage of selected vehicle type is forbidden."

// FeeError is a user-facing failure to quote a fee.
type FeeError struct {
	Kind   error
	Field  string // offending request field, for bad requests
	Detail string
}

func (e *FeeError) Error() string {
	return e.Detail
}

func (e *FeeError) Unwrap() error {
	return e.Kind
}

func badRequest(field, detail string) *FeeError {
	return &FeeError{Kind: ErrBadRequest, Field: field, Detail: detail}
}

func notFound(detail string) *FeeError {
	return &FeeError{Kind: ErrNotFound, Detail: detail}
}

func forbidden() *FeeError {
	return &FeeError{Kind: ErrForbidden, Detail: ForbiddenMessage}
}

func stationNotFound(city string) *FeeError {
	return notFound(fmt.Sprintf("Weather station for city '%s' was not found.", city))
}

func vehicleNotFound(vehicle string) *FeeError {
	return notFound(fmt.Sprintf("Vehicle type with name '%s' was not found.", vehicle))
}

func feeTypeNotFound() *FeeError {
	return notFound("Regional base fee type was not found.")
}

func forecastNotFound(station ID, at *time.Time) *FeeError {
	if at != nil {
		return notFound(fmt.Sprintf("Weather forecast data from station '%s' with timestamp '%d' was not found.", station, at.Unix()))
	}
	return notFound(fmt.Sprintf("Weather forecast data from station '%s' was not found.", station))
}
