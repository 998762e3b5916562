// Package delivery quotes courier delivery fees from regional base rates and
// the weather observed at the station serving a city.
package delivery

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vehicle is a courier vehicle type.
type Vehicle string

const (
	VehicleCar     Vehicle = "car"
	VehicleScooter Vehicle = "scooter"
	VehicleBike    Vehicle = "bike"
)

// TwoWheeled reports whether temperature and phenomenon surcharges apply.
func (v Vehicle) TwoWheeled() bool {
	return v == VehicleScooter || v == VehicleBike
}

// Fee type identifiers for the regional base fee.
const (
	BaseFeeCode = "rbf"
	BaseFeeName = "regional base fee"
)

// Cache tags evicted by the ingestion job and the admin API.
const (
	TagForecast   = "forecast"
	TagVocabulary = "vocabulary"
)

// Request is a single fee quote request.
type Request struct {
	City        string
	VehicleType string

	// RequestTime is the point in time to quote for. Nil means now.
	RequestTime *time.Time
}

// Normalize returns a copy of the request with city and vehicle type trimmed
// and lower-cased.
func (r Request) Normalize() Request {
	r.City = strings.ToLower(strings.TrimSpace(r.City))
	r.VehicleType = strings.ToLower(strings.TrimSpace(r.VehicleType))
	return r
}

// ID is the result of a reference lookup: either a found identifier or missing.
// The zero value is Missing.
type ID struct {
	value uuid.UUID
	found bool
}

// Missing is the ID of a lookup that did not resolve.
var Missing = ID{}

// Found wraps a resolved identifier.
func Found(id uuid.UUID) ID {
	return ID{value: id, found: true}
}

// Get returns the identifier and whether it was found.
func (i ID) Get() (uuid.UUID, bool) {
	return i.value, i.found
}

// IsFound reports whether the lookup resolved.
func (i ID) IsFound() bool {
	return i.found
}

func (i ID) String() string {
	if !i.found {
		return "<missing>"
	}
	return i.value.String()
}

// MarshalJSON encodes a missing ID as null.
func (i ID) MarshalJSON() ([]byte, error) {
	if !i.found {
		return []byte("null"), nil
	}
	return json.Marshal(i.value.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Missing
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*i = Found(parsed)
	return nil
}

// Grade classifies how hazardous a weather phenomenon is.
type Grade int

const (
	GradeNone      Grade = 0 // no surcharge
	GradeMild      Grade = 1 // rain
	GradeSevere    Grade = 2 // snow, sleet
	GradeHazardous Grade = 3 // two-wheelers are refused
)

// Vocabulary maps a grade to the keywords that select it.
type Vocabulary map[Grade][]string

// Forecast is a weather observation reported by a station.
type Forecast struct {
	ID             uuid.UUID `json:"id"`
	StationID      uuid.UUID `json:"stationId"`
	AirTemperature float64   `json:"airTemperature"` // Celsius
	WindSpeed      float64   `json:"windSpeed"`      // m/s
	Phenomenon     string    `json:"phenomenon"`
	ObservedAt     time.Time `json:"observedAt"`
}

// Station is a weather station known to the service.
type Station struct {
	ID      uuid.UUID
	Name    string
	WMOCode int
}

// FeeContext is everything needed to price one request. Each identifier is
// resolved independently so that missing data can be diagnosed in order.
type FeeContext struct {
	StationID ID
	VehicleID ID
	FeeTypeID ID
	BaseFee   decimal.Decimal

	// Observation is nil when no forecast matched. Grade is only meaningful
	// when Observation is set.
	Observation *Forecast
	Grade       Grade
}
