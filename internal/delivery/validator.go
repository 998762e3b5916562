package delivery

import "time"

// ValidateRequest checks a normalized request before any data is fetched.
func ValidateRequest(req Request, now time.Time) error {
	if req.City == "" {
		return badRequest("city", "city is required")
	}
	if req.VehicleType == "" {
		return badRequest("vehicleType", "vehicleType is required")
	}
	if req.RequestTime == nil {
		return nil
	}

	t := *req.RequestTime
	if t.After(now) {
		return badRequest("timestamp", "timestamp cannot be in the future")
	}
	if t.IsZero() || t.Unix() == 0 {
		return badRequest("timestamp", "timestamp is an invalid date")
	}
	return nil
}

// ValidateContext reports the first missing piece of a resolved context, in
// the order station, vehicle, fee type, observation.
func ValidateContext(fc FeeContext, req Request) error {
	if !fc.StationID.IsFound() {
		return stationNotFound(req.City)
	}
	if !fc.VehicleID.IsFound() {
		return vehicleNotFound(req.VehicleType)
	}
	if !fc.FeeTypeID.IsFound() {
		return feeTypeNotFound()
	}
	if fc.Observation == nil {
		return forecastNotFound(fc.StationID, req.RequestTime)
	}
	return nil
}
