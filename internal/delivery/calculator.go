package delivery

import "github.com/shopspring/decimal"

var (
	half = decimal.NewFromFloat(0.5)
	one  = decimal.NewFromInt(1)
)

// Calculate returns the base fee plus weather surcharges for the vehicle. It
// returns a Forbidden FeeError when conditions make the vehicle unsafe.
// fc.Observation must be set.
func Calculate(fc FeeContext, vehicle Vehicle) (decimal.Decimal, error) {
	obs := fc.Observation
	if obs == nil {
		return decimal.Zero, forecastNotFound(fc.StationID, nil)
	}

	wind, err := WindSurcharge(obs.WindSpeed, vehicle)
	if err != nil {
		return decimal.Zero, err
	}
	phenomenon, err := PhenomenonSurcharge(fc.Grade, vehicle)
	if err != nil {
		return decimal.Zero, err
	}

	return fc.BaseFee.
		Add(TemperatureSurcharge(obs.AirTemperature, vehicle)).
		Add(wind).
		Add(phenomenon), nil
}

// TemperatureSurcharge applies to bikes and scooters. Exactly -10 falls
// between both tiers and adds nothing.
func TemperatureSurcharge(celsius float64, vehicle Vehicle) decimal.Decimal {
	if !vehicle.TwoWheeled() {
		return decimal.Zero
	}
	switch {
	case celsius < -10:
		return one
	case celsius > -10 && celsius < 0:
		return half
	default:
		return decimal.Zero
	}
}

// WindSurcharge applies to bikes only. Wind above 20 m/s is forbidden; exactly
// 20 adds nothing.
func WindSurcharge(speed float64, vehicle Vehicle) (decimal.Decimal, error) {
	if vehicle != VehicleBike {
		return decimal.Zero, nil
	}
	switch {
	case speed > 20:
		return decimal.Zero, forbidden()
	case speed > 10 && speed < 20:
		return half, nil
	default:
		return decimal.Zero, nil
	}
}

// PhenomenonSurcharge applies to bikes and scooters.
func PhenomenonSurcharge(grade Grade, vehicle Vehicle) (decimal.Decimal, error) {
	if !vehicle.TwoWheeled() {
		return decimal.Zero, nil
	}
	switch grade {
	case GradeHazardous:
		return decimal.Zero, forbidden()
	case GradeSevere:
		return one, nil
	case GradeMild:
		return half, nil
	default:
		return decimal.Zero, nil
	}
}
