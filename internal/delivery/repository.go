package delivery

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the reference data and forecast store behind fee quotes.
// Lookups return Missing rather than an error when nothing matches; errors are
// reserved for storage faults.
type Repository interface {
	ForecastStore

	// StationIDByCity resolves the station serving a lower-cased city name.
	StationIDByCity(ctx context.Context, city string) (ID, error)

	// VehicleIDByName resolves a lower-cased vehicle type.
	VehicleIDByName(ctx context.Context, name string) (ID, error)

	// FeeTypeIDByCode resolves a fee type by its code, e.g. BaseFeeCode.
	FeeTypeIDByCode(ctx context.Context, code string) (ID, error)

	// BaseFee returns the configured amount, or zero when no rate exists.
	BaseFee(ctx context.Context, stationID, vehicleID, feeTypeID uuid.UUID) (decimal.Decimal, error)

	// ConditionVocabulary returns the phenomenon keywords per grade.
	ConditionVocabulary(ctx context.Context) (Vocabulary, error)
}

// StationRepository is the write side used by weather ingestion.
type StationRepository interface {
	// Stations lists all known weather stations.
	Stations(ctx context.Context) ([]Station, error)

	// SaveForecasts stores observations. Duplicates of an existing
	// (station, observedAt) pair are ignored. It returns the number stored.
	SaveForecasts(ctx context.Context, forecasts []Forecast) (int, error)
}
