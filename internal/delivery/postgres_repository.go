package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRepository is a PostgreSQL implementation of Repository and
// StationRepository. It reads the tables locations, weather_stations,
// vehicle_types, fee_types, base_fees, weather_condition_types,
// weather_condition_keywords and weather_forecasts.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL delivery repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// StationIDByCity implements Repository.
func (r *PostgresRepository) StationIDByCity(ctx context.Context, city string) (ID, error) {
	query := `
		SELECT weather_station_id
		FROM locations
		WHERE lower(name) = $1
	`
	return r.queryID(ctx, query, city)
}

// VehicleIDByName implements Repository.
func (r *PostgresRepository) VehicleIDByName(ctx context.Context, name string) (ID, error) {
	query := `
		SELECT id
		FROM vehicle_types
		WHERE lower(name) = $1
	`
	return r.queryID(ctx, query, name)
}

// FeeTypeIDByCode implements Repository.
func (r *PostgresRepository) FeeTypeIDByCode(ctx context.Context, code string) (ID, error) {
	query := `
		SELECT id
		FROM fee_types
		WHERE code = $1
	`
	return r.queryID(ctx, query, code)
}

func (r *PostgresRepository) queryID(ctx context.Context, query string, arg string) (ID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query, arg).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Missing, nil
		}
		return Missing, err
	}
	return Found(id), nil
}

// BaseFee implements Repository.
func (r *PostgresRepository) BaseFee(ctx context.Context, stationID, vehicleID, feeTypeID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT amount::text
		FROM base_fees
		WHERE weather_station_id = $1 AND vehicle_type_id = $2 AND fee_type_id = $3
	`

	var amount string
	err := r.pool.QueryRow(ctx, query, stationID, vehicleID, feeTypeID).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}

	fee, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse base fee %q: %w", amount, err)
	}
	return fee, nil
}

// ConditionVocabulary implements Repository.
func (r *PostgresRepository) ConditionVocabulary(ctx context.Context) (Vocabulary, error) {
	query := `
		SELECT t.grade, k.keyword
		FROM weather_condition_keywords k
		JOIN weather_condition_types t ON t.id = k.condition_type_id
		ORDER BY t.grade, k.keyword
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vocabulary := make(Vocabulary)
	for rows.Next() {
		var (
			grade   int
			keyword string
		)
		if err := rows.Scan(&grade, &keyword); err != nil {
			return nil, err
		}
		vocabulary[Grade(grade)] = append(vocabulary[Grade(grade)], keyword)
	}

	return vocabulary, rows.Err()
}

// ForecastsBetween implements ForecastStore.
func (r *PostgresRepository) ForecastsBetween(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]Forecast, error) {
	query := `
		SELECT id, weather_station_id, air_temperature, wind_speed, phenomenon, observed_at
		FROM weather_forecasts
		WHERE weather_station_id = $1 AND observed_at >= $2 AND observed_at < $3
		ORDER BY observed_at
	`

	rows, err := r.pool.Query(ctx, query, stationID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forecasts []Forecast
	for rows.Next() {
		var f Forecast
		err := rows.Scan(
			&f.ID,
			&f.StationID,
			&f.AirTemperature,
			&f.WindSpeed,
			&f.Phenomenon,
			&f.ObservedAt,
		)
		if err != nil {
			return nil, err
		}
		forecasts = append(forecasts, f)
	}

	return forecasts, rows.Err()
}

// Stations implements StationRepository.
func (r *PostgresRepository) Stations(ctx context.Context) ([]Station, error) {
	query := `
		SELECT id, name, wmo_code
		FROM weather_stations
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var s Station
		if err := rows.Scan(&s.ID, &s.Name, &s.WMOCode); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	return stations, rows.Err()
}

// SaveForecasts implements StationRepository.
func (r *PostgresRepository) SaveForecasts(ctx context.Context, forecasts []Forecast) (int, error) {
	if len(forecasts) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO weather_forecasts (id, weather_station_id, air_temperature, wind_speed, phenomenon, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (weather_station_id, observed_at) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, f := range forecasts {
		id := f.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		batch.Queue(query, id, f.StationID, f.AirTemperature, f.WindSpeed, f.Phenomenon, f.ObservedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	saved := 0
	for range forecasts {
		tag, err := results.Exec()
		if err != nil {
			return saved, fmt.Errorf("insert forecast: %w", err)
		}
		saved += int(tag.RowsAffected())
	}

	return saved, nil
}

// Ping checks the database connection.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
