package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reference data identifiers. The Postgres seed uses the same values.
var (
	CarID     = uuid.MustParse("4F0DD1C3-0C19-4EF9-A244-5DD246B9E766")
	ScooterID = uuid.MustParse("6070D6D0-4DD0-445C-B68F-B4F18AEFDE27")
	BikeID    = uuid.MustParse("80D0E398-642B-4253-80CF-610680219E26")

	TallinnStationID = uuid.MustParse("77B57BC0-B9CE-4A06-B9CF-92A55C532579")
	TartuStationID   = uuid.MustParse("36430807-3F8F-4C8E-A69E-EF2ACED338DF")
	ParnuStationID   = uuid.MustParse("BEF307A8-4857-44C6-A017-E5F2D5676372")

	RegionalBaseFeeID = uuid.MustParse("F65FAA88-B1A3-4947-9199-7E86D7B93951")
)

type rateKey struct {
	station, vehicle, feeType uuid.UUID
}

// InMemoryRepository is an in-memory implementation of Repository and
// StationRepository.
type InMemoryRepository struct {
	mu         sync.RWMutex
	stations   []Station
	locations  map[string]uuid.UUID
	vehicles   map[string]uuid.UUID
	feeTypes   map[string]uuid.UUID
	rates      map[rateKey]decimal.Decimal
	vocabulary Vocabulary
	forecasts  map[uuid.UUID][]Forecast
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		locations:  make(map[string]uuid.UUID),
		vehicles:   make(map[string]uuid.UUID),
		feeTypes:   make(map[string]uuid.UUID),
		rates:      make(map[rateKey]decimal.Decimal),
		vocabulary: make(Vocabulary),
		forecasts:  make(map[uuid.UUID][]Forecast),
	}
}

// NewSeededRepository creates a repository holding the Tallinn, Tartu and
// Pärnu reference data.
func NewSeededRepository() *InMemoryRepository {
	r := NewInMemoryRepository()

	r.AddStation(Station{ID: TallinnStationID, Name: "tallinn-harku", WMOCode: 26038}, "tallinn")
	r.AddStation(Station{ID: TartuStationID, Name: "tartu-tõravere", WMOCode: 26242}, "tartu")
	r.AddStation(Station{ID: ParnuStationID, Name: "pärnu", WMOCode: 41803}, "pärnu")

	r.AddVehicle(string(VehicleCar), CarID)
	r.AddVehicle(string(VehicleScooter), ScooterID)
	r.AddVehicle(string(VehicleBike), BikeID)

	r.AddFeeType(BaseFeeCode, RegionalBaseFeeID)

	fees := map[uuid.UUID][3]string{
		CarID:     {"4", "3.5", "3"},
		ScooterID: {"3.5", "3", "2.5"},
		BikeID:    {"3", "2.5", "2"},
	}
	for vehicle, amounts := range fees {
		for i, station := range []uuid.UUID{TallinnStationID, TartuStationID, ParnuStationID} {
			r.SetBaseFee(station, vehicle, RegionalBaseFeeID, decimal.RequireFromString(amounts[i]))
		}
	}

	r.SetVocabulary(Vocabulary{
		GradeHazardous: {"glaze", "hail", "thunder"},
		GradeSevere:    {"snow", "sleet"},
		GradeMild:      {"rain"},
	})

	return r
}

// AddStation registers a station and the cities it serves.
func (r *InMemoryRepository) AddStation(s Station, cities ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stations = append(r.stations, s)
	for _, c := range cities {
		r.locations[c] = s.ID
	}
}

// AddVehicle registers a vehicle type.
func (r *InMemoryRepository) AddVehicle(name string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[name] = id
}

// AddFeeType registers a fee type code.
func (r *InMemoryRepository) AddFeeType(code string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeTypes[code] = id
}

// SetBaseFee sets the amount for a station, vehicle and fee type.
func (r *InMemoryRepository) SetBaseFee(stationID, vehicleID, feeTypeID uuid.UUID, amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[rateKey{stationID, vehicleID, feeTypeID}] = amount
}

// SetVocabulary replaces the condition vocabulary.
func (r *InMemoryRepository) SetVocabulary(v Vocabulary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vocabulary = make(Vocabulary, len(v))
	for grade, keywords := range v {
		r.vocabulary[grade] = append([]string(nil), keywords...)
	}
}

// StationIDByCity implements Repository.
func (r *InMemoryRepository) StationIDByCity(ctx context.Context, city string) (ID, error) {
	return r.lookup(ctx, r.locations, city)
}

// VehicleIDByName implements Repository.
func (r *InMemoryRepository) VehicleIDByName(ctx context.Context, name string) (ID, error) {
	return r.lookup(ctx, r.vehicles, name)
}

// FeeTypeIDByCode implements Repository.
func (r *InMemoryRepository) FeeTypeIDByCode(ctx context.Context, code string) (ID, error) {
	return r.lookup(ctx, r.feeTypes, code)
}

func (r *InMemoryRepository) lookup(ctx context.Context, m map[string]uuid.UUID, key string) (ID, error) {
	if err := ctx.Err(); err != nil {
		return Missing, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := m[key]; ok {
		return Found(id), nil
	}
	return Missing, nil
}

// BaseFee implements Repository.
func (r *InMemoryRepository) BaseFee(ctx context.Context, stationID, vehicleID, feeTypeID uuid.UUID) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	amount, ok := r.rates[rateKey{stationID, vehicleID, feeTypeID}]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

// ConditionVocabulary implements Repository.
func (r *InMemoryRepository) ConditionVocabulary(ctx context.Context) (Vocabulary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(Vocabulary, len(r.vocabulary))
	for grade, keywords := range r.vocabulary {
		out[grade] = append([]string(nil), keywords...)
	}
	return out, nil
}

// ForecastsBetween implements ForecastStore.
func (r *InMemoryRepository) ForecastsBetween(ctx context.Context, stationID uuid.UUID, from, to time.Time) ([]Forecast, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Forecast
	for _, f := range r.forecasts[stationID] {
		if !f.ObservedAt.Before(from) && f.ObservedAt.Before(to) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Stations implements StationRepository.
func (r *InMemoryRepository) Stations(ctx context.Context) ([]Station, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Station(nil), r.stations...), nil
}

// SaveForecasts implements StationRepository.
func (r *InMemoryRepository) SaveForecasts(ctx context.Context, forecasts []Forecast) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	saved := 0
	for _, f := range forecasts {
		if r.hasForecast(f.StationID, f.ObservedAt) {
			continue
		}
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		r.forecasts[f.StationID] = append(r.forecasts[f.StationID], f)
		saved++
	}

	for id := range r.forecasts {
		list := r.forecasts[id]
		sort.Slice(list, func(i, j int) bool { return list[i].ObservedAt.Before(list[j].ObservedAt) })
	}
	return saved, nil
}

func (r *InMemoryRepository) hasForecast(stationID uuid.UUID, at time.Time) bool {
	for _, f := range r.forecasts[stationID] {
		if f.ObservedAt.Equal(at) {
			return true
		}
	}
	return false
}

// Ping always succeeds.
func (r *InMemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}
