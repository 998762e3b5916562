package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// DeliveryFee is the response of a fee quote.
type DeliveryFee struct {
	Fee decimal.Decimal
}

// MarshalJSON encodes the fee as a JSON number, e.g. {"fee":4.5}.
func (d DeliveryFee) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fee json.Number `json:"fee"`
	}{Fee: json.Number(d.Fee.String())})
}

// UnmarshalJSON accepts the fee as a number or a string.
func (d *DeliveryFee) UnmarshalJSON(data []byte) error {
	var raw struct {
		Fee decimal.Decimal `json:"fee"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Fee = raw.Fee
	return nil
}

// CacheInvalidation is the response of POST /v1/admin/cache/invalidate.
type CacheInvalidation struct {
	Evicted int       `json:"evicted"`
	Tags    []string  `json:"tags"`
	Time    Timestamp `json:"time"`
}

// IngestRun is the response of POST /v1/admin/ingest.
type IngestRun struct {
	ObservedAt Timestamp `json:"observedAt"`
	Matched    int       `json:"matched"`
	Saved      int       `json:"saved"`
	Missing    []string  `json:"missing,omitempty"`
	Evicted    int       `json:"evicted"`
	Duration   string    `json:"duration"`
}
