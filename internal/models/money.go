package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a monetary amount held as an integer count of minor units.
// AssetScale is the number of minor-unit digits, so Value=9700 with
// AssetScale=2 is 97.00.
type Amount struct {
	Value      int64
	AssetCode  string
	AssetScale int
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.Value, -int32(a.AssetScale))
}

// Display renders the amount as a fixed-point string, e.g. "97.00".
func (a Amount) Display() string {
	return a.Decimal().StringFixed(int32(a.AssetScale))
}

type amountJSON struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// MarshalJSON renders the display value, matching the API responses of
// the remittance endpoints.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(amountJSON{
		Value:      a.Display(),
		AssetCode:  a.AssetCode,
		AssetScale: a.AssetScale,
	})
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw amountJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Value)
	if err != nil {
		return fmt.Errorf("invalid amount value %q: %w", raw.Value, err)
	}
	a.Value = d.Shift(int32(raw.AssetScale)).Round(0).IntPart()
	a.AssetCode = raw.AssetCode
	a.AssetScale = raw.AssetScale
	return nil
}

// ParseAmount converts a user-supplied major-unit decimal string into an
// Amount in the given asset, rounding to the asset's minor-unit scale.
func ParseAmount(value, assetCode string, assetScale int) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if !d.IsPositive() {
		return Amount{}, fmt.Errorf("amount must be positive, got %q", value)
	}
	return Amount{
		Value:      d.Round(int32(assetScale)).Shift(int32(assetScale)).IntPart(),
		AssetCode:  assetCode,
		AssetScale: assetScale,
	}, nil
}
