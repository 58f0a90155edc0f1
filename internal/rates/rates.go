package rates

import (
	"errors"
	"fmt"

	"github.com/alexisrja/RemitPay/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedAsset is returned by LookupRate for asset codes missing
// from the static table.
var ErrUnsupportedAsset = errors.New("unsupported asset code")

// feeRate is the flat remittance commission: 2% of the debit amount.
var feeRate = decimal.RequireFromString("0.02")

// unitValues maps an asset code to its value relative to USD.
var unitValues = map[string]decimal.Decimal{
	"USD": decimal.RequireFromString("1.0"),
	"EUR": decimal.RequireFromString("0.85"),
	"MXN": decimal.RequireFromString("17.5"),
	"COP": decimal.RequireFromString("4200"),
	"ARS": decimal.RequireFromString("800"),
	"BRL": decimal.RequireFromString("5.2"),
	"PEN": decimal.RequireFromString("3.8"),
}

// LookupRate returns the from->to exchange rate, failing on unknown codes.
func LookupRate(from, to string) (decimal.Decimal, error) {
	fromRate, ok := unitValues[from]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, from)
	}
	toRate, ok := unitValues[to]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, to)
	}
	return toRate.Div(fromRate), nil
}

// Rate returns the from->to exchange rate. Unknown codes are priced at
// unit value and logged.
func Rate(from, to string) decimal.Decimal {
	fromRate, ok := unitValues[from]
	if !ok {
		log.WithField("asset_code", from).Warn("Unknown asset code, assuming unit value")
		fromRate = decimal.NewFromInt(1)
	}
	toRate, ok := unitValues[to]
	if !ok {
		log.WithField("asset_code", to).Warn("Unknown asset code, assuming unit value")
		toRate = decimal.NewFromInt(1)
	}
	return toRate.Div(fromRate)
}

// Breakdown is the priced decomposition of a debit amount.
type Breakdown struct {
	Fee     models.Amount
	Receive models.Amount
	Rate    decimal.Decimal
}

// Price computes fee and receive amounts for converting debit into the
// target asset. Fee is rounded to the source asset's scale, the receive
// amount to the target's; both stay integer minor units.
func Price(debit models.Amount, targetCode string, targetScale int) Breakdown {
	rate := Rate(debit.AssetCode, targetCode)

	debitMajor := debit.Decimal()
	feeMajor := debitMajor.Mul(feeRate).Round(int32(debit.AssetScale))
	receiveMajor := debitMajor.Sub(feeMajor).Mul(rate).Round(int32(targetScale))

	return Breakdown{
		Fee: models.Amount{
			Value:      feeMajor.Shift(int32(debit.AssetScale)).IntPart(),
			AssetCode:  debit.AssetCode,
			AssetScale: debit.AssetScale,
		},
		Receive: models.Amount{
			Value:      receiveMajor.Shift(int32(targetScale)).IntPart(),
			AssetCode:  targetCode,
			AssetScale: targetScale,
		},
		Rate: rate,
	}
}

// Currency describes a supported currency for the UI picker.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// SupportedCurrencies lists every asset code present in the rate table.
func SupportedCurrencies() []Currency {
	return []Currency{
		{Code: "USD", Name: "US Dollar", Symbol: "$"},
		{Code: "EUR", Name: "Euro", Symbol: "€"},
		{Code: "MXN", Name: "Mexican Peso", Symbol: "$"},
		{Code: "COP", Name: "Colombian Peso", Symbol: "$"},
		{Code: "ARS", Name: "Argentine Peso", Symbol: "$"},
		{Code: "BRL", Name: "Brazilian Real", Symbol: "R$"},
		{Code: "PEN", Name: "Peruvian Sol", Symbol: "S/"},
	}
}
