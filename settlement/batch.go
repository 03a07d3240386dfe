package settlement

import (
	"fmt"
	"math/big"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Batch is the payout derived from the completed log: one row per result,
// in log order.
type Batch struct {
	TokenAddress common.Address    `json:"token_address"`
	Recipients   []common.Address  `json:"recipients"`
	Values       []decimal.Decimal `json:"values"`
	Amounts      []*big.Int        `json:"amounts"`
	Total        decimal.Decimal   `json:"total"`
	TotalUnits   *big.Int          `json:"total_units"`
	Decimals     uint8             `json:"decimals"`
}

// ScaleAmount converts a token amount to base units. Amounts with more
// fractional digits than the token supports are rejected rather than rounded.
func ScaleAmount(v decimal.Decimal, decimals uint8) (*big.Int, error) {
	if v.IsNegative() {
		return nil, errors.NewWithDebug(errors.ErrInvalidRequest, "negative payout amount", v.String())
	}
	scaled := v.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, errors.NewWithDebug(errors.ErrInvalidRequest, "payout amount has too many decimal places",
			fmt.Sprintf("%s with %d decimals", v.String(), decimals))
	}
	return scaled.BigInt(), nil
}

// UnitsToDecimal converts base units back to a token amount.
func UnitsToDecimal(units *big.Int, decimals uint8) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -int32(decimals))
}

// BuildBatch derives the payout batch for results.
func BuildBatch(results []queue.SpinResult, token common.Address, decimals uint8) (*Batch, error) {
	if len(results) == 0 {
		return nil, errors.New(errors.ErrNothingToSettle, "completed log is empty")
	}

	b := &Batch{
		TokenAddress: token,
		Recipients:   make([]common.Address, 0, len(results)),
		Values:       make([]decimal.Decimal, 0, len(results)),
		Amounts:      make([]*big.Int, 0, len(results)),
		TotalUnits:   new(big.Int),
		Decimals:     decimals,
	}
	for i, r := range results {
		wallet := r.Participant.WalletAddress
		if !common.IsHexAddress(wallet) {
			return nil, errors.NewWithDebug(errors.ErrMalformedAddress, "completed log holds a malformed wallet",
				fmt.Sprintf("entry %d: %q", i, wallet))
		}
		units, err := ScaleAmount(r.PrizeValue, decimals)
		if err != nil {
			return nil, err
		}
		b.Recipients = append(b.Recipients, common.HexToAddress(wallet))
		b.Values = append(b.Values, r.PrizeValue)
		b.Amounts = append(b.Amounts, units)
		b.TotalUnits.Add(b.TotalUnits, units)
	}
	b.Total = lo.Reduce(b.Values, func(acc decimal.Decimal, v decimal.Decimal, _ int) decimal.Decimal {
		return acc.Add(v)
	}, decimal.Zero)
	return b, nil
}
