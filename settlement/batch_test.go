package settlement

import (
	"math/big"
	"testing"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"whole", "10", 18, "10000000000000000000", false},
		{"fraction", "0.25", 6, "250000", false},
		{"zero decimals", "7", 0, "7", false},
		{"too precise", "0.1234567", 6, "", true},
		{"negative", "-1", 6, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleAmount(decimal.RequireFromString(tt.value), tt.decimals)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestUnitsToDecimal(t *testing.T) {
	assert.Equal(t, "1.5", UnitsToDecimal(big.NewInt(1500000), 6).String())
	assert.True(t, UnitsToDecimal(nil, 6).IsZero())
}

func TestBuildBatchSumsLog(t *testing.T) {
	results := []queue.SpinResult{
		result(walletW1, 10),
		result(walletW2, 20),
		result(walletW1, 5),
	}

	batch, err := BuildBatch(results, testToken, 6)
	require.NoError(t, err)

	assert.Len(t, batch.Recipients, 3, "one row per result, duplicates are not merged")
	assert.Equal(t, common.HexToAddress(walletW1), batch.Recipients[2])

	sum := new(big.Int)
	for _, a := range batch.Amounts {
		sum.Add(sum, a)
	}
	assert.Equal(t, 0, sum.Cmp(batch.TotalUnits))
	assert.True(t, decimal.NewFromInt(35).Equal(batch.Total))
	assert.Equal(t, 0, units(35, 6).Cmp(batch.TotalUnits))
}

func TestBuildBatchRejects(t *testing.T) {
	_, err := BuildBatch(nil, testToken, 6)
	assert.True(t, errors.HasCode(err, errors.ErrNothingToSettle))

	_, err = BuildBatch([]queue.SpinResult{result("not-a-wallet", 1)}, testToken, 6)
	assert.True(t, errors.HasCode(err, errors.ErrMalformedAddress))
}

func TestDecodeBatchTransferRoundTrip(t *testing.T) {
	w := newFakeWallet(testChain, 6, units(100, 6))
	w.allowance = units(100, 6)
	p := NewPayout(testPayout, w)

	recipients := []common.Address{common.HexToAddress(walletW1)}
	amounts := []*big.Int{big.NewInt(7)}
	_, err := p.BatchTransfer(t.Context(), testToken, recipients, amounts)
	require.NoError(t, err)

	token, gotRecipients, gotAmounts, err := DecodeBatchTransfer(w.sent[0].Data)
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
	assert.Equal(t, recipients, gotRecipients)
	assert.Equal(t, 0, amounts[0].Cmp(gotAmounts[0]))

	_, err = p.BatchTransfer(t.Context(), testToken, recipients, nil)
	assert.Error(t, err)
}
