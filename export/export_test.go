package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	token   = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	walletA = "0x52908400098527886E0F7030069857D2E4169EE7"
	walletB = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

type staticLog []queue.SpinResult

func (l staticLog) Completed() []queue.SpinResult { return l }

func sampleLog() staticLog {
	return staticLog{
		{Participant: queue.Participant{WalletAddress: walletA}, PrizeValue: decimal.NewFromInt(10), Timestamp: time.Now()},
		{Participant: queue.Participant{WalletAddress: walletB}, PrizeValue: decimal.RequireFromString("0.5"), Timestamp: time.Now().Add(time.Hour)},
		{Participant: queue.Participant{WalletAddress: walletA}, PrizeValue: decimal.NewFromInt(20)},
	}
}

func TestCSVFormat(t *testing.T) {
	data, _, err := CSV(sampleLog(), "", token)
	require.NoError(t, err)

	tokenHex := common.HexToAddress(token).Hex()
	want := "token_type,token_address,receiver,amount,id\n" +
		"erc20," + tokenHex + "," + walletA + ",10,\n" +
		"erc20," + tokenHex + "," + walletB + ",0.5,\n" +
		"erc20," + tokenHex + "," + walletA + ",20,\n"
	assert.Equal(t, want, string(data))
}

func TestCSVIsByteStable(t *testing.T) {
	first, sum1, err := CSV(sampleLog(), "erc20", token)
	require.NoError(t, err)

	// Same log, different timestamps and ids: still the same bytes.
	again := sampleLog()
	for i := range again {
		again[i].Timestamp = time.Time{}
		again[i].Participant.ID = "other"
	}
	second, sum2, err := CSV(again, "erc20", token)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, sum1, sum2)
}

func TestCSVEmptyLog(t *testing.T) {
	data, _, err := CSV(nil, "erc20", token)
	require.NoError(t, err)
	assert.Equal(t, "token_type,token_address,receiver,amount,id\n", string(data))
}

func TestCSVRejectsBadToken(t *testing.T) {
	_, _, err := CSV(sampleLog(), "erc20", "nope")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	day := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "spin-rewards-2024-05-01.csv", FileName("", day))
	assert.Equal(t, "payout-2024-05-01.csv", FileName("payout", day))
}

func TestServiceWriteFile(t *testing.T) {
	svc := NewService(sampleLog(), Options{TokenAddress: token, FilePrefix: "payout"})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	dir := t.TempDir()
	path, doc, err := svc.WriteFile(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "exports", "payout-2024-05-01.csv"), path)
	assert.Equal(t, 3, doc.Rows)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Text(), string(onDisk))

	again, err := svc.Render()
	require.NoError(t, err)
	assert.Equal(t, doc.Checksum, again.Checksum)
}
