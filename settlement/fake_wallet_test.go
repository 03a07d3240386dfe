package settlement

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// fakeWallet simulates a browser wallet in front of an ERC-20 token and the
// payout contract. Calls are decoded through the real ABIs.
type fakeWallet struct {
	mu sync.Mutex

	address   common.Address
	chainID   uint64
	known     map[uint64]bool
	decimals  uint8
	balance   *big.Int
	allowance *big.Int

	rejectSwitch bool
	rejectMethod string
	revert       bool
	receiptErr   error

	switches  []uint64
	added     []Network
	sent      []TxRequest
	transfers []recordedTransfer
}

type recordedTransfer struct {
	token      common.Address
	recipients []common.Address
	amounts    []*big.Int
}

func newFakeWallet(chainID uint64, decimals uint8, balance *big.Int) *fakeWallet {
	return &fakeWallet{
		address:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		chainID:   chainID,
		known:     map[uint64]bool{chainID: true},
		decimals:  decimals,
		balance:   balance,
		allowance: new(big.Int),
	}
}

func (w *fakeWallet) Address() common.Address { return w.address }

func (w *fakeWallet) ChainID(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *fakeWallet) SwitchChain(_ context.Context, chainID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches = append(w.switches, chainID)
	if w.rejectSwitch {
		return ErrUserRejected
	}
	if !w.known[chainID] {
		return fmt.Errorf("%w: %d", ErrUnrecognizedChain, chainID)
	}
	w.chainID = chainID
	return nil
}

func (w *fakeWallet) AddChain(_ context.Context, network Network) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.added = append(w.added, network)
	w.known[network.ChainID] = true
	return nil
}

func (w *fakeWallet) Call(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	method, err := erc20ABI.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return method.Outputs.Pack(new(big.Int).Set(w.balance))
	case "allowance":
		return method.Outputs.Pack(new(big.Int).Set(w.allowance))
	case "decimals":
		return method.Outputs.Pack(w.decimals)
	}
	return nil, fmt.Errorf("unexpected call %s", method.Name)
}

func (w *fakeWallet) setReceiptErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.receiptErr = err
}

func (w *fakeWallet) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func (w *fakeWallet) SendTransaction(_ context.Context, req TxRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rejectMethod == req.Method {
		return common.Hash{}, ErrUserRejected
	}
	w.sent = append(w.sent, req)

	switch req.Method {
	case "approve":
		method, err := erc20ABI.MethodById(req.Data[:4])
		if err != nil {
			return common.Hash{}, err
		}
		args, err := method.Inputs.Unpack(req.Data[4:])
		if err != nil {
			return common.Hash{}, err
		}
		w.allowance = new(big.Int).Set(args[1].(*big.Int))
	case "batchTransfer":
		token, recipients, amounts, err := DecodeBatchTransfer(req.Data)
		if err != nil {
			return common.Hash{}, err
		}
		total := new(big.Int)
		for _, a := range amounts {
			total.Add(total, a)
		}
		if total.Cmp(w.allowance) > 0 {
			return common.Hash{}, fmt.Errorf("execution reverted: allowance exceeded")
		}
		w.allowance.Sub(w.allowance, total)
		w.balance.Sub(w.balance, total)
		w.transfers = append(w.transfers, recordedTransfer{token: token, recipients: recipients, amounts: amounts})
	}
	return common.BigToHash(big.NewInt(int64(len(w.sent)))), nil
}

func (w *fakeWallet) WaitReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.receiptErr != nil {
		return nil, w.receiptErr
	}
	status := gethtypes.ReceiptStatusSuccessful
	if w.revert {
		status = gethtypes.ReceiptStatusFailed
	}
	return &gethtypes.Receipt{Status: status, BlockNumber: big.NewInt(42)}, nil
}
