package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

const payoutABIJSON = `[
	{"type":"function","name":"batchTransfer","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"recipients","type":"address[]"},{"name":"amounts","type":"uint256[]"}],"outputs":[]}
]`

var (
	erc20ABI  = mustParseABI(erc20ABIJSON)
	payoutABI = mustParseABI(payoutABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// Token is a read/approve view of an ERC-20 contract through a wallet.
type Token struct {
	address common.Address
	wallet  Wallet
}

// NewToken binds the ERC-20 contract at address.
func NewToken(address common.Address, wallet Wallet) *Token {
	return &Token{address: address, wallet: wallet}
}

// Address returns the token contract address.
func (t *Token) Address() common.Address { return t.address }

// BalanceOf returns owner's balance in base units.
func (t *Token) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return t.callUint(ctx, "balanceOf", owner)
}

// Allowance returns how much spender may transfer from owner, in base units.
func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.callUint(ctx, "allowance", owner, spender)
}

// Decimals returns the token's on-chain decimals.
func (t *Token) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result type %T", out[0])
	}
	return dec, nil
}

// Approve asks the wallet to sign approve(spender, amount).
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (common.Hash, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	return t.wallet.SendTransaction(ctx, TxRequest{To: t.address, Data: data, Method: "approve"})
}

func (t *Token) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := t.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

func (t *Token) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := t.wallet.Call(ctx, t.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

// Payout is the batch payout contract. batchTransfer is all-or-nothing.
type Payout struct {
	address common.Address
	wallet  Wallet
}

// NewPayout binds the payout contract at address.
func NewPayout(address common.Address, wallet Wallet) *Payout {
	return &Payout{address: address, wallet: wallet}
}

// Address returns the payout contract address.
func (p *Payout) Address() common.Address { return p.address }

// BatchTransfer asks the wallet to sign batchTransfer(token, recipients, amounts).
func (p *Payout) BatchTransfer(ctx context.Context, token common.Address, recipients []common.Address, amounts []*big.Int) (common.Hash, error) {
	if len(recipients) != len(amounts) {
		return common.Hash{}, fmt.Errorf("batchTransfer: %d recipients for %d amounts", len(recipients), len(amounts))
	}
	data, err := payoutABI.Pack("batchTransfer", token, recipients, amounts)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack batchTransfer: %w", err)
	}
	return p.wallet.SendTransaction(ctx, TxRequest{To: p.address, Data: data, Method: "batchTransfer"})
}

// DecodeBatchTransfer unpacks batchTransfer calldata.
func DecodeBatchTransfer(data []byte) (common.Address, []common.Address, []*big.Int, error) {
	if len(data) < 4 {
		return common.Address{}, nil, nil, fmt.Errorf("calldata too short")
	}
	method, err := payoutABI.MethodById(data[:4])
	if err != nil || method.Name != "batchTransfer" {
		return common.Address{}, nil, nil, fmt.Errorf("not a batchTransfer call")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("unpack batchTransfer: %w", err)
	}
	token, _ := args[0].(common.Address)
	recipients, _ := args[1].([]common.Address)
	amounts, _ := args[2].([]*big.Int)
	return token, recipients, amounts, nil
}
