package settlement

import (
	"context"
	"crypto/ecdsa"
	stderrors "errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var (
	// ErrUserRejected is returned when the signer declines a request.
	ErrUserRejected = stderrors.New("user rejected the request")
	// ErrUnrecognizedChain is returned by SwitchChain for a chain the wallet
	// has no definition for; AddChain must be called first.
	ErrUnrecognizedChain = stderrors.New("unrecognized chain")
)

// Network is the definition handed to a wallet that does not know the chain.
type Network struct {
	ChainID        uint64   `json:"chain_id"`
	Name           string   `json:"name"`
	RPCURLs        []string `json:"rpc_urls"`
	CurrencySymbol string   `json:"currency_symbol"`
	CurrencyName   string   `json:"currency_name"`
	Decimals       uint8    `json:"decimals"`
	ExplorerURLs   []string `json:"explorer_urls"`
}

// NetworkFromConfig builds the required network definition.
func NetworkFromConfig(cfg config.ChainConfig) Network {
	return Network{
		ChainID:        cfg.ChainID,
		Name:           cfg.Network.Name,
		RPCURLs:        cfg.Network.RPCURLs,
		CurrencySymbol: cfg.Network.CurrencySymbol,
		CurrencyName:   cfg.Network.CurrencyName,
		Decimals:       cfg.Network.Decimals,
		ExplorerURLs:   cfg.Network.ExplorerURLs,
	}
}

// TxRequest is a contract call to sign and submit.
type TxRequest struct {
	To     common.Address `json:"to"`
	Data   []byte         `json:"data"`
	Method string         `json:"method"`
}

// Wallet is the signing and chain-access boundary used by settlement.
type Wallet interface {
	Address() common.Address
	// ChainID returns the currently selected chain, 0 when none is.
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, network Network) error
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error)
}

// ChainClient is the subset of the Ethereum RPC used by EthWallet.
// *ethclient.Client satisfies it.
type ChainClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Dialer opens a ChainClient for an RPC endpoint.
type Dialer func(ctx context.Context, rawURL string) (ChainClient, error)

// DialEthClient dials an Ethereum JSON-RPC endpoint.
func DialEthClient(ctx context.Context, rawURL string) (ChainClient, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	client, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ConfirmFunc approves a signing request. Returning ErrUserRejected declines it.
type ConfirmFunc func(ctx context.Context, chainID uint64, req TxRequest) error

// EthWalletConfig configures an EthWallet.
type EthWalletConfig struct {
	PrivateKeyHex       string
	Networks            []Network
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	Confirmations       uint64
	// Confirm is asked before every transaction; nil approves everything.
	Confirm ConfirmFunc
	// Dial defaults to DialEthClient.
	Dial Dialer
}

// EthWallet signs with a local key and talks to the selected chain over RPC.
// It starts with no chain selected and only knows the networks it was given
// or later added, like a browser wallet.
type EthWallet struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	dial         Dialer
	confirm      ConfirmFunc
	pollInterval time.Duration
	timeout      time.Duration
	confirms     uint64
	logger       zerolog.Logger

	mu       sync.Mutex
	networks map[uint64]Network
	client   ChainClient
	chainID  uint64
}

// NewEthWallet creates a wallet from a hex private key.
func NewEthWallet(cfg EthWalletConfig, logger zerolog.Logger) (*EthWallet, error) {
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}

	w := &EthWallet{
		key:          key,
		address:      gethcrypto.PubkeyToAddress(key.PublicKey),
		dial:         cfg.Dial,
		confirm:      cfg.Confirm,
		pollInterval: cfg.ReceiptPollInterval,
		timeout:      cfg.ReceiptTimeout,
		confirms:     cfg.Confirmations,
		logger:       logger.With().Str("component", "eth_wallet").Logger(),
		networks:     make(map[uint64]Network),
	}
	if w.dial == nil {
		w.dial = DialEthClient
	}
	if w.pollInterval <= 0 {
		w.pollInterval = 2 * time.Second
	}
	if w.timeout <= 0 {
		w.timeout = 5 * time.Minute
	}
	for _, n := range cfg.Networks {
		if n.ChainID != 0 && len(n.RPCURLs) > 0 {
			w.networks[n.ChainID] = n
		}
	}
	return w, nil
}

// Address returns the signer address.
func (w *EthWallet) Address() common.Address { return w.address }

// ChainID returns the selected chain, 0 when none is.
func (w *EthWallet) ChainID(context.Context) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

// SwitchChain connects to a known network and checks the endpoint really
// serves chainID.
func (w *EthWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	w.mu.Lock()
	network, ok := w.networks[chainID]
	w.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnrecognizedChain, chainID)
	}

	var lastErr error
	for _, rpcURL := range network.RPCURLs {
		client, err := w.dial(ctx, rpcURL)
		if err != nil {
			lastErr = err
			continue
		}
		remote, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			lastErr = err
			continue
		}
		if remote.Uint64() != chainID {
			client.Close()
			lastErr = fmt.Errorf("endpoint %s serves chain %s, want %d", rpcURL, remote, chainID)
			continue
		}

		w.mu.Lock()
		if w.client != nil {
			w.client.Close()
		}
		w.client = client
		w.chainID = chainID
		w.mu.Unlock()
		w.logger.Info().Uint64("chain_id", chainID).Str("network", network.Name).Msg("Switched chain")
		return nil
	}
	return fmt.Errorf("switch to chain %d: %w", chainID, lastErr)
}

// AddChain registers a network definition after the signer approves it.
func (w *EthWallet) AddChain(ctx context.Context, network Network) error {
	if network.ChainID == 0 || len(network.RPCURLs) == 0 {
		return fmt.Errorf("network definition needs a chain id and at least one rpc url")
	}
	if w.confirm != nil {
		if err := w.confirm(ctx, network.ChainID, TxRequest{Method: "wallet_addEthereumChain"}); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.networks[network.ChainID] = network
	w.mu.Unlock()
	w.logger.Info().Uint64("chain_id", network.ChainID).Str("network", network.Name).Msg("Added network")
	return nil
}

// Call performs a read-only contract call against the latest block.
func (w *EthWallet) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	client, _, err := w.selected()
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, ethereum.CallMsg{From: w.address, To: &to, Data: data}, nil)
}

// SendTransaction confirms, signs and submits an EIP-1559 transaction.
func (w *EthWallet) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	client, chainID, err := w.selected()
	if err != nil {
		return common.Hash{}, err
	}
	if w.confirm != nil {
		if err := w.confirm(ctx, chainID, req); err != nil {
			return common.Hash{}, err
		}
	}

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch nonce: %w", err)
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetch head: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head != nil && head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: w.address, To: &req.To, Data: req.Data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas for %s: %w", req.Method, err)
	}

	chain := new(big.Int).SetUint64(chainID)
	to := req.To
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas * 12 / 10,
		To:        &to,
		Value:     big.NewInt(0),
		Data:      req.Data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(chain), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", req.Method, err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("submit %s: %w", req.Method, err)
	}

	w.logger.Info().
		Str("method", req.Method).
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Msg("Transaction submitted")
	return signed.Hash(), nil
}

// WaitReceipt polls until the transaction is mined with the configured
// number of confirmations.
func (w *EthWallet) WaitReceipt(ctx context.Context, hash common.Hash) (*gethtypes.Receipt, error) {
	client, _, err := w.selected()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		switch {
		case stderrors.Is(err, ethereum.NotFound):
		case err != nil:
			return nil, fmt.Errorf("fetch receipt: %w", err)
		case receipt == nil:
		default:
			if w.confirmed(ctx, client, receipt) {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (w *EthWallet) confirmed(ctx context.Context, client ChainClient, receipt *gethtypes.Receipt) bool {
	if w.confirms <= 1 || receipt.BlockNumber == nil {
		return true
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to fetch block number")
		return false
	}
	mined := receipt.BlockNumber.Uint64()
	return head >= mined && head-mined+1 >= w.confirms
}

func (w *EthWallet) selected() (ChainClient, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil, 0, fmt.Errorf("no chain selected")
	}
	return w.client, w.chainID, nil
}

// Close releases the RPC connection.
func (w *EthWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
		w.chainID = 0
	}
}
