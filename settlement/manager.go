package settlement

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/errors"
	"github.com/Digital-Creators-Team/spin-rewards/events"
	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/Digital-Creators-Team/spin-rewards/metrics"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Phase is the settlement step in progress.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseApproving Phase = "approving"
	PhaseSettling  Phase = "settling"
)

// Config holds the required network and contracts.
type Config struct {
	Network       Network
	TokenAddress  common.Address
	PayoutAddress common.Address
}

// LogSource provides the completed log to settle.
type LogSource interface {
	Completed() []queue.SpinResult
}

// Session is the wallet state relevant to settlement. It is refreshed before
// every approve and settle, never trusted from an earlier read.
type Session struct {
	Address       string          `json:"address"`
	ChainID       uint64          `json:"chain_id"`
	TokenDecimals uint8           `json:"token_decimals"`
	Allowance     decimal.Decimal `json:"allowance"`
	Balance       decimal.Decimal `json:"balance"`
	Required      decimal.Decimal `json:"required"`
	CanSettle     bool            `json:"can_settle"`
	RefreshedAt   time.Time       `json:"refreshed_at"`
}

// Record is one confirmed payout batch.
type Record struct {
	TxHash      string            `json:"tx_hash"`
	Total       decimal.Decimal   `json:"total"`
	Recipients  []string          `json:"recipients"`
	Amounts     []decimal.Decimal `json:"amounts"`
	BlockNumber uint64            `json:"block_number"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
}

// PendingTx is a submitted transaction whose receipt was never observed.
// It may still be mined, so no new approve or settle is sent until its
// outcome is known.
type PendingTx struct {
	Phase       Phase             `json:"phase"`
	TxHash      string            `json:"tx_hash"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Total       decimal.Decimal   `json:"total"`
	Recipients  []string          `json:"recipients,omitempty"`
	Amounts     []decimal.Decimal `json:"amounts,omitempty"`
}

// defaultPendingCheck bounds the receipt lookup for a pending transaction
// before a new attempt.
const defaultPendingCheck = 5 * time.Second

// ApproveResult describes a confirmed approval.
type ApproveResult struct {
	TxHash string          `json:"tx_hash"`
	Amount decimal.Decimal `json:"amount"`
}

// Manager runs the two-phase payout: approve the payout contract for the
// total owed, then one batchTransfer. Only one phase runs at a time.
type Manager struct {
	wallet  Wallet
	token   *Token
	payout  *Payout
	cfg     Config
	log     LogSource
	audit   providers.AuditPublisher
	events  *events.Broadcaster
	metrics *metrics.EngineMetrics
	logger  zerolog.Logger

	mu       sync.Mutex
	phase    Phase
	lastErr  error
	session  *Session
	history  []Record
	onRecord func([]Record)

	pending      *PendingTx
	onPending    func(*PendingTx)
	pendingCheck time.Duration
}

// NewManager creates a settlement manager. audit, broadcaster and m may be nil.
func NewManager(wallet Wallet, cfg Config, log LogSource, audit providers.AuditPublisher,
	broadcaster *events.Broadcaster, m *metrics.EngineMetrics, logger zerolog.Logger) *Manager {
	return &Manager{
		wallet:  wallet,
		token:   NewToken(cfg.TokenAddress, wallet),
		payout:  NewPayout(cfg.PayoutAddress, wallet),
		cfg:     cfg,
		log:     log,
		audit:   audit,
		events:  broadcaster,
		metrics: m,
		logger:  logging.WithComponent(logger, "settlement"),
		phase:   PhaseIdle,

		pendingCheck: defaultPendingCheck,
	}
}

// OnRecord registers a hook called with the full history after every
// confirmed batch.
func (m *Manager) OnRecord(fn func([]Record)) {
	m.mu.Lock()
	m.onRecord = fn
	m.mu.Unlock()
}

// RestoreHistory replaces the settlement history, used on startup.
func (m *Manager) RestoreHistory(records []Record) {
	m.mu.Lock()
	m.history = append([]Record(nil), records...)
	m.mu.Unlock()
}

// OnPending registers a hook called whenever the unconfirmed transaction
// is set or cleared.
func (m *Manager) OnPending(fn func(*PendingTx)) {
	m.mu.Lock()
	m.onPending = fn
	m.mu.Unlock()
}

// RestorePending reinstates an unconfirmed transaction saved before a restart.
func (m *Manager) RestorePending(p *PendingTx) {
	m.mu.Lock()
	m.pending = p
	m.mu.Unlock()
}

// Pending returns the unconfirmed transaction, or nil.
func (m *Manager) Pending() *PendingTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	p := *m.pending
	return &p
}

// Phase returns the step in progress.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// LastError returns the error of the last failed attempt, nil after a success.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// History returns confirmed batches, oldest first.
func (m *Manager) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.history...)
}

// CachedSession returns the last refreshed session, or nil.
func (m *Manager) CachedSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Batch derives the payout batch from the current completed log.
func (m *Manager) Batch(ctx context.Context) (*Batch, error) {
	decimals, err := m.token.Decimals(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTransport, "failed to read token decimals")
	}
	return BuildBatch(m.log.Completed(), m.token.Address(), decimals)
}

// RefreshSession makes sure the wallet is on the required network and reads
// balance, allowance and decimals from the chain.
func (m *Manager) RefreshSession(ctx context.Context) (*Session, error) {
	if err := m.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	session, _, err := m.refresh(ctx)
	return session, err
}

// Approve requests spend approval for the total owed.
func (m *Manager) Approve(ctx context.Context) (*ApproveResult, error) {
	if err := m.begin(PhaseApproving); err != nil {
		return nil, err
	}

	result, err := m.approve(ctx)
	m.finish(PhaseApproving, err)
	return result, err
}

func (m *Manager) approve(ctx context.Context) (*ApproveResult, error) {
	if len(m.log.Completed()) == 0 {
		return nil, errors.New(errors.ErrNothingToSettle, "completed log is empty")
	}
	if err := m.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	prev, err := m.resolvePending(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case prev == nil:
	case prev.Phase == PhaseApproving:
		if _, _, err := m.refresh(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to refresh session after approval")
		}
		return &ApproveResult{TxHash: prev.TxHash, Amount: prev.Total}, nil
	case prev.Phase == PhaseSettling:
		return nil, errors.NewWithDebug(errors.ErrConflict,
			"the earlier batch transfer has now confirmed, review the history before approving again", prev.TxHash)
	}

	session, batch, err := m.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if session.Balance.LessThan(batch.Total) {
		return nil, errors.NewWithDebug(errors.ErrInsufficientBalance, "wallet balance does not cover the payout",
			fmt.Sprintf("balance %s, required %s", session.Balance, batch.Total))
	}

	hash, err := m.token.Approve(ctx, m.payout.Address(), batch.TotalUnits)
	if err != nil {
		return nil, classifySubmitError(err, "approval")
	}
	logger := logging.WithTxHash(m.logger, hash.Hex())
	logger.Info().Str("amount", batch.Total.String()).Msg("Approval submitted")

	if _, err := m.waitSuccess(ctx, hash, &PendingTx{Phase: PhaseApproving, Total: batch.Total}); err != nil {
		return nil, err
	}
	if _, _, err := m.refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to refresh session after approval")
	}

	result := &ApproveResult{TxHash: hash.Hex(), Amount: batch.Total}
	m.publish(ctx, providers.AuditSettlementApproved, hash.Hex(), result)
	logger.Info().Msg("Approval confirmed")
	return result, nil
}

// Settle submits the batch transfer once the allowance covers the total.
// The completed log is left untouched.
func (m *Manager) Settle(ctx context.Context) (*Record, error) {
	if err := m.begin(PhaseSettling); err != nil {
		return nil, err
	}

	record, err := m.settle(ctx)
	m.finish(PhaseSettling, err)
	return record, err
}

func (m *Manager) settle(ctx context.Context) (*Record, error) {
	if len(m.log.Completed()) == 0 {
		return nil, errors.New(errors.ErrNothingToSettle, "completed log is empty")
	}
	if err := m.ensureNetwork(ctx); err != nil {
		return nil, err
	}
	prev, err := m.resolvePending(ctx)
	if err != nil {
		return nil, err
	}
	if prev != nil && prev.Phase == PhaseSettling {
		history := m.History()
		record := history[len(history)-1]
		return &record, nil
	}

	session, batch, err := m.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if !session.CanSettle {
		return nil, errors.NewWithDebug(errors.ErrAllowanceInsufficient, "allowance does not cover the payout",
			fmt.Sprintf("allowance %s, required %s", session.Allowance, batch.Total))
	}

	hash, err := m.payout.BatchTransfer(ctx, batch.TokenAddress, batch.Recipients, batch.Amounts)
	if err != nil {
		return nil, classifySubmitError(err, "batch transfer")
	}
	logger := logging.WithTxHash(m.logger, hash.Hex())
	logger.Info().Int("recipients", len(batch.Recipients)).Str("total", batch.Total.String()).Msg("Batch transfer submitted")

	sent := &PendingTx{
		Phase:      PhaseSettling,
		Total:      batch.Total,
		Recipients: lo.Map(batch.Recipients, func(a common.Address, _ int) string { return a.Hex() }),
		Amounts:    batch.Values,
	}
	receipt, err := m.waitSuccess(ctx, hash, sent)
	if err != nil {
		return nil, err
	}
	sent.TxHash = hash.Hex()
	record := m.record(ctx, sent, receipt)
	return &record, nil
}

// record appends a confirmed batch transfer to the history.
func (m *Manager) record(ctx context.Context, tx *PendingTx, receipt *gethtypes.Receipt) Record {
	record := Record{
		TxHash:      tx.TxHash,
		Total:       tx.Total,
		Recipients:  tx.Recipients,
		Amounts:     tx.Amounts,
		ConfirmedAt: time.Now().UTC(),
	}
	if receipt.BlockNumber != nil {
		record.BlockNumber = receipt.BlockNumber.Uint64()
	}

	m.mu.Lock()
	m.history = append(m.history, record)
	history := append([]Record(nil), m.history...)
	hook := m.onRecord
	m.mu.Unlock()
	if hook != nil {
		hook(history)
	}

	if _, _, err := m.refresh(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to refresh session after settlement")
	}
	m.publish(ctx, providers.AuditSettlementConfirmed, record.TxHash, record)
	logger := logging.WithTxHash(m.logger, record.TxHash)
	logger.Info().Uint64("block", record.BlockNumber).Msg("Batch transfer confirmed")
	return record
}

// ensureNetwork switches the wallet to the required chain, adding the
// network first when the wallet does not know it.
func (m *Manager) ensureNetwork(ctx context.Context) error {
	want := m.cfg.Network.ChainID
	current, err := m.wallet.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransport, "failed to read wallet chain")
	}
	if current == want {
		return nil
	}

	m.logger.Info().Uint64("current", current).Uint64("required", want).Msg("Switching wallet network")
	err = m.wallet.SwitchChain(ctx, want)
	if stderrors.Is(err, ErrUnrecognizedChain) {
		if addErr := m.wallet.AddChain(ctx, m.cfg.Network); addErr != nil {
			return classifyNetworkError(addErr, want)
		}
		err = m.wallet.SwitchChain(ctx, want)
	}
	if err != nil {
		return classifyNetworkError(err, want)
	}

	current, err = m.wallet.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransport, "failed to read wallet chain")
	}
	if current != want {
		return errors.NewWithDebug(errors.ErrNetworkMismatch, "wallet is on the wrong network",
			fmt.Sprintf("chain %d, required %d", current, want))
	}
	return nil
}

// refresh reads the session and derives the batch it is compared against.
func (m *Manager) refresh(ctx context.Context) (*Session, *Batch, error) {
	owner := m.wallet.Address()
	decimals, err := m.token.Decimals(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrTransport, "failed to read token decimals")
	}
	balance, err := m.token.BalanceOf(ctx, owner)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrTransport, "failed to read token balance")
	}
	allowance, err := m.token.Allowance(ctx, owner, m.payout.Address())
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrTransport, "failed to read allowance")
	}
	chainID, _ := m.wallet.ChainID(ctx)

	session := &Session{
		Address:       owner.Hex(),
		ChainID:       chainID,
		TokenDecimals: decimals,
		Allowance:     UnitsToDecimal(allowance, decimals),
		Balance:       UnitsToDecimal(balance, decimals),
		RefreshedAt:   time.Now().UTC(),
	}

	var batch *Batch
	results := m.log.Completed()
	if len(results) > 0 {
		batch, err = BuildBatch(results, m.token.Address(), decimals)
		if err != nil {
			return nil, nil, err
		}
		session.Required = batch.Total
		session.CanSettle = allowance.Cmp(batch.TotalUnits) >= 0 && batch.TotalUnits.Sign() > 0
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return session, batch, nil
}

// waitSuccess waits for a submitted transaction. When no receipt is
// observed the transaction is kept as pending, because it may still be
// mined.
func (m *Manager) waitSuccess(ctx context.Context, hash common.Hash, tx *PendingTx) (*gethtypes.Receipt, error) {
	what := describe(tx.Phase)
	receipt, err := m.wallet.WaitReceipt(ctx, hash)
	if err != nil {
		tx.TxHash = hash.Hex()
		tx.SubmittedAt = time.Now().UTC()
		m.setPending(tx)
		return nil, errors.WrapWithDebug(err, errors.ErrTxUnconfirmed,
			fmt.Sprintf("%s %s was submitted but its confirmation was not observed", what, hash.Hex()), hash.Hex())
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, errors.NewWithDebug(errors.ErrSettlementFailed, what+" reverted", hash.Hex())
	}
	return receipt, nil
}

// resolvePending looks up the receipt of an earlier unconfirmed
// transaction. It returns the transaction when it has now succeeded, nil
// when there was none or it reverted, and ErrTxUnconfirmed while its
// outcome is still unknown. A confirmed batch transfer is recorded.
func (m *Manager) resolvePending(ctx context.Context) (*PendingTx, error) {
	prev := m.Pending()
	if prev == nil {
		return nil, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, m.pendingCheck)
	receipt, err := m.wallet.WaitReceipt(lookupCtx, common.HexToHash(prev.TxHash))
	cancel()
	logger := logging.WithTxHash(m.logger, prev.TxHash)
	if err != nil {
		return nil, errors.WrapWithDebug(err, errors.ErrTxUnconfirmed,
			fmt.Sprintf("earlier %s %s is still unconfirmed", describe(prev.Phase), prev.TxHash), prev.TxHash)
	}
	m.setPending(nil)

	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		logger.Warn().Str("phase", string(prev.Phase)).Msg("Earlier transaction reverted")
		return nil, nil
	}
	logger.Info().Str("phase", string(prev.Phase)).Msg("Earlier transaction confirmed")
	if prev.Phase == PhaseSettling {
		m.record(ctx, prev, receipt)
	}
	return prev, nil
}

func (m *Manager) setPending(tx *PendingTx) {
	m.mu.Lock()
	m.pending = tx
	hook := m.onPending
	m.mu.Unlock()
	if hook != nil {
		hook(tx)
	}
}

func describe(phase Phase) string {
	if phase == PhaseSettling {
		return "batch transfer"
	}
	return "approval"
}

func (m *Manager) begin(phase Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseIdle {
		return errors.NewWithDebug(errors.ErrBusy, "settlement is already in progress", string(m.phase))
	}
	m.phase = phase
	m.events.Send(events.New(events.TypeSettlement, map[string]string{"phase": string(phase)}))
	return nil
}

// finish always returns to idle so an abandoned attempt never leaves the
// manager locked.
func (m *Manager) finish(phase Phase, err error) {
	m.mu.Lock()
	m.phase = PhaseIdle
	m.lastErr = err
	m.mu.Unlock()

	payload := map[string]string{"phase": string(PhaseIdle), "completed": string(phase)}
	outcome := "success"
	if err != nil {
		outcome = string(errors.Kind(err))
		payload["error"] = errors.Message(err)
		payload["kind"] = outcome
		if errors.Kind(err) == errors.KindCancelled {
			m.logger.Info().Str("phase", string(phase)).Msg("Settlement step cancelled by signer")
		} else {
			m.logger.Error().Err(err).Str("phase", string(phase)).Msg("Settlement step failed")
		}
	}
	m.metrics.ObserveSettlement(string(phase), outcome)
	m.events.Send(events.New(events.TypeSettlement, payload))
}

func (m *Manager) publish(ctx context.Context, eventType, key string, payload interface{}) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Publish(ctx, providers.AuditEvent{
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); err != nil {
		m.logger.Warn().Err(err).Str("type", eventType).Msg("Failed to publish audit event")
	}
}

// IsUserRejection reports whether err is a signer declining a request,
// either ErrUserRejected or an EIP-1193 4001 message from a remote signer.
func IsUserRejection(err error) bool {
	if err == nil || errors.HasCode(err, errors.ErrTxUnconfirmed) {
		return false
	}
	if stderrors.Is(err, ErrUserRejected) || stderrors.Is(err, context.Canceled) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

func classifySubmitError(err error, what string) error {
	if IsUserRejection(err) {
		return errors.Wrap(err, errors.ErrUserCancelled, what+" was rejected in the wallet")
	}
	return errors.Wrap(err, errors.ErrSettlementFailed, what+" submission failed")
}

func classifyNetworkError(err error, chainID uint64) error {
	if IsUserRejection(err) {
		return errors.Wrap(err, errors.ErrUserCancelled, "network switch was rejected in the wallet")
	}
	return errors.WrapWithDebug(err, errors.ErrNetworkMismatch, "wallet could not switch to the required network",
		fmt.Sprintf("chain %d", chainID))
}
