package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Digital-Creators-Team/spin-rewards/auth"
	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/engine"
	"github.com/Digital-Creators-Team/spin-rewards/export"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/queue"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	appwire "github.com/Digital-Creators-Team/spin-rewards/wire"
	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// savedLog serves the completed log of a stored snapshot.
type savedLog struct {
	results []queue.SpinResult
}

func (l savedLog) Completed() []queue.SpinResult { return l.results }

// loadSnapshot reads the engine snapshot from Redis. The returned store is
// used to write it back.
func loadSnapshot(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*engine.Snapshot, providers.StateStore, func(), error) {
	client, cleanup, err := appwire.ProvideRedisClient(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	store := appwire.ProvideStateStore(client, cfg, logger)
	if store == nil {
		cleanup()
		return nil, nil, nil, errors.New("redis is not configured, there is no saved state to read")
	}

	var snap engine.Snapshot
	found, err := store.Load(ctx, &snap)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if !found {
		warn.Fprintln(os.Stderr, "No saved state found") //nolint:errcheck
	}
	return &snap, store, cleanup, nil
}

func newExportCmd(load configLoader) *cobra.Command {
	var (
		dir    string
		toClip bool
		stdout bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the completed log as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			snap, _, cleanup, err := loadSnapshot(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			exporter := export.NewService(savedLog{results: snap.Queue.Completed}, export.OptionsFromConfig(cfg))

			switch {
			case stdout:
				doc, err := exporter.Render()
				if err != nil {
					return err
				}
				fmt.Print(doc.Text())
				return nil
			case toClip:
				doc, err := exporter.Render()
				if err != nil {
					return err
				}
				if err := clipboard.WriteAll(doc.Text()); err != nil {
					return fmt.Errorf("failed to copy to clipboard: %w", err)
				}
				success.Printf("Copied %d rows to the clipboard\n", doc.Rows) //nolint:errcheck
				fmt.Printf("sha256 %s\n", doc.Checksum)
				return nil
			default:
				path, doc, err := exporter.WriteFile(dir)
				if err != nil {
					return err
				}
				success.Printf("Wrote %d rows to %s\n", doc.Rows, path) //nolint:errcheck
				fmt.Printf("sha256 %s\n", doc.Checksum)
				return nil
			}
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory for the date-named CSV file")
	cmd.Flags().BoolVar(&toClip, "clipboard", false, "Copy the CSV to the clipboard instead of writing a file")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the CSV instead of writing a file")
	return cmd
}

func newTokenCmd(load configLoader) *cobra.Command {
	var (
		operatorID string
		name       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}
			if name == "" {
				name = operatorID
			}
			token, err := auth.GenerateToken(cfg.JWT.Secret, operatorID, name, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operatorID, "id", "operator", "Operator id")
	cmd.Flags().StringVar(&name, "name", "", "Operator display name (defaults to the id)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to jwt.expiration)")
	return cmd
}

func newSegmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Inspect segment configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a segment file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := wheel.LoadSegments(args[0])
			if err != nil {
				return err
			}
			weights, werr := wheel.ParseWeights(len(segments), segments.Weights())
			for i, seg := range segments {
				share := "?"
				if werr == nil {
					share = fmt.Sprintf("%.2f%%", weights[i])
				}
				accent.Printf("%3d ", i) //nolint:errcheck
				fmt.Printf("%-12s weight %-8s share %s\n", seg.Label, seg.Weight, share)
			}
			if err := segments.Validate(); err != nil {
				return err
			}
			success.Printf("%d segments, weights valid\n", len(segments)) //nolint:errcheck
			return nil
		},
	})
	return cmd
}

func newSettleCmd(load configLoader) *cobra.Command {
	var (
		assumeYes   bool
		approveOnly bool
	)

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Approve and pay the completed log on chain",
		Long: `Pays every winner in the saved log with one batch transfer.

If the payout contract's allowance does not cover the total owed, an
approval for exactly that total is sent first. Every transaction is
confirmed on the terminal unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			snap, store, cleanup, err := loadSnapshot(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(snap.Queue.Completed) == 0 {
				warn.Println("Nothing to settle") //nolint:errcheck
				return nil
			}
			settleCfg, err := appwire.SettlementConfig(cfg)
			if err != nil {
				return err
			}

			if strings.TrimSpace(cfg.Chain.SignerKey) == "" {
				key, err := readSecret("Signer private key: ")
				if err != nil {
					return err
				}
				cfg.Chain.SignerKey = key
			}

			confirm := terminalConfirm
			if assumeYes {
				confirm = nil
			}
			wallet, err := appwire.ProvideWallet(cfg, confirm, logger)
			if err != nil {
				return err
			}

			producer, closeProducer, err := appwire.ProvideKafkaProducer(cfg, logger)
			if err != nil {
				return err
			}
			defer closeProducer()
			audit := appwire.ProvideAuditPublisher(cfg, producer, logger)

			mgr := settlement.NewManager(wallet, settleCfg, savedLog{results: snap.Queue.Completed},
				audit, nil, appwire.ProvideMetrics(), logger)
			mgr.RestoreHistory(snap.Settlements)
			mgr.RestorePending(snap.PendingTx)
			// Whatever happens below, keep the history and any unconfirmed
			// transaction so the next run resolves it before sending again.
			defer func() {
				snap.Settlements = mgr.History()
				snap.PendingTx = mgr.Pending()
				snap.SavedAt = time.Now()
				if err := store.Save(context.WithoutCancel(ctx), snap); err != nil {
					logger.Error().Err(err).Msg("Failed to save settlement state")
				}
			}()

			session, err := mgr.RefreshSession(ctx)
			if err != nil {
				return explain(err)
			}
			accent.Printf("%d winners, %s owed\n", len(snap.Queue.Completed), session.Required.String()) //nolint:errcheck
			printSession(session)

			if !session.CanSettle {
				result, err := mgr.Approve(ctx)
				if err != nil {
					return explain(err)
				}
				success.Printf("Approved %s in %s\n", result.Amount.String(), result.TxHash) //nolint:errcheck
			}
			if approveOnly {
				return nil
			}

			record, err := mgr.Settle(ctx)
			if err != nil {
				return explain(err)
			}
			success.Printf("Paid %d winners, %s total, in %s\n", len(record.Recipients), record.Total.String(), record.TxHash) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Sign without asking")
	cmd.Flags().BoolVar(&approveOnly, "approve-only", false, "Stop after the approval")
	return cmd
}

func printSession(s *settlement.Session) {
	fmt.Printf("wallet    %s (chain %d)\n", s.Address, s.ChainID)
	fmt.Printf("balance   %s\n", s.Balance.String())
	fmt.Printf("allowance %s\n", s.Allowance.String())
	fmt.Printf("required  %s\n", s.Required.String())
}

// explain turns a cancelled signature into a notice instead of a failure.
// A transaction that was sent but not confirmed is always a failure.
func explain(err error) error {
	if settlement.IsUserRejection(err) {
		warn.Println("Cancelled, nothing was sent") //nolint:errcheck
		return nil
	}
	return err
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no signer key configured and no terminal to ask for one")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read signer key: %w", err)
	}
	secret := strings.TrimSpace(string(b))
	if secret == "" {
		return "", errors.New("signer key cannot be empty")
	}
	return secret, nil
}

// terminalConfirm asks before every transaction. Anything but y declines.
func terminalConfirm(_ context.Context, chainID uint64, req settlement.TxRequest) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("%w: no terminal to confirm %s", settlement.ErrUserRejected, req.Method)
	}
	warn.Fprintf(os.Stderr, "Sign %s to %s on chain %d? [y/N] ", req.Method, req.To.Hex(), chainID) //nolint:errcheck
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("%w: %v", settlement.ErrUserRejected, err)
	}
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		return settlement.ErrUserRejected
	}
	return nil
}
