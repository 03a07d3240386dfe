package wire

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/Digital-Creators-Team/spin-rewards/config"
	"github.com/Digital-Creators-Team/spin-rewards/db/redis"
	"github.com/Digital-Creators-Team/spin-rewards/engine"
	"github.com/Digital-Creators-Team/spin-rewards/events"
	"github.com/Digital-Creators-Team/spin-rewards/events/kafka"
	"github.com/Digital-Creators-Team/spin-rewards/export"
	"github.com/Digital-Creators-Team/spin-rewards/ingest"
	"github.com/Digital-Creators-Team/spin-rewards/logging"
	"github.com/Digital-Creators-Team/spin-rewards/metrics"
	"github.com/Digital-Creators-Team/spin-rewards/pkg/providers"
	"github.com/Digital-Creators-Team/spin-rewards/provider"
	"github.com/Digital-Creators-Team/spin-rewards/server"
	"github.com/Digital-Creators-Team/spin-rewards/settlement"
	"github.com/Digital-Creators-Team/spin-rewards/wheel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/wire"
	"github.com/rs/zerolog"
)

// eventBuffer is how many events a slow stream listener may lag behind.
const eventBuffer = 256

// ProvideLogger provides a zerolog.Logger
func ProvideLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.Logging)
}

// ProvideMetrics provides the process-wide engine metrics
func ProvideMetrics() *metrics.EngineMetrics {
	return metrics.Engine()
}

// ProvideBroadcaster provides the event fan-out shared by the engine,
// settlement and the stream handler
func ProvideBroadcaster() *events.Broadcaster {
	return events.NewBroadcaster(eventBuffer)
}

// ProvideRedisClient provides a Redis client, or nil when no address is
// configured. The cleanup closes the connection.
func ProvideRedisClient(cfg *config.Config, logger zerolog.Logger) (*redis.Client, func(), error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		logger.Warn().Msg("Redis not configured, engine state will not survive a restart")
		return nil, func() {}, nil
	}
	client, err := redis.New(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideStateStore provides the snapshot store, nil without Redis
func ProvideStateStore(client *redis.Client, cfg *config.Config, logger zerolog.Logger) providers.StateStore {
	if client == nil {
		return nil
	}
	return provider.NewStateStore(client, cfg, logger)
}

// ProvideKafkaProducer provides the audit producer, nil without brokers
func ProvideKafkaProducer(cfg *config.Config, logger zerolog.Logger) (*kafka.Producer, func(), error) {
	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if producer == nil {
		return nil, func() {}, nil
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideAuditPublisher provides the audit stream
func ProvideAuditPublisher(cfg *config.Config, producer *kafka.Producer, logger zerolog.Logger) providers.AuditPublisher {
	return provider.NewAuditPublisher(cfg, producer, logger)
}

// ProvideIngestor provides redemption ingestion, nil when no channel is configured
func ProvideIngestor(cfg *config.Config, m *metrics.EngineMetrics, logger zerolog.Logger) engine.Ingestor {
	if strings.TrimSpace(cfg.Twitch.ChannelLogin) == "" {
		logger.Info().Msg("No channel configured, redemption ingestion disabled")
		return nil
	}
	source := provider.NewTwitchSource(cfg, logger)
	return ingest.New(
		source,
		provider.NewWalletRegistry(cfg, logger),
		provider.NewChatNotifier(source, cfg, logger),
		m,
		ingest.ConfigFromConfig(cfg),
		logger,
	)
}

// ProvideEngine provides the spin engine
func ProvideEngine(cfg *config.Config, ingestor engine.Ingestor, store providers.StateStore,
	audit providers.AuditPublisher, broadcaster *events.Broadcaster, m *metrics.EngineMetrics,
	logger zerolog.Logger) *engine.Engine {
	return engine.New(engine.OptionsFromConfig(cfg.Wheel), ingestor, store, audit, broadcaster, m, logger)
}

// ProvideConfirmFunc provides the signing confirmation. The HTTP flow needs
// none: the operator's approve or settle request is the confirmation.
func ProvideConfirmFunc() settlement.ConfirmFunc {
	return nil
}

// ProvideWallet provides the signer, nil when no key is configured
func ProvideWallet(cfg *config.Config, confirm settlement.ConfirmFunc, logger zerolog.Logger) (settlement.Wallet, error) {
	if strings.TrimSpace(cfg.Chain.SignerKey) == "" {
		logger.Warn().Msg("No signer key configured, settlement disabled")
		return nil, nil
	}
	w, err := settlement.NewEthWallet(settlement.EthWalletConfig{
		PrivateKeyHex:       cfg.Chain.SignerKey,
		Networks:            []settlement.Network{settlement.NetworkFromConfig(cfg.Chain)},
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval,
		ReceiptTimeout:      cfg.Chain.ReceiptTimeout,
		Confirmations:       cfg.Chain.Confirmations,
		Confirm:             confirm,
	}, logger)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// ProvideSettlement provides the settlement manager and attaches it to the
// engine, or nil when there is no wallet.
func ProvideSettlement(cfg *config.Config, wallet settlement.Wallet, eng *engine.Engine,
	audit providers.AuditPublisher, broadcaster *events.Broadcaster, m *metrics.EngineMetrics,
	logger zerolog.Logger) (*settlement.Manager, error) {
	if wallet == nil {
		return nil, nil
	}
	settleCfg, err := SettlementConfig(cfg)
	if err != nil {
		return nil, err
	}
	mgr := settlement.NewManager(wallet, settleCfg, eng, audit, broadcaster, m, logger)
	eng.AttachSettlement(mgr)
	return mgr, nil
}

// SettlementConfig maps the chain section, rejecting malformed contract addresses
func SettlementConfig(cfg *config.Config) (settlement.Config, error) {
	for name, addr := range map[string]string{
		"token_address":  cfg.Chain.TokenAddress,
		"payout_address": cfg.Chain.PayoutAddress,
	} {
		if !common.IsHexAddress(addr) {
			return settlement.Config{}, fmt.Errorf("chain.%s is not a valid address: %q", name, addr)
		}
	}
	return settlement.Config{
		Network:       settlement.NetworkFromConfig(cfg.Chain),
		TokenAddress:  common.HexToAddress(cfg.Chain.TokenAddress),
		PayoutAddress: common.HexToAddress(cfg.Chain.PayoutAddress),
	}, nil
}

// ProvideExporter provides the CSV export
func ProvideExporter(cfg *config.Config, eng *engine.Engine) *export.Service {
	return export.NewService(eng, export.OptionsFromConfig(cfg))
}

// ProvideServerOptions provides server options
func ProvideServerOptions(cfg *config.Config, logger zerolog.Logger, eng *engine.Engine,
	mgr *settlement.Manager, exporter *export.Service, broadcaster *events.Broadcaster) server.Options {
	return server.Options{
		Config:     cfg,
		Logger:     logger,
		Engine:     eng,
		Settlement: mgr,
		Exporter:   exporter,
		Events:     broadcaster,
	}
}

// ProvideApp provides the main application
func ProvideApp(opts server.Options) *server.App {
	return server.New(opts)
}

// Service is a fully wired process: the engine and the API in front of it.
type Service struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Engine     *engine.Engine
	Settlement *settlement.Manager
	Exporter   *export.Service
	App        *server.App

	// Segments, when set, replace the restored wheel once the engine runs.
	Segments wheel.Segments
}

// ProvideService bundles the wired components
func ProvideService(cfg *config.Config, logger zerolog.Logger, eng *engine.Engine,
	mgr *settlement.Manager, exporter *export.Service, app *server.App) *Service {
	return &Service{
		Config:     cfg,
		Logger:     logger,
		Engine:     eng,
		Settlement: mgr,
		Exporter:   exporter,
		App:        app,
	}
}

// Run restores the engine, starts its loop and serves the API until a
// shutdown signal. The engine stops after the server has drained.
func (s *Service) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Engine.Restore(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to restore engine state, starting fresh")
	}

	engineDone := make(chan error, 1)
	go func() { engineDone <- s.Engine.Run(ctx) }()
	if len(s.Segments) > 0 {
		if err := s.Engine.SetSegments(ctx, s.Segments); err != nil {
			cancel()
			<-engineDone
			return fmt.Errorf("failed to apply segments: %w", err)
		}
	}
	s.App.OnShutdown(func() {
		cancel()
		if err := <-engineDone; err != nil && !stderrors.Is(err, context.Canceled) {
			s.Logger.Error().Err(err).Msg("Engine stopped with error")
		}
	})

	s.App.UseCommonMiddlewares()
	s.App.RegisterHealthCheck()
	s.App.RegisterMetrics()
	s.App.RegisterRoutes()
	s.App.RegisterSwagger()

	return s.App.Run()
}

// ConfigSet is the wire provider set for configuration
var ConfigSet = wire.NewSet(
	config.Load,
)

// LoggingSet is the wire provider set for logging
var LoggingSet = wire.NewSet(
	ProvideLogger,
)

// RedisSet is the wire provider set for Redis persistence
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideStateStore,
)

// KafkaSet is the wire provider set for the audit stream
var KafkaSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideAuditPublisher,
)

// EngineSet is the wire provider set for the engine and its ingestion
var EngineSet = wire.NewSet(
	ProvideMetrics,
	ProvideBroadcaster,
	ProvideIngestor,
	ProvideEngine,
	ProvideExporter,
)

// SettlementSet is the wire provider set for on-chain payout
var SettlementSet = wire.NewSet(
	ProvideConfirmFunc,
	ProvideWallet,
	ProvideSettlement,
)

// ServerSet is the wire provider set for server
var ServerSet = wire.NewSet(
	ProvideServerOptions,
	ProvideApp,
)

// FullSet includes every provider needed to build a Service
var FullSet = wire.NewSet(
	LoggingSet,
	RedisSet,
	KafkaSet,
	EngineSet,
	SettlementSet,
	ServerSet,
	ProvideService,
)
