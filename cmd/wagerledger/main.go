package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	cache "wagerledger/internal/cache/redis"
	"wagerledger/internal/command"
	"wagerledger/internal/config"
	"wagerledger/internal/engine"
	"wagerledger/internal/ingestion"
	"wagerledger/internal/observability"
	"wagerledger/internal/persistence"
	"wagerledger/internal/projection"
	"wagerledger/internal/query"
	"wagerledger/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("WAGER_CONFIG"), "path to TOML config file")
	rebuildProjections := flag.Bool("rebuild-projections", false, "rebuild projection tables from engine state after replay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log := observability.NewLogger("main")
	log.Info().Msg("wagerledger starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres ping")
	}
	log.Info().Msg("postgres connected")

	if cfg.Postgres.RunMigrations {
		migrator := persistence.NewMigrator(db, "migrations")
		if err := migrator.Up(ctx); err != nil {
			log.Fatal().Err(err).Msg("run migrations")
		}
		log.Info().Msg("migrations applied")
	}

	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()
	snapMgr := persistence.NewSnapshotManager(db)

	// --- Recovery: snapshot + replay ---
	startSequence := int64(0)

	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load snapshot failed, cold start")
	}
	if snap != nil {
		startSequence = snap.Sequence + 1
		log.Info().Int64("sequence", snap.Sequence).Msg("snapshot loaded")
	} else {
		log.Info().Msg("no snapshot, cold start from sequence 0")
	}

	// --- Channels ---
	// Persist channel blocks (backpressure), projection channel drops.
	persistEngineChan := make(chan engine.Output, cfg.Engine.PersistChanSize)
	projectionChan := make(chan engine.Output, cfg.Engine.ProjectionChanSize)
	persistWorkerChan := make(chan persistence.Output, cfg.Engine.PersistChanSize)
	publishChan := make(chan ingestion.PublishableResult, 4096)

	dbChecker := persistence.NewPostgresIdempotencyChecker(db)

	eng := engine.NewEngine(
		startSequence,
		persistEngineChan,
		projectionChan,
		dbChecker,
		metrics,
		cfg.Oracle.MaxAgeSeconds,
		cfg.Engine.DedupLRUSize,
	)

	if snap != nil {
		state, err := snap.ToEngineState()
		if err != nil {
			log.Fatal().Err(err).Msg("snapshot restore")
		}
		eng.RestoreFromSnapshot(state)
		if len(snap.IdempotencyKeys) > 0 {
			eng.WarmLRU(snap.IdempotencyKeys)
		}
		log.Info().Int64("sequence", snap.Sequence).Msg("engine state restored")
	} else {
		// Cold start: warm the LRU from the tail of the event log so
		// recently processed commands still dedup without a DB hit.
		keys, err := dbChecker.LoadRecentKeys(ctx, cfg.Engine.DedupLRUSize)
		if err != nil {
			log.Warn().Err(err).Msg("LRU warm from event log failed")
		} else if len(keys) > 0 {
			eng.WarmLRU(keys)
			log.Info().Int("keys", len(keys)).Msg("LRU warmed from event log")
		}
	}

	replayed, err := replayEvents(ctx, snapMgr, eng, startSequence, metrics, log)
	if err != nil {
		log.Fatal().Err(err).Msg("event replay")
	}
	if replayed > 0 {
		// Hash chain already verified row by row inside replayEvents
		log.Info().
			Int64("events", replayed).
			Int64("sequence", eng.GetSequence()).
			Msg("event replay complete, hash chain verified")
	}

	if snap != nil && replayed == 0 {
		var expected [32]byte
		copy(expected[:], snap.StateHash)
		if got := eng.GetStateHash(); got != expected {
			log.Fatal().
				Hex("expected", expected[:]).
				Hex("got", got[:]).
				Msg("state hash mismatch after snapshot restore")
		}
		log.Info().Msg("state hash verified after restore")
	}

	// --- Redis price cache (optional) ---
	var priceCache *cache.PriceCache
	if cfg.Redis.Enabled {
		client, err := cache.New(ctx, cache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, price cache disabled")
		} else {
			defer client.Close()
			priceCache = cache.NewPriceCache(client)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected")
		}
	}

	// --- NATS ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("nats connect")
	}
	defer nc.Close()
	log.Info().Str("url", cfg.NATS.URL).Msg("nats connected")

	streamCfg := ingestion.StreamConfig{
		StreamName:    cfg.NATS.StreamName,
		Subject:       cfg.NATS.CommandSubject,
		DurableName:   cfg.NATS.DurableName,
		MaxAckPending: cfg.NATS.MaxAckPending,
	}
	if err := ingestion.EnsureStream(ctx, js, streamCfg); err != nil {
		log.Fatal().Err(err).Msg("ensure command stream")
	}
	if err := ingestion.EnsureResultStream(ctx, js, cfg.NATS.StreamName+"_RESULTS", cfg.NATS.ResultSubject); err != nil {
		log.Fatal().Err(err).Msg("ensure result stream")
	}

	rawCommandChan := make(chan ingestion.RawCommand, 4096)
	subscriber := ingestion.NewSubscriber(js, rawCommandChan)
	if err := subscriber.Subscribe(ctx, streamCfg); err != nil {
		log.Fatal().Err(err).Msg("nats subscribe")
	}

	publisher := ingestion.NewPublisher(js, cfg.NATS.ResultSubject, publishChan)

	// --- Workers ---
	errChan := make(chan error, 8)

	persistWorker := persistence.NewWorker(db, persistWorkerChan,
		cfg.Engine.PersistBatchSize,
		time.Duration(cfg.Engine.PersistFlushMs)*time.Millisecond,
		metrics)
	go func() { errChan <- persistWorker.Run(ctx) }()

	projWorker := projection.NewWorker(db, projectionChan, priceCache, metrics)

	// Dropped projection sends and crashes both leave the read model
	// behind the engine; after replay the engine is authoritative, so a
	// rebuild dumps its state wholesale.
	if *rebuildProjections {
		if err := projWorker.Rebuild(ctx, eng.CreateSnapshotState()); err != nil {
			log.Fatal().Err(err).Msg("projection rebuild")
		}
		log.Info().Int64("sequence", eng.GetSequence()).Msg("projections rebuilt from engine state")
	}

	go func() { errChan <- projWorker.Run(ctx) }()

	go func() { errChan <- publisher.Run(ctx) }()

	var wg sync.WaitGroup

	// Engine loop: NATS and HTTP commands share rawCommandChan. The loop
	// owns persistEngineChan and closes it on exit so the bridge can
	// drain the tail.
	wg.Add(1)
	go func() {
		defer wg.Done()
		runEngineLoop(ctx, rawCommandChan, eng, log)
		close(persistEngineChan)
	}()

	// Bridge: engine.Output -> persistence rows + result publishing
	wg.Add(1)
	go func() {
		defer wg.Done()
		bridgeEngineOutputs(ctx, persistEngineChan, persistWorkerChan, publishChan)
	}()

	// --- HTTP API ---
	queryService := query.NewService(db)
	apiServer := server.New(cfg.Server.Port, cfg.Server.CORSOrigins, &server.Deps{
		Query:         queryService,
		Prices:        priceCache,
		CommandChan:   rawCommandChan,
		HealthChecker: healthChecker,
		Metrics:       metrics,
	})
	go func() { errChan <- apiServer.Start() }()

	// --- Metrics server ---
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Info().Int("port", cfg.Server.MetricsPort).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// --- Periodic snapshots + channel gauges ---
	go runPeriodicSnapshots(ctx, eng, snapMgr, cfg, metrics, log)
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.SetChannelMetrics("persist", len(persistEngineChan), cap(persistEngineChan))
				metrics.SetChannelMetrics("projection", len(projectionChan), cap(projectionChan))
				metrics.SetChannelMetrics("publish", len(publishChan), cap(publishChan))
			}
		}
	}()

	healthChecker.SetReady(true)
	log.Info().
		Int64("sequence", eng.GetSequence()).
		Int("http_port", cfg.Server.Port).
		Int("metrics_port", cfg.Server.MetricsPort).
		Msg("wagerledger ready")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Error().Err(err).Msg("worker failed, shutting down")
	}

	cancel()
	subscriber.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	// Join the engine loop and bridge before closing their downstream
	// channels; an in-flight command must not race the close. Bounded by
	// the shutdown deadline so a backed-up sink cannot wedge shutdown.
	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	select {
	case <-joined:
		close(persistWorkerChan)
		close(publishChan)
	case <-shutdownCtx.Done():
		log.Warn().Msg("engine pipeline did not drain before deadline")
	}

	if err := takeSnapshot(shutdownCtx, eng, snapMgr, metrics); err != nil {
		log.Error().Err(err).Msg("final snapshot failed")
	} else {
		log.Info().Msg("final snapshot saved")
	}

	log.Info().Msg("shutdown complete")
}

// bridgeEngineOutputs flattens engine outputs into persistence rows and
// forwards result records for outbound publishing. Persist sends block;
// publish sends drop when the channel is full. Runs until the input
// channel closes so buffered outputs are drained on shutdown.
func bridgeEngineOutputs(
	ctx context.Context,
	in <-chan engine.Output,
	persistOut chan<- persistence.Output,
	publishOut chan<- ingestion.PublishableResult,
) {
	for output := range in {
		env := output.Envelope
		row := persistence.Output{
			EventRow: persistence.EventRow{
				Sequence:       env.Sequence,
				CommandType:    env.CommandType.String(),
				IdempotencyKey: env.IdempotencyKey,
				Partition:      env.Partition,
				Payload:        env.Payload,
				StateHash:      env.StateHash[:],
				PrevHash:       env.PrevHash[:],
				Timestamp:      time.Unix(env.Timestamp, 0).UTC(),
				SourceSequence: env.SourceSequence,
			},
		}

		if output.Batch != nil {
			for _, t := range output.Batch.Transfers {
				row.TransferRows = append(row.TransferRows, persistence.TransferRow{
					TransferID:    t.TransferID.String(),
					BatchID:       t.BatchID.String(),
					CommandRef:    t.CommandRef,
					Sequence:      t.Sequence,
					DebitAccount:  t.DebitAccount.AccountPath(),
					CreditAccount: t.CreditAccount.AccountPath(),
					AssetID:       uint16(t.AssetID),
					Amount:        t.Amount,
					TransferType:  int32(t.TransferType),
					Timestamp:     t.Timestamp,
				})
			}
		}

		select {
		case persistOut <- row:
		case <-ctx.Done():
			return
		}

		select {
		case publishOut <- ingestion.ResultFromEnvelope(env):
		default:
		}
	}
}

// runEngineLoop is the single consumer of the engine. Commands are acked
// after processing; rejections are acked too since redelivery cannot fix
// a validation failure.
func runEngineLoop(ctx context.Context, rawChan <-chan ingestion.RawCommand, eng *engine.Engine, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return

		case raw, ok := <-rawChan:
			if !ok {
				return
			}

			cmd, err := ingestion.ParseRawCommand(raw)
			if err != nil {
				log.Warn().Err(err).Str("subject", raw.Subject).Msg("unparseable command")
				raw.AckFunc()
				continue
			}

			if err := eng.ProcessCommand(cmd); err != nil {
				log.Warn().
					Err(err).
					Str("type", cmd.CommandType().String()).
					Str("key", cmd.IdempotencyKey()).
					Msg("command rejected")
			}
			raw.AckFunc()
		}
	}
}

// replayEvents rebuilds engine state from the event log. The log is
// authoritative: every row must decode, re-apply, and land on the exact
// state hash recorded when it was first processed. Any divergence is an
// error the caller treats as fatal.
func replayEvents(
	ctx context.Context,
	snapMgr *persistence.SnapshotManager,
	eng *engine.Engine,
	fromSequence int64,
	metrics *observability.Metrics,
	log zerolog.Logger,
) (int64, error) {
	const batchSize = 1000
	start := time.Now()
	var total int64

	for {
		events, err := snapMgr.LoadEventsFrom(ctx, fromSequence, batchSize)
		if err != nil {
			return total, fmt.Errorf("load events from seq %d: %w", fromSequence, err)
		}
		if len(events) == 0 {
			break
		}

		for _, row := range events {
			if row.Sequence != eng.GetSequence() {
				return total, fmt.Errorf("event log gap: next row is seq %d, engine at %d", row.Sequence, eng.GetSequence())
			}

			cmd, err := command.DecodePayload(command.ParseCommandType(row.CommandType), row.Payload)
			if err != nil {
				return total, fmt.Errorf("decode event seq %d: %w", row.Sequence, err)
			}

			if err := eng.ReplayCommand(cmd); err != nil {
				return total, fmt.Errorf("replay event seq %d: %w", row.Sequence, err)
			}

			var want [32]byte
			copy(want[:], row.StateHash)
			if got := eng.GetStateHash(); got != want {
				return total, fmt.Errorf("state hash diverged at seq %d: log %x, replay %x", row.Sequence, want, got)
			}

			total++
			metrics.ReplayEventsTotal.Inc()
		}

		log.Debug().Int64("sequence", eng.GetSequence()).Msg("replay batch applied")
		fromSequence = events[len(events)-1].Sequence + 1
	}

	metrics.ReplayDuration.Set(time.Since(start).Seconds())
	return total, nil
}

func runPeriodicSnapshots(
	ctx context.Context,
	eng *engine.Engine,
	snapMgr *persistence.SnapshotManager,
	cfg *config.Config,
	metrics *observability.Metrics,
	log zerolog.Logger,
) {
	interval := cfg.SnapshotInterval()
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	eventCount := cfg.Engine.SnapshotEventCount
	if eventCount <= 0 {
		eventCount = 100_000
	}

	lastSeq := eng.GetSequence()
	lastTime := time.Now()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			currentSeq := eng.GetSequence()
			if currentSeq-lastSeq < eventCount && time.Since(lastTime) < interval {
				continue
			}
			if currentSeq == lastSeq {
				continue
			}
			if err := takeSnapshot(ctx, eng, snapMgr, metrics); err != nil {
				log.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSeq = currentSeq
			lastTime = time.Now()
			log.Info().Int64("sequence", currentSeq).Msg("snapshot taken")
		}
	}
}

func takeSnapshot(
	ctx context.Context,
	eng *engine.Engine,
	snapMgr *persistence.SnapshotManager,
	metrics *observability.Metrics,
) error {
	start := time.Now()

	snap := persistence.FromEngineState(eng.CreateSnapshotState(), time.Now())
	size, err := snapMgr.SaveSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	// Created from live state, so verified by construction
	if err := snapMgr.MarkVerified(ctx, snap.Sequence); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	metrics.SnapshotTaken.Inc()
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	metrics.SnapshotSizeBytes.Set(float64(size))
	metrics.SnapshotLastSeq.Set(float64(snap.Sequence))

	return nil
}
