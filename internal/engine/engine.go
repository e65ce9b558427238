package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"wagerledger/internal/command"
	"wagerledger/internal/market"
	"wagerledger/internal/observability"
	"wagerledger/internal/oracle"
	"wagerledger/internal/tournament"
	"wagerledger/internal/vault"
)

// Engine is the single-threaded command processor. It owns all settlement
// state; the surrounding shell only talks to it through channels. The
// engine never reads the wall clock — every timestamp is a versioned input
// carried on the command.
type Engine struct {
	sequence          int64
	hasher            *StateHasher
	book              *vault.BalanceBook
	custody           *vault.Custody
	validator         *vault.InvariantValidator
	markets           *market.Manager
	tournaments       *tournament.Manager
	oracles           *oracle.Registry
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	oracleMaxAge      int64 // seconds; 0 disables staleness checks

	persistChan    chan<- Output
	projectionChan chan<- Output
}

// Output is everything downstream workers need from one processed command:
// the log envelope, the applied transfer batch, and copies of the records
// the command touched (for projections).
type Output struct {
	Envelope   *command.Envelope
	Batch      *vault.Batch
	StateDelta []byte

	Market     *market.Market
	Position   *market.Position
	Tournament *tournament.Tournament
	Entry      *tournament.Entry
}

func NewEngine(
	startSequence int64,
	persistChan, projectionChan chan<- Output,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
	oracleMaxAge int64,
	dedupLRUSize int,
) *Engine {
	if dedupLRUSize < 1 {
		dedupLRUSize = 100_000
	}
	book := vault.NewBalanceBook()

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		book:              book,
		custody:           vault.NewCustody(book),
		validator:         vault.NewInvariantValidator(book),
		markets:           market.NewManager(),
		tournaments:       tournament.NewManager(),
		oracles:           oracle.NewRegistry(),
		idempotency:       NewIdempotencyChecker(dedupLRUSize, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		oracleMaxAge:      oracleMaxAge,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessCommand is the main processing pipeline
func (e *Engine) ProcessCommand(cmd command.Command) error {
	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := e.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation
	partition := cmd.Partition()
	if err := e.sequenceValidator.ValidateSequence(partition, cmd.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
		return fmt.Errorf("sequence validation failed: %w", err)
	}

	// If duplicate, skip processing
	if isDuplicate {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(commandType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch — guards, pure math, batch construction, record
	// mutation. A handler returning an error has mutated nothing.
	result, err := e.dispatch(cmd)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(commandType, "rejected").Inc()
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	// Step 4: Apply the transfer batch. Handlers pre-check funded sources
	// before mutating records, so a failure here means records and book
	// have diverged — halt rather than continue from corrupt state.
	batch := result.batch
	if batch != nil && len(batch.Transfers) > 0 {
		if err := batch.Validate(); err != nil {
			panic(fmt.Sprintf("FATAL: malformed batch: %v", err))
		}
		if err := e.book.ApplyBatch(batch); err != nil {
			panic(fmt.Sprintf("FATAL: batch apply failed after record mutation: %v", err))
		}
	}

	// Step 5: Compute state digest and extend the hash chain
	stateDigest := e.computeStateDigest(batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)

	payload, err := json.Marshal(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: command payload marshal failed: %v", err))
	}

	envelope := &command.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		Partition:      partition,
		Timestamp:      cmd.At(),
		SourceSequence: cmd.SourceSequence(),
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := Output{
		Envelope:   envelope,
		Batch:      batch,
		StateDelta: stateDigest,
		Market:     copyMarket(result.market),
		Position:   copyPosition(result.position),
		Tournament: copyTournament(result.tournament),
		Entry:      copyEntry(result.entry),
	}
	e.sequence++

	// Step 6: Post-checks. Violations are fatal.
	if err := e.postCheckInvariants(result); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 7: Emit. Persist channel uses a BLOCKING send (backpressure),
	// projection channel a NON-BLOCKING send with silent drop.
	e.persistChan <- output

	select {
	case e.projectionChan <- output:
	default:
		// Dropped — projections rebuild from the event log
	}

	// Step 8: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(commandType, idempotencyKey)

	if e.metrics != nil {
		e.metrics.CommandsApplied.WithLabelValues(commandType).Inc()
		e.metrics.CommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
	}

	return nil
}

// ReplayCommand re-applies a logged command during recovery. The row came
// out of the event log, so the dedup tiers are skipped: the Postgres tier
// would classify every replayed row as a duplicate of itself and the
// restart would silently rebuild nothing. Nothing is emitted downstream
// either; the envelope and transfers are already persisted. Any failure
// here means the log and the engine have diverged, and the caller must
// treat it as fatal.
func (e *Engine) ReplayCommand(cmd command.Command) error {
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	if err := e.sequenceValidator.ValidateSequence(cmd.Partition(), cmd.SourceSequence(), idempotencyKey, false); err != nil {
		return fmt.Errorf("replay sequence validation failed: %w", err)
	}

	result, err := e.dispatch(cmd)
	if err != nil {
		return fmt.Errorf("replay dispatch failed: %w", err)
	}

	batch := result.batch
	if batch != nil && len(batch.Transfers) > 0 {
		if err := batch.Validate(); err != nil {
			return fmt.Errorf("replay batch malformed: %w", err)
		}
		if err := e.book.ApplyBatch(batch); err != nil {
			return fmt.Errorf("replay batch apply failed: %w", err)
		}
	}

	stateDigest := e.computeStateDigest(batch)
	e.hasher.ComputeHash(e.sequence, stateDigest)
	e.sequence++

	if err := e.postCheckInvariants(result); err != nil {
		return fmt.Errorf("replay invariant violated: %w", err)
	}

	// Seed the LRU so a live redelivery of this command dedups without
	// a DB round trip.
	e.idempotency.MarkProcessed(commandType, idempotencyKey)

	return nil
}

// handlerResult carries the batch plus the records a handler touched.
type handlerResult struct {
	batch      *vault.Batch
	market     *market.Market
	position   *market.Position
	tournament *tournament.Tournament
	entry      *tournament.Entry
}

func (e *Engine) dispatch(cmd command.Command) (*handlerResult, error) {
	switch c := cmd.(type) {
	case *command.CreateMarket:
		return e.handleCreateMarket(c)
	case *command.InitPosition:
		return e.handleInitPosition(c)
	case *command.PlaceBet:
		return e.handlePlaceBet(c)
	case *command.CloseMarket:
		return e.handleCloseMarket(c)
	case *command.SettleMarket:
		return e.handleSettleMarket(c)
	case *command.SettleMarketOracle:
		return e.handleSettleMarketOracle(c)
	case *command.ClaimWinnings:
		return e.handleClaimWinnings(c)
	case *command.CancelMarket:
		return e.handleCancelMarket(c)
	case *command.RefundBet:
		return e.handleRefundBet(c)
	case *command.CreateTournament:
		return e.handleCreateTournament(c)
	case *command.RegisterPlayer:
		return e.handleRegisterPlayer(c)
	case *command.StartTournament:
		return e.handleStartTournament(c)
	case *command.SubmitResults:
		return e.handleSubmitResults(c)
	case *command.DistributePrizes:
		return e.handleDistributePrizes(c)
	case *command.DistributePrizesOracle:
		return e.handleDistributePrizesOracle(c)
	case *command.CancelTournament:
		return e.handleCancelTournament(c)
	case *command.ClaimRefund:
		return e.handleClaimRefund(c)
	case *command.InitializeOracle:
		return e.handleInitializeOracle(c)
	case *command.Deposit:
		return e.handleDeposit(c)
	case *command.Withdraw:
		return e.handleWithdraw(c)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// computeStateDigest creates canonical bytes for the state hash from the
// accounts this batch touched.
func (e *Engine) computeStateDigest(batch *vault.Batch) []byte {
	affectedAccounts := make(map[vault.AccountKey]bool)

	if batch != nil {
		for _, t := range batch.Transfers {
			affectedAccounts[t.DebitAccount] = true
			affectedAccounts[t.CreditAccount] = true
		}
	}

	accounts := make([]vault.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	// Sort by AccountPath (deterministic string ordering)
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)

	for _, key := range accounts {
		balance := e.book.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		digest = appendInt64LE(digest, balance)
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates invariants after batch application
func (e *Engine) postCheckInvariants(result *handlerResult) error {
	// Escrow accounts must never go negative
	if m := result.market; m != nil {
		if err := e.validator.ValidateVaultNonNegative(m.VaultKey()); err != nil {
			return fmt.Errorf("post-check market vault: %w", err)
		}

		// Until settlement opens the vault for claims, escrow covers the
		// full recorded pool
		if m.Status == market.StatusOpen || m.Status == market.StatusClosed {
			totalPool, err := m.TotalPool()
			if err != nil {
				return fmt.Errorf("post-check market pool: %w", err)
			}
			if totalPool <= math.MaxInt64 {
				if err := e.validator.ValidateVaultCoversLiabilities(m.VaultKey(), int64(totalPool)); err != nil {
					return fmt.Errorf("post-check market escrow: %w", err)
				}
			}
		}
	}

	if t := result.tournament; t != nil {
		if err := e.validator.ValidateVaultNonNegative(t.VaultKey()); err != nil {
			return fmt.Errorf("post-check tournament vault: %w", err)
		}

		// The accounted prize pool must always be backed by escrow
		if t.PrizePool <= math.MaxInt64 {
			if err := e.validator.ValidateVaultCoversLiabilities(t.VaultKey(), int64(t.PrizePool)); err != nil {
				return fmt.Errorf("post-check tournament escrow: %w", err)
			}
		}
	}

	// Periodic global zero-sum check
	if e.sequence > 0 && e.sequence%1000 == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("post-check global balance: %w", err)
		}
	}

	return nil
}

func copyMarket(m *market.Market) *market.Market {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

func copyPosition(p *market.Position) *market.Position {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func copyTournament(t *tournament.Tournament) *tournament.Tournament {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func copyEntry(en *tournament.Entry) *tournament.Entry {
	if en == nil {
		return nil
	}
	cp := *en
	return &cp
}

// GetSequence returns the current global sequence number.
func (e *Engine) GetSequence() int64 {
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	return e.hasher.GetPrevHash()
}

// Book exposes read-only balance access for the query path.
func (e *Engine) Book() *vault.BalanceBook {
	return e.book
}
