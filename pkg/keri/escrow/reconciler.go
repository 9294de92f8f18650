package escrow

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/seriouscoderone/kerihost/pkg/keri/processor"
	"github.com/seriouscoderone/kerihost/pkg/keri/storage"
)

// State mirrors the teacher's SchedulerState — stopped, running, or
// paused.
type State string

const (
	Stopped State = "stopped"
	Running State = "running"
	Paused  State = "paused"
)

// Config configures the Reconciler, mirroring SchedulerConfig's
// interval/checkInterval split: CheckInterval is how often the sweep
// loop wakes, MaxReescrowsPerWindow bounds how many times a given
// (digest, reason) may be retried and re-escrowed before it is left
// alone until TTL eviction, per spec.md §4.9.
type Config struct {
	CheckInterval         time.Duration
	MaxReescrowsPerWindow int
	// MaxBatchSize bounds how many escrowed events a single Sweep
	// inspects, per spec.md §5's backpressure clause (the escrow-check
	// lambda's batch-size cap). Sweep reports how many entries it left
	// untouched so a caller can decide whether to sweep again
	// immediately.
	MaxBatchSize int
	Predicates   *PredicateRegistry
	Logger       *log.Logger
}

func DefaultConfig() *Config {
	return &Config{
		CheckInterval:         time.Minute,
		MaxReescrowsPerWindow: 3,
		MaxBatchSize:          200,
		Predicates:            NewPredicateRegistry(),
		Logger:                log.New(os.Stdout, "[escrow] ", log.LstdFlags),
	}
}

// Reconciler is the Escrow Reconciler: a ticker-driven sweep over the
// Escrow store, grounded on pkg/batch/scheduler.go's Start/Stop/
// SchedulerState shape.
type Reconciler struct {
	mu sync.RWMutex

	deps   Deps
	cfg    Config
	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	attemptsMu sync.Mutex
	attempts   map[string]int // digest#reason -> attempts this TTL window
}

func New(deps Deps, cfg *Config) *Reconciler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Predicates == nil {
		cfg.Predicates = NewPredicateRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stdout, "[escrow] ", log.LstdFlags)
	}
	if cfg.MaxReescrowsPerWindow <= 0 {
		cfg.MaxReescrowsPerWindow = 3
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 200
	}
	return &Reconciler{
		deps:     deps,
		cfg:      *cfg,
		state:    Stopped,
		attempts: make(map[string]int),
	}
}

// Start begins the sweep loop in its own goroutine.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Running {
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.state = Running
	go r.run(ctx)
	r.cfg.Logger.Printf("escrow reconciler started (check=%s)", r.cfg.CheckInterval)
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.state != Running {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	r.state = Stopped
	r.mu.Unlock()
	<-r.doneCh
	r.cfg.Logger.Println("escrow reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.cfg.Logger.Printf("sweep failed: %v", err)
			}
		}
	}
}

// SweepResult summarizes one pass over the Escrow store, used by tests
// and the Witness Facade's operational endpoints.
type SweepResult struct {
	Inspected int
	Expired   int
	Promoted  int
	ReEscrow  int
	Held      int
	// Remaining counts escrowed entries this sweep left untouched
	// because MaxBatchSize was reached — a non-zero value tells the
	// caller another sweep is warranted right away.
	Remaining int
}

// Sweep performs one pass over up to MaxBatchSize escrowed events:
// evicting expired entries, testing each reason's promotion predicate,
// and re-submitting satisfied ones through the Processor.
func (r *Reconciler) Sweep(ctx context.Context) (SweepResult, error) {
	all, err := r.deps.Escrow.ListAll(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	batch := all
	var result SweepResult
	if len(all) > r.cfg.MaxBatchSize {
		batch = all[:r.cfg.MaxBatchSize]
		result.Remaining = len(all) - r.cfg.MaxBatchSize
	}

	now := time.Now()
	for _, esc := range batch {
		result.Inspected++
		if esc.Expired(now) {
			if err := r.deps.Escrow.Remove(ctx, esc.Event.Event.Digest); err != nil && err != storage.ErrNotFound {
				r.cfg.Logger.Printf("evict %s failed: %v", esc.Event.Event.Digest, err)
				continue
			}
			r.forgetAttempts(esc.Event.Event.Digest, esc.Reason)
			result.Expired++
			continue
		}

		if r.attemptsFor(esc.Event.Event.Digest, esc.Reason) >= r.cfg.MaxReescrowsPerWindow {
			result.Held++
			continue
		}

		predicate, ok := r.cfg.Predicates.Get(esc.Reason)
		if !ok {
			continue
		}
		satisfied, err := predicate(ctx, r.deps, esc)
		if err != nil {
			r.cfg.Logger.Printf("predicate for %s (%s) failed: %v", esc.Event.Event.Digest, esc.Reason, err)
			continue
		}
		if !satisfied {
			continue
		}

		if err := r.promote(ctx, esc, &result); err != nil {
			r.cfg.Logger.Printf("promote %s failed: %v", esc.Event.Event.Digest, err)
		}
	}
	return result, nil
}

func (r *Reconciler) promote(ctx context.Context, esc storage.Escrowed, result *SweepResult) error {
	digest := esc.Event.Event.Digest
	promoted, err := r.deps.Escrow.Promote(ctx, digest)
	if err == storage.ErrNotFound {
		return nil // another sweep (or a direct submission) already claimed it
	}
	if err != nil {
		return err
	}

	res, err := r.deps.Processor.Process(ctx, promoted)
	if err != nil || res.Outcome != processor.Accepted {
		reason := esc.Reason
		if err == nil {
			reason = reasonFromOutcome(res, esc.Reason)
		}
		if reErr := r.deps.Escrow.Escrow(ctx, promoted, reason); reErr != nil {
			return reErr
		}
		r.bumpAttempts(digest, reason)
		result.ReEscrow++
		return nil
	}

	r.forgetAttempts(digest, esc.Reason)
	result.Promoted++
	return nil
}

func reasonFromOutcome(res processor.Result, fallback storage.EscrowReason) storage.EscrowReason {
	if res.Outcome == processor.EscrowedOutcome && res.Reason != "" {
		return res.Reason
	}
	return fallback
}

func (r *Reconciler) attemptKey(digest string, reason storage.EscrowReason) string {
	return digest + "#" + string(reason)
}

func (r *Reconciler) attemptsFor(digest string, reason storage.EscrowReason) int {
	r.attemptsMu.Lock()
	defer r.attemptsMu.Unlock()
	return r.attempts[r.attemptKey(digest, reason)]
}

func (r *Reconciler) bumpAttempts(digest string, reason storage.EscrowReason) {
	r.attemptsMu.Lock()
	defer r.attemptsMu.Unlock()
	r.attempts[r.attemptKey(digest, reason)]++
}

func (r *Reconciler) forgetAttempts(digest string, reason storage.EscrowReason) {
	r.attemptsMu.Lock()
	defer r.attemptsMu.Unlock()
	delete(r.attempts, r.attemptKey(digest, reason))
}
