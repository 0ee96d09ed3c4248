package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/internal/domain"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
	"github.com/angelpublicista/tenemos-filo-api/pkg/saga"
	"github.com/angelpublicista/tenemos-filo-api/pkg/telemetry"
)

// Reconciler actions, as reported in logs and metrics
const (
	ActionFail       = "fail"
	ActionCompensate = "compensate"
	ActionComplete   = "complete"
	ActionResume     = "resume"
	ActionRollBack   = "rollback"
	ActionRetry      = "retry"
	ActionSkip       = "skip"
)

// Compensator deletes the orphan account of a saga. When the account turns
// out to have a profile it returns the saga moved to PROFILE_CREATED instead.
type Compensator interface {
	CompensateAccount(ctx context.Context, sg *saga.ProvisioningSaga) (*saga.ProvisioningSaga, error)
}

// Onboarder finishes or rolls back host onboardings
type Onboarder interface {
	Resume(ctx context.Context, sg *saga.ProvisioningSaga) (*domain.HostOnboarding, error)
	RollBack(ctx context.Context, sg *saga.ProvisioningSaga) error
}

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	ScanInterval time.Duration
	StaleAfter   time.Duration
	BatchSize    int
	// MaxAttempts bounds recovery attempts before a saga is moved to FAILED
	MaxAttempts int
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() *ReconcilerConfig {
	return &ReconcilerConfig{
		ScanInterval: time.Minute,
		StaleAfter:   10 * time.Minute,
		BatchSize:    50,
		MaxAttempts:  5,
	}
}

// ReconcilerStats is a snapshot of the reconciler counters
type ReconcilerStats struct {
	IsRunning      bool
	TotalScanned   int64
	TotalRepaired  int64
	TotalFailed    int64
	LastScanTime   time.Time
	LastStaleCount int
}

// Reconciler repairs provisioning sagas that stopped before a terminal state
type Reconciler struct {
	sagas       *saga.StateMachine
	compensator Compensator
	onboarder   Onboarder
	metrics     *telemetry.Metrics
	config      *ReconcilerConfig
	log         *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	totalScanned   int64
	totalRepaired  int64
	totalFailed    int64
	lastScanTime   time.Time
	lastStaleCount int
}

// NewReconciler creates a new Reconciler. A nil config uses the defaults.
func NewReconciler(sagas *saga.StateMachine, compensator Compensator, onboarder Onboarder, metrics *telemetry.Metrics, config *ReconcilerConfig) *Reconciler {
	if config == nil {
		config = DefaultReconcilerConfig()
	}
	return &Reconciler{
		sagas:       sagas,
		compensator: compensator,
		onboarder:   onboarder,
		metrics:     metrics,
		config:      config,
		log:         logger.Get().Named("reconciler"),
	}
}

// Start runs the scan loop on its own goroutine until ctx is done or Stop is called
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	r.log.Info("reconciler started",
		zap.Duration("scan_interval", r.config.ScanInterval),
		zap.Duration("stale_after", r.config.StaleAfter),
	)

	go r.loop(ctx)
}

func (r *Reconciler) loop(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(r.doneCh)
	}()

	ticker := time.NewTicker(r.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.Error("reconciler scan failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the scan loop and waits for the current scan to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh
	r.log.Info("reconciler stopped")
}

// RunOnce scans one batch of stale sagas and returns how many were repaired
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "worker.reconcile")
	defer span.End()

	stale, err := r.sagas.GetStale(ctx, r.config.StaleAfter, r.config.BatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("load stale sagas: %w", err)
	}

	repaired, failed := 0, 0
	for _, sg := range stale {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.reconcile(ctx, sg)
		if err != nil {
			failed++
			continue
		}
		if ok {
			repaired++
		}
	}

	r.mu.Lock()
	r.totalScanned += int64(len(stale))
	r.totalRepaired += int64(repaired)
	r.totalFailed += int64(failed)
	r.lastScanTime = time.Now()
	r.lastStaleCount = len(stale)
	r.mu.Unlock()

	if len(stale) > 0 {
		r.log.Info("reconciler scan finished",
			zap.Int("stale", len(stale)),
			zap.Int("repaired", repaired),
			zap.Int("failed", failed),
		)
	}
	return repaired, nil
}

// reconcile applies the action for the saga state. It reports whether the saga
// reached a terminal state.
func (r *Reconciler) reconcile(ctx context.Context, sg *saga.ProvisioningSaga) (bool, error) {
	ctx = context.WithValue(ctx, logger.SagaIDKey, sg.ID)
	state := string(sg.State)

	var (
		action string
		err    error
	)
	switch sg.State {
	case saga.StateStarted:
		action = ActionFail
		_, err = r.sagas.MarkFailed(ctx, sg.ID, "no account recorded before the saga went stale")
	case saga.StateAccountCreated, saga.StateCompensating:
		action = ActionCompensate
		var updated *saga.ProvisioningSaga
		updated, err = r.compensator.CompensateAccount(ctx, sg)
		if err == nil && updated != nil && updated.State == saga.StateProfileCreated {
			r.log.InfoContext(ctx, "saga account has a profile, finishing instead",
				zap.String("state", state),
				zap.String("profile_id", updated.ProfileID),
			)
			action, err = r.finish(ctx, updated)
		}
	case saga.StateProfileCreated, saga.StateOrganizationCreated, saga.StateVenueCreated, saga.StateOrganizationLinked:
		action, err = r.finish(ctx, sg)
	case saga.StateAbandoned:
		action = ActionRollBack
		err = r.onboarder.RollBack(ctx, sg)
	default:
		r.metrics.IncReconcilerAction(ctx, state, ActionSkip)
		return false, nil
	}

	if err == nil {
		r.metrics.IncReconcilerAction(ctx, state, action)
		r.log.InfoContext(ctx, "saga reconciled", zap.String("state", state), zap.String("action", action))
		return true, nil
	}

	r.log.WarnContext(ctx, "saga reconcile failed",
		zap.String("state", state),
		zap.String("action", action),
		zap.Int("retry_count", sg.RetryCount),
		zap.Error(err),
	)
	r.giveUpOrRetry(ctx, sg, action, err)
	return false, err
}

// finish completes a guest saga or resumes a host saga past its profile
func (r *Reconciler) finish(ctx context.Context, sg *saga.ProvisioningSaga) (string, error) {
	if sg.Kind == saga.KindGuest {
		_, err := r.sagas.MarkCompleted(ctx, sg.ID, "profile created, completed by reconciler")
		return ActionComplete, err
	}
	_, err := r.onboarder.Resume(ctx, sg)
	return ActionResume, err
}

// giveUpOrRetry counts a failed attempt, moving the saga to FAILED once the
// attempts run out
func (r *Reconciler) giveUpOrRetry(ctx context.Context, sg *saga.ProvisioningSaga, action string, cause error) {
	state := string(sg.State)
	msg := fmt.Sprintf("%s: %v", action, cause)

	if sg.RetryCount+1 >= r.config.MaxAttempts {
		if _, err := r.sagas.MarkFailed(ctx, sg.ID, msg); err != nil {
			r.log.ErrorContext(ctx, "failed to give up on saga", zap.Error(err))
			return
		}
		r.metrics.IncReconcilerAction(ctx, state, ActionFail)
		r.log.ErrorContext(ctx, "saga needs an operator",
			zap.String("state", state),
			zap.Int("attempts", sg.RetryCount+1),
			zap.Error(cause),
		)
		return
	}

	if _, err := r.sagas.IncrementRetry(ctx, sg.ID, msg); err != nil {
		r.log.ErrorContext(ctx, "failed to record retry", zap.Error(err))
		return
	}
	r.metrics.IncReconcilerAction(ctx, state, ActionRetry)
}

// GetStats returns the reconciler counters
func (r *Reconciler) GetStats() *ReconcilerStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return &ReconcilerStats{
		IsRunning:      r.running,
		TotalScanned:   r.totalScanned,
		TotalRepaired:  r.totalRepaired,
		TotalFailed:    r.totalFailed,
		LastScanTime:   r.lastScanTime,
		LastStaleCount: r.lastStaleCount,
	}
}
