package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"scriber/internal/config"
	"scriber/internal/logging"
	"scriber/internal/pipeline"
	"scriber/internal/queue"
	"scriber/internal/services"
)

// JobRunner executes a claimed job to a terminal status.
type JobRunner interface {
	Run(ctx context.Context, job *queue.Job) error
}

// Manager owns the worker pool and its supporting loops.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	runner JobRunner

	pollInterval       time.Duration
	cancelPollInterval time.Duration
	errorRetryInterval time.Duration
	heartbeat          *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	active  map[string]context.CancelFunc
}

// NewManager constructs a manager backed by the real pipeline runner.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:                cfg,
		store:              store,
		logger:             logging.NewComponentLogger(logger, "workflow"),
		runner:             pipeline.New(cfg, store, logger),
		pollInterval:       secondsOrDefault(cfg.Workflow.QueuePollInterval, time.Second),
		cancelPollInterval: secondsOrDefault(cfg.Workflow.CancelPollInterval, time.Second),
		errorRetryInterval: secondsOrDefault(cfg.Workflow.ErrorRetryInterval, 5*time.Second),
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		active: make(map[string]context.CancelFunc),
	}
}

// WithRunner overrides the pipeline runner (for testing).
func (m *Manager) WithRunner(runner JobRunner) { m.runner = runner }

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Start launches the workers and background loops. Safe to call once;
// subsequent calls while running are rejected.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow manager already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.cfg.Workflow.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(runCtx, i)
	}
	m.wg.Add(1)
	go m.cancelWatchLoop(runCtx)
	m.wg.Add(1)
	go m.reclaimLoop(runCtx)

	m.logger.Info("workflow manager started", logging.Int("workers", workers))
	return nil
}

// Stop halts all loops, waits for in-flight jobs to observe
// cancellation, and releases any still-claimed jobs back to pending.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	released, err := m.store.ReleaseProcessing(context.Background())
	if err != nil {
		m.logger.Error("failed to release in-flight jobs", logging.Error(err))
	} else if released > 0 {
		m.logger.Info("released in-flight jobs to pending", logging.Int64("count", released))
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.logger.Info("workflow manager stopped")
}

// Running reports whether the worker pool is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int(logging.FieldWorker, worker))

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := m.store.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("claim failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
			continue
		}
		m.runJob(ctx, worker, job)
	}
}

func (m *Manager) runJob(ctx context.Context, worker int, job *queue.Job) {
	jobCtx, jobCancel := context.WithCancel(services.WithWorker(ctx, worker))
	m.registerActive(job.ID, jobCancel)
	defer func() {
		m.unregisterActive(job.ID)
		jobCancel()
	}()

	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(jobCtx, &hbWG, job.ID)

	logger := logging.WithContext(jobCtx, m.logger).With(logging.String(logging.FieldJobID, job.ID))
	logger.Info("job claimed",
		logging.String("source_kind", string(job.SourceKind)),
		logging.String("source", job.SourceValue))

	if err := m.runner.Run(jobCtx, job); err != nil {
		logger.Warn("job finished with error", logging.Error(err))
	}

	jobCancel()
	hbWG.Wait()
}

func (m *Manager) registerActive(id string, cancel context.CancelFunc) {
	m.mu.Lock()
	m.active[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterActive(id string) {
	m.mu.Lock()
	delete(m.active, id)
	m.mu.Unlock()
}

func (m *Manager) activeCancel(id string) context.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[id]
}

// cancelWatchLoop turns stored cancel requests into context
// cancellation. Pending jobs never reach a worker, so the watcher
// finalizes them directly.
func (m *Manager) cancelWatchLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepCancelRequests(ctx)
		}
	}
}

func (m *Manager) sweepCancelRequests(ctx context.Context) {
	ids, err := m.store.CancelRequested(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("cancel sweep failed", logging.Error(err))
		}
		return
	}
	for _, id := range ids {
		if cancel := m.activeCancel(id); cancel != nil {
			cancel()
			continue
		}
		job, err := m.store.GetByID(ctx, id)
		if err != nil || job == nil {
			continue
		}
		// Claimed-but-unregistered jobs are caught on the next sweep.
		if job.Status != queue.StatusPending {
			continue
		}
		job.SetCancelled()
		if err := m.store.Update(ctx, job); err != nil {
			m.logger.Warn("failed to cancel pending job",
				logging.String(logging.FieldJobID, id), logging.Error(err))
			continue
		}
		m.logger.Info("cancelled pending job", logging.String(logging.FieldJobID, id))
	}
}

func (m *Manager) reclaimLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.heartbeat.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("stale job reclaim failed", logging.Error(err))
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
