package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/FeeBook/internal/pkg/env"
)

const (
	defaultWorkerCount       = 5
	defaultOverdueInterval   = 60 * time.Minute
	defaultReconcileInterval = 10 * time.Minute
	counterFlushInterval     = 30 * time.Second
	// Pending orders younger than this are left to the webhook.
	reconcileAfter = 15 * time.Minute
)

// OverdueSweeper moves plans past their due date to OVERDUE.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

// PendingReconciler re-verifies orders stuck in PENDING.
type PendingReconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration) (int, error)
}

// CounterFlusher moves buffered counters from Redis to the database.
type CounterFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// Sweepers are the periodic tasks run by the manager.
type Sweepers struct {
	Overdue   OverdueSweeper
	Reconcile PendingReconciler
	Counters  CounterFlusher
}

// Manager manages the global job queue and background tasks
type Manager struct {
	queue             *Queue
	sweepers          Sweepers
	overdueInterval   time.Duration
	reconcileInterval time.Duration
	overdueTicker     *time.Ticker
	reconcileTicker   *time.Ticker
	counterTicker     *time.Ticker
	stopCh            chan struct{}
	wg                sync.WaitGroup
	mu                sync.Mutex
	running           bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue:             NewQueue(env.GetInt("JOBQUEUE_WORKERS", defaultWorkerCount)),
			overdueInterval:   envMinutes("OVERDUE_SWEEP_INTERVAL_MINUTES", defaultOverdueInterval),
			reconcileInterval: envMinutes("ORDER_RECONCILE_INTERVAL_MINUTES", defaultReconcileInterval),
			stopCh:            make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Configure wires job processors and periodic sweeps. Call before Start.
func (m *Manager) Configure(p Processors, s Sweepers) {
	m.queue.SetProcessors(p)
	m.mu.Lock()
	m.sweepers = s
	m.mu.Unlock()
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.sweepers.Overdue != nil {
		m.overdueTicker = time.NewTicker(m.overdueInterval)
		m.wg.Add(1)
		go m.overdueWorker(m.overdueTicker, m.stopCh)
	}

	if m.sweepers.Reconcile != nil {
		m.reconcileTicker = time.NewTicker(m.reconcileInterval)
		m.wg.Add(1)
		go m.reconcileWorker(m.reconcileTicker, m.stopCh)
	}

	if m.sweepers.Counters != nil {
		m.counterTicker = time.NewTicker(counterFlushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker(m.counterTicker, m.stopCh)
	}

	log.Infof("[JobQueue Manager] Started (overdue sweep every %s, order reconcile every %s)", m.overdueInterval, m.reconcileInterval)
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.overdueTicker != nil {
		m.overdueTicker.Stop()
	}
	if m.reconcileTicker != nil {
		m.reconcileTicker.Stop()
	}
	if m.counterTicker != nil {
		m.counterTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) overdueWorker(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			log.Info("[JobQueue Manager] Overdue sweeper stopping")
			return
		case <-ticker.C:
			m.RunOverdueSweepOnce()
		}
	}
}

func (m *Manager) reconcileWorker(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			log.Info("[JobQueue Manager] Order reconciler stopping")
			return
		case <-ticker.C:
			m.RunReconcileOnce()
		}
	}
}

// counterFlushWorker periodically flushes counters from Redis to the database
func (m *Manager) counterFlushWorker(ticker *time.Ticker, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			m.FlushCountersOnce()
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-ticker.C:
			m.FlushCountersOnce()
		}
	}
}

// FlushCountersOnce applies the buffered counters once.
func (m *Manager) FlushCountersOnce() int {
	if m.sweepers.Counters == nil {
		return 0
	}
	n, err := m.sweepers.Counters.Flush(context.Background())
	if err != nil {
		log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
		return 0
	}
	return n
}

// RunOverdueSweepOnce runs a single overdue sweep (also used by the admin console).
func (m *Manager) RunOverdueSweepOnce() int64 {
	if m.sweepers.Overdue == nil {
		return 0
	}
	n, err := m.sweepers.Overdue.SweepOverdue(context.Background(), time.Now())
	if err != nil {
		log.Errorf("[JobQueue Manager] Overdue sweep error: %v", err)
		return 0
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Marked %d fee plans overdue", n)
	}
	return n
}

// RunReconcileOnce re-verifies stale pending orders once.
func (m *Manager) RunReconcileOnce() int {
	if m.sweepers.Reconcile == nil {
		return 0
	}
	n, err := m.sweepers.Reconcile.ReconcilePending(context.Background(), reconcileAfter)
	if err != nil {
		log.Errorf("[JobQueue Manager] Order reconcile error: %v", err)
	}
	if n > 0 {
		log.Infof("[JobQueue Manager] Reconciled %d pending orders", n)
	}
	return n
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func envMinutes(key string, def time.Duration) time.Duration {
	return time.Duration(env.GetInt(key, int(def/time.Minute))) * time.Minute
}
