package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rudder/internal/ingest"
	"rudder/internal/logging"
	"rudder/internal/moonraker"
	"rudder/internal/printstate"
	"rudder/internal/services"
)

const pollFailureLogInterval = time.Minute

type statusSource interface {
	Status(ctx context.Context) (moonraker.Status, error)
}

type printIngester interface {
	Ingest(ctx context.Context, filename string, windowStart time.Time) (ingest.Result, error)
	AutoWindowStart() time.Time
}

// MonitorStatus summarizes the poll loop.
type MonitorStatus struct {
	Running             bool
	LastPoll            time.Time
	LastState           string
	LastFilename        string
	LastError           string
	ConsecutiveFailures int
	Detected            int
	Recorded            int
}

type printMonitor struct {
	logger       *slog.Logger
	source       statusSource
	detector     *printstate.Detector
	ingester     printIngester
	pollInterval time.Duration

	mu                  sync.Mutex
	running             bool
	failureLog          *rate.Sometimes
	consecutiveFailures int
	lastPoll            time.Time
	lastErr             error
	detected            int
	recorded            int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPrintMonitor(source statusSource, detector *printstate.Detector, ingester printIngester, poll time.Duration, logger *slog.Logger) *printMonitor {
	if poll <= 0 {
		poll = 15 * time.Second
	}
	return &printMonitor{
		logger:       logging.NewComponentLogger(logger, "print-monitor"),
		source:       source,
		detector:     detector,
		ingester:     ingester,
		pollInterval: poll,
		failureLog:   newFailureLog(),
	}
}

func newFailureLog() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: pollFailureLogInterval}
}

func (m *printMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("print monitor already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.ctx = runCtx
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop cancels the loop and waits for in-progress ingestions.
func (m *printMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *printMonitor) loop() {
	defer m.wg.Done()

	m.poll()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *printMonitor) poll() {
	ctx := m.ctx
	if ctx == nil {
		return
	}

	status, err := m.source.Status(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.recordFailure(err)
		return
	}
	m.recordSuccess()

	event, ok := m.detector.Observe(status)
	if !ok {
		return
	}

	m.mu.Lock()
	m.detected++
	m.mu.Unlock()

	windowStart := m.ingester.AutoWindowStart()
	m.logger.Info("print started",
		logging.String(logging.FieldEventType, "print_detected"),
		logging.String(logging.FieldFilename, event.Filename),
	)

	m.wg.Add(1)
	go func(filename string) {
		defer m.wg.Done()
		result, err := m.ingester.Ingest(ctx, filename, windowStart)
		if err != nil {
			logging.ErrorWithContext(logging.WithContext(services.WithFilename(ctx, filename), m.logger),
				"failed to record print", "print_record_failed",
				logging.Error(err),
			)
			return
		}
		if result.Outcome != ingest.OutcomeSkipped {
			m.mu.Lock()
			m.recorded++
			m.mu.Unlock()
		}
	}(event.Filename)
}

func (m *printMonitor) recordFailure(err error) {
	m.mu.Lock()
	m.consecutiveFailures++
	failures := m.consecutiveFailures
	m.lastPoll = time.Now()
	m.lastErr = err
	sometimes := m.failureLog
	m.mu.Unlock()

	logged := false
	sometimes.Do(func() {
		logged = true
		logging.WarnWithContext(m.logger, "printer status poll failed; will retry", "status_poll_failed",
			logging.Error(err),
			logging.Int("consecutive_failures", failures),
			logging.Bool("timeout", services.Is(err, services.ErrTimeout)),
			logging.String(logging.FieldImpact, "new prints are not detected until the controller answers"),
		)
	})
	if !logged {
		m.logger.Debug("printer status poll failed",
			logging.Error(err),
			logging.Int("consecutive_failures", failures),
		)
	}
}

func (m *printMonitor) recordSuccess() {
	m.mu.Lock()
	failures := m.consecutiveFailures
	m.consecutiveFailures = 0
	m.lastPoll = time.Now()
	m.lastErr = nil
	if failures > 0 {
		m.failureLog = newFailureLog()
	}
	m.mu.Unlock()

	if failures > 0 {
		m.logger.Info("printer controller reachable again",
			logging.String(logging.FieldEventType, "status_poll_recovered"),
			logging.Int("failed_polls", failures),
		)
	}
}

func (m *printMonitor) Status() MonitorStatus {
	state, filename := m.detector.Snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	status := MonitorStatus{
		Running:             m.running,
		LastPoll:            m.lastPoll,
		LastState:           state,
		LastFilename:        filename,
		ConsecutiveFailures: m.consecutiveFailures,
		Detected:            m.detected,
		Recorded:            m.recorded,
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}
