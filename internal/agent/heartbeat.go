package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/TimeLordRaps/ai-mail-mcp/internal/store"
)

// DefaultHeartbeatInterval is how often the daemon refreshes its presence
// record. Half the online window, so a single missed beat does not flap the
// derived status.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat periodically refreshes an agent's last_seen timestamp so peers
// derive it as online.
type Heartbeat struct {
	store     store.Storage
	name      string
	machineID string
	interval  time.Duration
	log       *slog.Logger

	quit chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewHeartbeat creates a heartbeat for the given registered agent. A zero
// interval selects the default.
func NewHeartbeat(storage store.Storage, name, machineID string,
	interval time.Duration, log *slog.Logger) *Heartbeat {

	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	return &Heartbeat{
		store:     storage,
		name:      name,
		machineID: machineID,
		interval:  interval,
		log:       log,
		quit:      make(chan struct{}),
	}
}

// Start launches the background ticker. Safe to call once.
func (h *Heartbeat) Start() {
	h.startOnce.Do(func() {
		h.wg.Add(1)
		go h.loop()
	})
}

// loop is the heartbeat goroutine.
func (h *Heartbeat) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.beat()

		case <-h.quit:
			return
		}
	}
}

// beat refreshes last_seen once. Failures are logged and retried on the next
// tick; a busy writer must not kill the loop.
func (h *Heartbeat) beat() {
	ctx, cancel := context.WithTimeout(
		context.Background(), h.interval,
	)
	defer cancel()

	err := h.store.TouchAgent(ctx, h.name, h.machineID, time.Now().UTC())
	if err != nil {
		h.log.Warn("heartbeat update failed",
			"agent", h.name, "err", err)
	}
}

// Stop halts the ticker and records a graceful offline transition.
func (h *Heartbeat) Stop(ctx context.Context) error {
	var err error
	h.stopOnce.Do(func() {
		close(h.quit)
		h.wg.Wait()

		err = h.store.MarkAgentOffline(
			ctx, h.name, h.machineID, time.Now().UTC(),
		)
	})

	return err
}
