package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/projectatomic/osbs-go/pkg/transport"
)

// DefaultReconnectDelay is how long to wait before reopening a watch
// stream the server has closed.
const DefaultReconnectDelay = 30 * time.Second

// DialFunc opens one streaming connection attempt. The watch loop
// owns the returned response and closes it on every exit path; no
// other component may hold on to it.
type DialFunc func(ctx context.Context) (*transport.Response, error)

// Options tunes the reconnect behaviour of a stream.
type Options struct {
	// ReconnectDelay is the pause between connection attempts.
	// Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration
}

func (o Options) reconnectDelay() time.Duration {
	if o.ReconnectDelay <= 0 {
		return DefaultReconnectDelay
	}
	return o.ReconnectDelay
}

// Stream starts a watch over connections opened by dial and returns
// a Watcher delivering its events. The stream alternates between two
// states: connected, where lines are decoded and delivered, and
// reconnecting, where it sleeps for the configured delay before
// dialing again. There is no terminal state and no attempt ceiling;
// the consumer stops the watch by cancelling ctx or calling Stop.
func Stream(ctx context.Context, dial DialFunc, opts Options) Watcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &streamWatcher{
		ch:     make(chan Event),
		cancel: cancel,
		logger: slog.Default(),
	}
	go w.run(ctx, dial, opts.reconnectDelay())
	return w
}

type streamWatcher struct {
	ch     chan Event
	cancel context.CancelFunc
	logger *slog.Logger
}

func (w *streamWatcher) ResultChan() <-chan Event {
	return w.ch
}

func (w *streamWatcher) Stop() {
	w.cancel()
}

func (w *streamWatcher) run(ctx context.Context, dial DialFunc, delay time.Duration) {
	defer close(w.ch)

	for {
		if !w.connect(ctx, dial) {
			return
		}
		reconnectsTotal.Inc()
		w.logger.Debug("watch connection closed, reconnecting", "delay", delay)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// connect runs one connection attempt to completion. It returns
// false when the watch should end (context cancelled), true when the
// stream terminated and a reconnect is due.
func (w *streamWatcher) connect(ctx context.Context, dial DialFunc) bool {
	resp, err := dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		w.logger.Warn("watch connection failed", "error", err)
		return true
	}
	defer resp.Close()

	// Unblock the line reader if the consumer goes away mid-read.
	stop := context.AfterFunc(ctx, func() { _ = resp.Close() })
	defer stop()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Warn("watch request rejected", "status", resp.StatusCode)
		return ctx.Err() == nil
	}

	lines := resp.Lines()
	for {
		line, ok := lines.Next()
		if !ok {
			return ctx.Err() == nil
		}
		w.logger.Debug("watch event line", "line", line)

		ev, ok := parseLine(line)
		if !ok {
			malformedTotal.Inc()
			w.logger.Error("dropping malformed watch event", "line", line)
			continue
		}

		select {
		case w.ch <- ev:
			eventsTotal.WithLabelValues(string(ev.Type)).Inc()
		case <-ctx.Done():
			return false
		}
	}
}
