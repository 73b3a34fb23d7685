package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/projectatomic/osbs-go/pkg/transport"
)

// LogStream delivers the log lines of a running build. The channel
// closes when the logs genuinely end, when an error occurs (see Err),
// or when the stream is stopped.
type LogStream struct {
	ch     chan string
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// Lines returns the channel log lines are delivered on.
func (s *LogStream) Lines() <-chan string {
	return s.ch
}

// Err reports why the stream ended; valid once Lines is closed. A
// nil error means the logs completed normally.
func (s *LogStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop ends the stream and closes the line channel.
func (s *LogStream) Stop() {
	s.cancel()
}

func (s *LogStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// StreamLogs tails the logs of a build. The server drops connections
// that stay idle, which happens routinely mid-build (long compile
// steps), so a connection that was idle for at least the configured
// threshold when it closed is reopened with sinceSeconds asking for
// replay from just before the gap. A connection closed while idle
// for less than the threshold is the end of the logs.
func (o *Openshift) StreamLogs(ctx context.Context, buildID string) *LogStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &LogStream{ch: make(chan string), cancel: cancel}
	go o.streamLogs(ctx, buildID, s)
	return s
}

func (o *Openshift) streamLogs(ctx context.Context, buildID string, s *LogStream) {
	defer close(s.ch)

	query := url.Values{"follow": []string{"1"}}
	lastActivity := o.now()

	for {
		u := o.buildURL("builds/"+buildID+"/log/", query)
		opt := transport.Options{
			Stream:  true,
			Headers: http.Header{"Connection": []string{"close"}},
		}
		resp, err := o.get(ctx, u, opt)
		if err != nil {
			if ctx.Err() == nil {
				s.setErr(err)
			}
			return
		}
		if !o.copyLogLines(ctx, resp, s, &lastActivity) {
			return
		}

		idle := o.now().Sub(lastActivity)
		o.logger.Debug("log connection closed", "idle", idle)
		if idle < o.opts.LogIdleThreshold {
			return
		}
		if ctx.Err() != nil {
			return
		}

		since := int64(idle.Seconds()) - 1
		o.logger.Debug("fetching logs from seconds ago", "since", since)
		query.Set("sinceSeconds", strconv.FormatInt(since, 10))
	}
}

// copyLogLines drains one log connection into the stream. It returns
// false when the stream is finished for good (error or cancellation)
// and true when the idle heuristic should decide about reconnecting.
func (o *Openshift) copyLogLines(ctx context.Context, resp *transport.Response, s *LogStream, lastActivity *time.Time) bool {
	defer resp.Close()

	// Unblock the line reader if the consumer stops mid-read.
	stop := context.AfterFunc(ctx, func() { _ = resp.Close() })
	defer stop()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		s.setErr(&transport.ResponseError{StatusCode: resp.StatusCode, Body: ""})
		return false
	}

	lines := resp.Lines()
	for {
		line, ok := lines.Next()
		if !ok {
			return true
		}
		*lastActivity = o.now()
		select {
		case s.ch <- line:
		case <-ctx.Done():
			return false
		}
	}
}
