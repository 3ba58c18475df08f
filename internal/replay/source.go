// Package replay plays captured stream notifications back as an event source.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"solana-sniper/internal/chain"
	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
)

// maxLine bounds one captured message.
const maxLine = 4 << 20

// LoadResult holds the decoded events of a capture.
type LoadResult struct {
	Events  []domain.LogEvent
	Lines   int
	Skipped int // confirmations and other messages without logs
	Invalid int // lines that failed to decode
}

// Load decodes a capture written by chain.WithCapture, one raw message per
// line, and orders the events by (slot ASC, signature ASC). Lines that fail to
// decode are counted and skipped, as the live stream would drop them.
func Load(r io.Reader) (*LoadResult, error) {
	res := &LoadResult{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		res.Lines++

		ev, ok, err := chain.DecodeNotification(line)
		switch {
		case err != nil:
			res.Invalid++
		case !ok:
			res.Skipped++
		default:
			res.Events = append(res.Events, ev)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}

	SortEvents(res.Events)
	return res, nil
}

// SortEvents orders events by (slot ASC, signature ASC), keeping capture order
// for ties.
func SortEvents(events []domain.LogEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Slot != events[j].Slot {
			return events[i].Slot < events[j].Slot
		}
		return events[i].Signature < events[j].Signature
	})
}

// Source implements chain.EventSource over a capture file.
// The channel closes after the last event or when ctx is done.
type Source struct {
	path     string
	interval time.Duration
	clock    clock.Clock
	log      logrus.FieldLogger
	state    atomic.Int32
}

// Option configures Source.
type Option func(*Source)

// WithInterval spaces emitted events by d.
func WithInterval(d time.Duration) Option {
	return func(s *Source) {
		s.interval = d
	}
}

// WithClock sets the clock used for spacing and receive times.
func WithClock(c clock.Clock) Option {
	return func(s *Source) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Source) {
		s.log = l
	}
}

// NewSource creates a replay source for the capture at path.
func NewSource(path string, opts ...Option) *Source {
	s := &Source{
		path:  path,
		clock: clock.Real{},
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "replay", "file": path})
	return s
}

// Compile-time interface check.
var _ chain.EventSource = (*Source)(nil)

// State reports Streaming while events are being emitted.
func (s *Source) State() chain.State {
	return chain.State(s.state.Load())
}

// Subscribe loads the capture and emits its events in order.
func (s *Source) Subscribe(ctx context.Context) <-chan domain.LogEvent {
	out := make(chan domain.LogEvent)
	go s.run(ctx, out)
	return out
}

func (s *Source) run(ctx context.Context, out chan<- domain.LogEvent) {
	defer close(out)
	defer s.state.Store(int32(chain.StateDisconnected))

	s.state.Store(int32(chain.StateConnecting))
	f, err := os.Open(s.path)
	if err != nil {
		s.log.WithError(err).Error("open capture")
		return
	}
	defer f.Close()

	res, err := Load(f)
	if err != nil {
		s.log.WithError(err).Error("load capture")
		return
	}
	s.log.WithFields(logrus.Fields{
		"events":  len(res.Events),
		"skipped": res.Skipped,
		"invalid": res.Invalid,
	}).Info("replaying capture")

	s.state.Store(int32(chain.StateStreaming))
	for i, ev := range res.Events {
		if i > 0 && s.interval > 0 {
			if err := s.clock.Sleep(ctx, s.interval); err != nil {
				return
			}
		}
		ev.ReceivedAt = s.clock.Now()
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
