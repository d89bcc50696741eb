package events

import (
	"fmt"
	"io"
	"sync"
)

// CLIPublisher reports mutation outcomes on a writer, usually stderr, and
// passes every event on to the embedded Publisher.
type CLIPublisher struct {
	Publisher

	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// CLIPublisherOption configures a CLIPublisher.
type CLIPublisherOption func(*CLIPublisher)

// WithInnerPublisher sets the publisher events are passed on to. Without
// one, subscriptions get closed channels.
func WithInnerPublisher(p Publisher) CLIPublisherOption {
	return func(c *CLIPublisher) { c.Publisher = p }
}

// WithVerbose also reports committed mutations.
func WithVerbose(enabled bool) CLIPublisherOption {
	return func(c *CLIPublisher) { c.verbose = enabled }
}

// NewCLIPublisher creates a publisher reporting to out.
func NewCLIPublisher(out io.Writer, opts ...CLIPublisherOption) *CLIPublisher {
	p := &CLIPublisher{out: out}
	for _, opt := range opts {
		opt(p)
	}
	if p.Publisher == nil {
		p.Publisher = NewNopPublisher()
	}
	return p
}

// Publish reports rollbacks (and commits when verbose), then passes the
// event on.
func (p *CLIPublisher) Publish(event Event) {
	p.Publisher.Publish(event)

	data, ok := event.Data.(OpData)
	if !ok {
		return
	}
	var line string
	switch {
	case event.Type == EventOpRolledBack:
		line = fmt.Sprintf("rolled back %s %s: %s", data.Op, event.Topic, data.Error)
	case event.Type == EventOpCommitted && p.verbose:
		line = fmt.Sprintf("committed %s %s", data.Op, event.Topic)
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
