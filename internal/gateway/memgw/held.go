package memgw

import (
	"context"

	"github.com/randalmurphal/featureplus/internal/entity"
)

// Call is a mutating request waiting for a decision. Only produced when the
// remote was built WithHold.
type Call struct {
	Method Method
	Key    entity.Key
	Entity entity.Entity
	Patch  entity.Patch

	decision chan error
}

// Release lets the call proceed; the remote applies it and answers.
func (c *Call) Release() { c.decision <- nil }

// Fail answers the call with err without applying it.
func (c *Call) Fail(err error) { c.decision <- err }

// Held returns the channel on which held calls are delivered in the order
// they reached the remote.
func (r *Remote) Held() <-chan *Call { return r.held }

// Next waits for the next held call.
func (r *Remote) Next(ctx context.Context) (*Call, error) {
	select {
	case c := <-r.held:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
