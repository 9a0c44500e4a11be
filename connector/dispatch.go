package connector

import (
	"context"
	"fmt"
)

// Error kinds reported by the dispatcher itself.
const (
	ErrUnsupportedProtocol = "UNSUPPORTED_PROTOCOL"
	ErrExtendNotSupported  = "EXTEND_NOT_SUPPORTED"
)

// Dispatcher routes provisioning operations to the adapter registered for the
// requested protocol. The registry map is built once by NewDispatcher and
// read-only afterwards, so a Dispatcher is safe for concurrent use.
type Dispatcher struct {
	adapters map[Protocol]Adapter
}

// NewDispatcher builds a dispatcher over a fixed set of adapters. A later
// adapter with the same protocol replaces an earlier one.
func NewDispatcher(adapters ...Adapter) *Dispatcher {
	m := make(map[Protocol]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Protocol()] = a
	}
	return &Dispatcher{adapters: m}
}

// Create issues a credential through the adapter for the request's protocol.
func (d *Dispatcher) Create(ctx context.Context, req CreateRequest) CreateOutcome {
	adapter, ok := d.adapters[req.Server.Protocol]
	if !ok {
		return CreateOutcome{
			Error:   ErrUnsupportedProtocol,
			Message: unsupportedMessage(req.Server.Protocol),
		}
	}
	return adapter.Create(ctx, req)
}

// Revoke removes a credential through the adapter for the request's protocol.
func (d *Dispatcher) Revoke(ctx context.Context, req RevokeRequest) RevokeOutcome {
	adapter, ok := d.adapters[req.Server.Protocol]
	if !ok {
		return RevokeOutcome{
			Error:   ErrUnsupportedProtocol,
			Message: unsupportedMessage(req.Server.Protocol),
		}
	}
	return adapter.Revoke(ctx, req)
}

// Extend forwards to the adapter's optional extend capability. An adapter
// that exists but lacks the capability yields EXTEND_NOT_SUPPORTED, distinct
// from UNSUPPORTED_PROTOCOL.
func (d *Dispatcher) Extend(ctx context.Context, req ExtendRequest) ExtendOutcome {
	adapter, ok := d.adapters[req.Server.Protocol]
	if !ok {
		return ExtendOutcome{
			Error:   ErrUnsupportedProtocol,
			Message: unsupportedMessage(req.Server.Protocol),
		}
	}
	extender, ok := adapter.(Extender)
	if !ok {
		return ExtendOutcome{
			Error:   ErrExtendNotSupported,
			Message: fmt.Sprintf("Protocol %q does not support extend", req.Server.Protocol),
		}
	}
	return extender.Extend(ctx, req)
}

func unsupportedMessage(p Protocol) string {
	return fmt.Sprintf("Protocol %q is not supported", p)
}
