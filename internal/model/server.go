package model

import (
	"context"
	"net"
)

// ReadyFunc reports whether the backing stores are reachable. It backs the
// readiness probes of both the API and the metrics listener.
type ReadyFunc func(ctx context.Context) error

// SecurityLayer opens the listener a server accepts on, plain or TLS.
type SecurityLayer interface {
	Listen(protocol, addr string) (net.Listener, error)
}

// Server is a listener-backed transport. Start blocks until Stop is called.
type Server interface {
	Start(securityLayer SecurityLayer) error
	Stop(ctx context.Context) error
	Address() string
}
