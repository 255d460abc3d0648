// Package singleinstance lets a run-once invocation hand its scan to an
// already running resident over loopback TCP.
//
// Wire format, one request per connection:
//
//	client: PING\n              server: PONG\n
//	client: SCAN <timeout_ms>\n server: FOUND\n<payload> | ERROR\n<message>
package singleinstance

import (
	"context"
	"time"
)

// PortRange is inclusive. The resident binds Start; clients scan the range.
type PortRange struct {
	Start int
	End   int
}

// Server owns the TCP endpoint and queues scan requests.
type Server interface {
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted request, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one client waiting for a scan result.
type Conn interface {
	Request() Request
	RespondSuccess(payload string) error
	RespondError(msg string) error
	// Done is closed once the client has disconnected.
	Done() <-chan struct{}
	Close() error
}

type Request struct {
	// Timeout is how long the client is willing to wait; 0 means no limit.
	Timeout time.Duration
}

// Client delegates a scan to a resident if one answers.
type Client interface {
	// TryScan returns delegated=false, err=nil when no resident is found.
	TryScan(ctx context.Context, timeout time.Duration) (delegated bool, payload string, err error)
}

// Handler runs one delegated scan and returns its payload. ctx is cancelled
// if the client disconnects first.
type Handler func(ctx context.Context, req Request) (string, error)

func NewServer(r PortRange) Server { return newTcpServer(r) }

func NewClient(r PortRange) Client { return newTcpClient(r) }
