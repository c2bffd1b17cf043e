// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/LiterallyKirby/Galactica/lib/secmem"
)

// sessionTokenSize is the length of the random session token. The
// token only tags diagnostics; 32 bytes keeps collisions implausible.
const sessionTokenSize = 32

// ErrInvalidCredentials means the transport reported credentials that
// cannot belong to a real peer process.
var ErrInvalidCredentials = errors.New("security: invalid client credentials")

// ErrSurfaceLimit means a client tried to create a surface past its
// per-client cap.
var ErrSurfaceLimit = errors.New("security: surface limit exceeded")

// Client is the per-client security record. One entry exists per
// client process, created when the client's first surface is created
// and owned exclusively by the [Context].
type Client struct {
	PID int32
	UID uint32
	GID uint32

	// IsVM marks clients whose process looks like a hypervisor tool.
	// Best-effort classification; used only to tag windows.
	IsVM bool

	// SurfaceCount tracks live surfaces for limit enforcement.
	// Invariant: SurfaceCount <= MaxSurfacesPerClient.
	SurfaceCount uint32
}

// Credentials are the transport-reported identity of a connecting
// process, read once per connection via SO_PEERCRED.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// Context is the compositor's process-wide security state: the session
// token and the registry of client entries. Created once at startup;
// Close wipes everything.
//
// Context is confined to the dispatch goroutine and needs no locking.
type Context struct {
	token   *secmem.Buffer
	clients map[int32]*Client
	logger  *slog.Logger
}

// NewContext allocates the security context and generates the session
// token. Returns a wrapped [secmem.ErrEntropyUnavailable] if the
// system random source cannot be read; the caller treats that as a
// startup-fatal condition.
func NewContext(logger *slog.Logger) (*Context, error) {
	token, err := secmem.NewRandom(sessionTokenSize)
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	ctx := &Context{
		token:   token,
		clients: make(map[int32]*Client),
		logger:  logger,
	}
	logger.Info("security context created", "session", ctx.SessionFingerprint())
	return ctx, nil
}

// SessionFingerprint returns a short non-reversible identifier for the
// session token, for log lines and status reports.
func (c *Context) SessionFingerprint() string {
	return c.token.Fingerprint()
}

// ValidateClient checks transport credentials and returns the client's
// security entry, creating one on first use. Fails with
// [ErrInvalidCredentials] if the reported pid is not positive. VM
// classification happens here, once per client; a classification
// failure is not an error.
func (c *Context) ValidateClient(creds Credentials) (*Client, error) {
	if creds.PID <= 0 {
		return nil, fmt.Errorf("%w: pid %d", ErrInvalidCredentials, creds.PID)
	}

	if existing, ok := c.clients[creds.PID]; ok {
		return existing, nil
	}

	client := &Client{
		PID:  creds.PID,
		UID:  creds.UID,
		GID:  creds.GID,
		IsVM: isVMProcess(creds.PID),
	}
	c.clients[creds.PID] = client

	c.logger.Info("client validated",
		"pid", client.PID,
		"uid", client.UID,
		"gid", client.GID,
		"vm", client.IsVM,
	)
	return client, nil
}

// Client returns the registered entry for a pid, if any.
func (c *Context) Client(pid int32) (*Client, bool) {
	client, ok := c.clients[pid]
	return client, ok
}

// ClientCount returns the number of registered clients.
func (c *Context) ClientCount() int {
	return len(c.clients)
}

// CheckSurfaceLimit reports whether the client may create another
// surface. Surface creation must consult this before allocating.
func (c *Context) CheckSurfaceLimit(client *Client) bool {
	if client == nil {
		return false
	}
	if client.SurfaceCount >= MaxSurfacesPerClient {
		c.logger.Warn("client exceeded surface limit",
			"pid", client.PID,
			"count", client.SurfaceCount,
			"limit", MaxSurfacesPerClient,
		)
		return false
	}
	return true
}

// AcquireSurface reserves one surface slot for the client. Fails with
// [ErrSurfaceLimit] at the cap, [ErrInvalidCredentials] for an
// unregistered pid.
func (c *Context) AcquireSurface(pid int32) error {
	client, ok := c.clients[pid]
	if !ok {
		return fmt.Errorf("%w: unregistered pid %d", ErrInvalidCredentials, pid)
	}
	if !c.CheckSurfaceLimit(client) {
		return fmt.Errorf("%w: pid %d at %d surfaces", ErrSurfaceLimit, pid, client.SurfaceCount)
	}
	client.SurfaceCount++
	return nil
}

// ReleaseSurface returns a surface slot to the client. Unmatched
// releases are ignored rather than underflowing the count.
func (c *Context) ReleaseSurface(pid int32) {
	if client, ok := c.clients[pid]; ok && client.SurfaceCount > 0 {
		client.SurfaceCount--
	}
}

// ReleaseClient removes and wipes a client's entry. Called when the
// client's connection is gone and its last surface destroyed.
func (c *Context) ReleaseClient(pid int32) {
	client, ok := c.clients[pid]
	if !ok {
		return
	}
	delete(c.clients, pid)
	*client = Client{}
}

// Close wipes every client entry and the session token. Idempotent.
func (c *Context) Close() error {
	for pid, client := range c.clients {
		*client = Client{}
		delete(c.clients, pid)
	}
	err := c.token.Close()
	c.logger.Info("security context destroyed")
	return err
}
