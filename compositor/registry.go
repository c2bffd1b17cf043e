// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package compositor

import (
	"log/slog"

	"github.com/LiterallyKirby/Galactica/security"
	"github.com/LiterallyKirby/Galactica/shm"
)

// Registry owns every live surface in paint order. Surfaces are
// painted back to front in creation order; nothing reorders them.
//
// The registry is confined to the dispatch goroutine and needs no
// locking.
type Registry struct {
	surfaces []*Surface
	security *security.Context
	logger   *slog.Logger
}

// NewRegistry creates an empty registry bound to a security context,
// which enforces the per-client surface limit.
func NewRegistry(sec *security.Context, logger *slog.Logger) *Registry {
	return &Registry{
		security: sec,
		logger:   logger.With("component", "compositor"),
	}
}

// CreateSurface allocates a surface for the client and appends it to
// the paint order. Fails with the security context's limit error when
// the client is at its surface cap.
func (r *Registry) CreateSurface(client int32, id uint32) (*Surface, error) {
	if err := r.security.AcquireSurface(client); err != nil {
		return nil, err
	}
	surface := &Surface{id: id, client: client}
	r.surfaces = append(r.surfaces, surface)
	r.logger.Debug("surface created", "client", client, "surface", id, "total", len(r.surfaces))
	return surface, nil
}

// DestroySurface removes the surface from the paint order and releases
// the client's slot against its surface limit. Destroying a surface
// that was already removed is a no-op.
func (r *Registry) DestroySurface(surface *Surface) {
	for i, s := range r.surfaces {
		if s != surface {
			continue
		}
		r.surfaces = append(r.surfaces[:i], r.surfaces[i+1:]...)
		r.security.ReleaseSurface(surface.client)
		r.logger.Debug("surface destroyed", "client", surface.client, "surface", surface.id)
		return
	}
}

// DestroyClientSurfaces tears down every surface owned by the client,
// in reverse paint order. Used when a connection closes.
func (r *Registry) DestroyClientSurfaces(client int32) {
	for i := len(r.surfaces) - 1; i >= 0; i-- {
		if r.surfaces[i].client == client {
			r.DestroySurface(r.surfaces[i])
		}
	}
}

// DetachBuffer drops every surface reference to the buffer, pending or
// committed. Called when a client destroys a buffer or its pool so the
// renderer never follows a reference into released memory.
func (r *Registry) DetachBuffer(buffer *shm.Buffer) {
	for _, s := range r.surfaces {
		if s.detachBuffer(buffer) {
			r.logger.Debug("buffer detached", "client", s.client, "surface", s.id)
		}
	}
}

// Surfaces returns the live surfaces in paint order, back to front.
// The returned slice is the registry's own; callers must not mutate it.
func (r *Registry) Surfaces() []*Surface {
	return r.surfaces
}

// Len returns the number of live surfaces.
func (r *Registry) Len() int {
	return len(r.surfaces)
}
