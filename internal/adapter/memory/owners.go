package memory

import (
	"context"
	"sync"

	"genstudio/internal/domain"
)

var _ domain.OwnerDirectory = (*Owners)(nil)

// Owners is a map-backed owner directory.
type Owners struct {
	mu        sync.RWMutex
	standings map[string]domain.OwnerStanding
}

// NewOwners returns an empty directory.
func NewOwners() *Owners {
	return &Owners{standings: make(map[string]domain.OwnerStanding)}
}

// Set records the standing of an owner.
func (o *Owners) Set(ownerID string, standing domain.OwnerStanding) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.standings[ownerID] = standing
}

// Standing returns the recorded standing or domain.ErrNotFound.
func (o *Owners) Standing(_ context.Context, ownerID string) (domain.OwnerStanding, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	standing, ok := o.standings[ownerID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return standing, nil
}
