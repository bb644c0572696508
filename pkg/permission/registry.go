package permission

import (
	"context"
	"sync"
)

// Subscriber receives permission-change notifications. Implementations
// must tolerate being called for resources they do not track.
type Subscriber interface {
	PermissionChanged(ctx context.Context, rt ResourceType, resourceID int64)
}

// Registry fans permission-change events out to subscribers. The store
// notifies it synchronously after every committed ACL write, so a
// subscriber that invalidates caches can never serve a bundle older
// than the last write it observed.
type Registry struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe registers a subscriber. Subscriptions are process-lifetime;
// there is no unsubscribe.
func (r *Registry) Subscribe(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
}

// Notify delivers a change event to every subscriber, synchronously and
// in subscription order.
func (r *Registry) Notify(ctx context.Context, rt ResourceType, resourceID int64) {
	r.mu.RLock()
	subs := make([]Subscriber, len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()

	for _, sub := range subs {
		sub.PermissionChanged(ctx, rt, resourceID)
	}
}

// SubscriberFunc adapts a function to the Subscriber interface
type SubscriberFunc func(ctx context.Context, rt ResourceType, resourceID int64)

// PermissionChanged implements Subscriber
func (f SubscriberFunc) PermissionChanged(ctx context.Context, rt ResourceType, resourceID int64) {
	f(ctx, rt, resourceID)
}
