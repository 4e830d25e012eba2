package vagkoll

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PushState tracks the remote push subscription.
type PushState string

const (
	PushUnknown      PushState = "unknown"
	PushChecking     PushState = "checking"
	PushSubscribed   PushState = "subscribed"
	PushUnsubscribed PushState = "unsubscribed"
)

// Typed failure reasons for push operations. Callers match with errors.Is.
var (
	ErrPushPermissionDenied = errors.New("push permission denied")
	ErrPushKeyExchange      = errors.New("push key exchange failed")
)

// PushDescriptor identifies one push subscription: the delivery endpoint
// plus the keys negotiated with the local push service.
type PushDescriptor struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
	ClientID string `json:"clientId"`
}

// PushTransport is the local push service: permission prompt, key exchange
// and subscription teardown. Implementations should return
// ErrPushPermissionDenied / ErrPushKeyExchange (wrapped or bare) so callers
// get a typed reason.
type PushTransport interface {
	// Current returns the existing local subscription, or nil.
	Current(ctx context.Context) (*PushDescriptor, error)
	Create(ctx context.Context) (*PushDescriptor, error)
	Drop(ctx context.Context, endpoint string) error
}

// PushRegistry is the server-side collaborator holding subscription
// descriptors for delivery.
type PushRegistry interface {
	Register(ctx context.Context, d PushDescriptor) error
	Unregister(ctx context.Context, endpoint string) error
}

// PushManager is the subscription state machine:
//
//	Unknown → Checking → {Subscribed, Unsubscribed}
//
// Any transport or permission failure leaves the machine in its prior state
// and surfaces the error; state only flips once the remote collaborator has
// confirmed.
type PushManager struct {
	transport PushTransport
	registry  PushRegistry

	mu         sync.Mutex
	state      PushState
	descriptor *PushDescriptor
}

func NewPushManager(transport PushTransport, registry PushRegistry) *PushManager {
	return &PushManager{
		transport: transport,
		registry:  registry,
		state:     PushUnknown,
	}
}

func (pm *PushManager) State() PushState {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.state
}

// Descriptor returns the active subscription descriptor, or nil.
func (pm *PushManager) Descriptor() *PushDescriptor {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.descriptor == nil {
		return nil
	}
	d := *pm.descriptor
	return &d
}

// Check resolves the Unknown state by asking the local push service whether
// a subscription already exists. On failure the machine returns to the state
// it had before the check.
func (pm *PushManager) Check(ctx context.Context) (PushState, error) {
	pm.mu.Lock()
	prior := pm.state
	pm.state = PushChecking
	pm.mu.Unlock()

	d, err := pm.transport.Current(ctx)

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if err != nil {
		pm.state = prior
		return pm.state, fmt.Errorf("check push subscription: %w", err)
	}
	if d != nil {
		pm.state = PushSubscribed
		pm.descriptor = d
	} else {
		pm.state = PushUnsubscribed
		pm.descriptor = nil
	}
	return pm.state, nil
}

// Subscribe creates a local subscription (permission prompt + key exchange)
// and persists its descriptor with the registry. Subscribed is only entered
// once the registry has confirmed; a registry failure rolls the local
// subscription back so no orphan endpoint keeps receiving pushes.
func (pm *PushManager) Subscribe(ctx context.Context) error {
	if pm.State() == PushSubscribed {
		return nil
	}

	d, err := pm.transport.Create(ctx)
	if err != nil {
		return fmt.Errorf("create push subscription: %w", err)
	}
	if d.ClientID == "" {
		d.ClientID = uuid.NewString()
	}

	if err := pm.registry.Register(ctx, *d); err != nil {
		if dropErr := pm.transport.Drop(ctx, d.Endpoint); dropErr != nil {
			logrus.WithError(dropErr).Warn("could not roll back local push subscription")
		}
		return fmt.Errorf("register push subscription: %w", err)
	}

	pm.mu.Lock()
	pm.state = PushSubscribed
	pm.descriptor = d
	pm.mu.Unlock()
	return nil
}

// Unsubscribe removes the server-side descriptor, then the local
// subscription. A registry failure keeps the machine Subscribed.
func (pm *PushManager) Unsubscribe(ctx context.Context) error {
	pm.mu.Lock()
	d := pm.descriptor
	pm.mu.Unlock()
	if d == nil {
		return nil
	}

	if err := pm.registry.Unregister(ctx, d.Endpoint); err != nil {
		return fmt.Errorf("unregister push subscription: %w", err)
	}
	if err := pm.transport.Drop(ctx, d.Endpoint); err != nil {
		// Server side is gone; the local leftover is harmless but noted.
		logrus.WithError(err).Warn("could not drop local push subscription")
	}

	pm.mu.Lock()
	pm.state = PushUnsubscribed
	pm.descriptor = nil
	pm.mu.Unlock()
	return nil
}
