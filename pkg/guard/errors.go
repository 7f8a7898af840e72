package guard

import "errors"

var (
	// ErrInvalidEvent indicates that an event does not satisfy protocol invariants.
	ErrInvalidEvent = errors.New("editguard: invalid event")
	// ErrInvalidSubscription indicates that a subscription configuration is invalid.
	ErrInvalidSubscription = errors.New("editguard: invalid subscription")
	// ErrSubscriptionClosed indicates that a subscription is no longer active.
	ErrSubscriptionClosed = errors.New("editguard: subscription closed")
	// ErrEventDropped indicates a non-blocking backpressure drop.
	ErrEventDropped = errors.New("editguard: event dropped due to backpressure")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("editguard: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("editguard: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("editguard: module already registered")
	// ErrDriverAlreadyRegistered indicates duplicate driver registration.
	ErrDriverAlreadyRegistered = errors.New("editguard: driver already registered")
	// ErrInvalidOutboundRequest indicates a malformed outbound operation request.
	ErrInvalidOutboundRequest = errors.New("editguard: invalid outbound request")
	// ErrOutboundUnsupported indicates an outbound operation the platform cannot perform.
	ErrOutboundUnsupported = errors.New("editguard: outbound operation unsupported")
	// ErrInvalidRecord indicates that a ledger record is missing identity fields.
	ErrInvalidRecord = errors.New("editguard: invalid ledger record")
)
