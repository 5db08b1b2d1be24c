package message

import (
	"fmt"
	"sync"

	"github.com/kagwave/vision-middleware/errors"
)

// PayloadFactory creates an empty payload instance for a message type.
type PayloadFactory func() Payload

// PayloadRegistration holds the factory and metadata for a payload type.
type PayloadRegistration struct {
	Factory     PayloadFactory `json:"-"`           // Factory function (not serializable)
	Type        Type           `json:"type"`        // Message type this payload implements
	Description string         `json:"description"` // Human-readable description
	Example     map[string]any `json:"example"`     // Optional example payload data
}

// PayloadRegistry manages payload factories for message deserialization.
// It provides thread-safe registration and lookup, enabling
// Envelope.UnmarshalJSON to recreate typed payloads from JSON.
type PayloadRegistry struct {
	registrations map[string]*PayloadRegistration // keyed by Type.Key()
	mu            sync.RWMutex
}

// NewPayloadRegistry creates a new empty payload registry.
func NewPayloadRegistry() *PayloadRegistry {
	return &PayloadRegistry{
		registrations: make(map[string]*PayloadRegistration),
	}
}

// Register registers a payload factory with validation.
// Returns an error if validation fails or the type is already registered.
func (pr *PayloadRegistry) Register(registration *PayloadRegistration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PayloadRegistry", "Register", "registration validation")
	}

	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PayloadRegistry", "Register", "factory function validation")
	}

	if !registration.Type.IsValid() {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "PayloadRegistry", "Register", "type validation")
	}

	msgType := registration.Type.Key()

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if _, exists := pr.registrations[msgType]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("payload type '%s' is already registered", msgType),
			"PayloadRegistry",
			"Register",
			"duplicate payload check",
		)
	}

	pr.registrations[msgType] = registration
	return nil
}

// Create creates a payload instance using the registered factory.
// Returns nil if the message type is not registered, which lets
// Envelope.UnmarshalJSON report unknown types to the caller.
func (pr *PayloadRegistry) Create(msgType Type) Payload {
	pr.mu.RLock()
	registration, exists := pr.registrations[msgType.Key()]
	pr.mu.RUnlock()

	if !exists {
		return nil
	}

	return registration.Factory()
}

// Get returns the payload registration for a specific message type.
func (pr *PayloadRegistry) Get(msgType Type) (*PayloadRegistration, bool) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	registration, exists := pr.registrations[msgType.Key()]
	if !exists {
		return nil, false
	}

	// Return a copy so the caller cannot swap the factory out from under
	// concurrent deserialization
	return &PayloadRegistration{
		Type:        registration.Type,
		Description: registration.Description,
		Example:     registration.Example,
	}, true
}

// List returns all registered payload types keyed by dotted type string.
func (pr *PayloadRegistry) List() map[string]*PayloadRegistration {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	result := make(map[string]*PayloadRegistration, len(pr.registrations))
	for msgType, registration := range pr.registrations {
		result[msgType] = &PayloadRegistration{
			Type:        registration.Type,
			Description: registration.Description,
			Example:     registration.Example,
		}
	}

	return result
}

// defaultRegistry is the process-wide registry that payload types join via
// init(). Envelope.UnmarshalJSON consults it for factory lookup.
var defaultRegistry = NewPayloadRegistry()

// RegisterPayload registers a payload factory in the default registry.
func RegisterPayload(registration *PayloadRegistration) error {
	return defaultRegistry.Register(registration)
}

// CreatePayload creates a payload instance from the default registry.
// Returns nil if the message type is not registered.
func CreatePayload(msgType Type) Payload {
	return defaultRegistry.Create(msgType)
}

// ListPayloads returns all payload types in the default registry.
func ListPayloads() map[string]*PayloadRegistration {
	return defaultRegistry.List()
}
