package fusion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kagwave/vision-middleware/bus"
	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/message"
	"github.com/kagwave/vision-middleware/pkg/timestamp"
)

// Handler adapts the coordinator to the bus. It decodes each partial
// envelope, cross-checks it against its subject, runs it through the
// join, and publishes the combined event when the pair completes.
//
// The returned error's classification drives the bus disposition: nil
// acks, invalid terminates, transient naks for redelivery.
type Handler struct {
	coordinator *Coordinator
	validator   *message.Validator
	source      string
	logger      *slog.Logger
}

// NewHandler creates a bus handler over the coordinator. Source names this
// service in the envelopes it emits.
func NewHandler(coordinator *Coordinator, source string, logger *slog.Logger) (*Handler, error) {
	if coordinator == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "fusion", "NewHandler", "coordinator cannot be nil")
	}
	if source == "" {
		source = "vision-middleware"
	}
	if logger == nil {
		logger = slog.Default()
	}

	validator, err := message.NewValidator()
	if err != nil {
		return nil, errors.WrapFatal(err, "fusion", "NewHandler", "compile payload schemas")
	}

	return &Handler{
		coordinator: coordinator,
		validator:   validator,
		source:      source,
		logger:      logger.With("component", "fusion.handler"),
	}, nil
}

// Handle processes one delivery end to end.
func (h *Handler) Handle(ctx context.Context, d *bus.Delivery) error {
	partial, stream, err := h.decode(d)
	if err != nil {
		return err
	}

	outcome, err := h.coordinator.Submit(ctx, partial)
	if err != nil {
		return err
	}

	if outcome.Kind != OutcomeCombined {
		return nil
	}

	return h.publishCombined(ctx, d, stream, outcome.Combined)
}

// decode turns a delivery into a validated Partial. Every failure here is
// invalid: the bytes will not improve on redelivery.
func (h *Handler) decode(d *bus.Delivery) (Partial, string, error) {
	token, subjectStream, err := bus.ParsePartialSubject(d.Subject)
	if err != nil {
		return Partial{}, "", err
	}

	variant, err := ParseVariant(token)
	if err != nil {
		return Partial{}, "", err
	}

	var env message.Envelope
	if err := json.Unmarshal(d.Data, &env); err != nil {
		return Partial{}, "", err
	}

	wantType := message.PoseTagType
	if variant == VariantMask {
		wantType = message.SegmentationMaskType
	}
	if !env.Type().Equal(wantType) {
		return Partial{}, "", errors.WrapInvalid(errors.ErrInvalidData, "Handler", "decode",
			fmt.Sprintf("subject %s carries %s, want %s", d.Subject, env.Type(), wantType))
	}

	payloadData, err := env.Payload().MarshalJSON()
	if err != nil {
		return Partial{}, "", errors.WrapInvalid(err, "Handler", "decode", "marshal payload")
	}

	if err := h.validator.Validate(env.Type(), payloadData); err != nil {
		return Partial{}, "", err
	}

	var key Key
	var observedAt int64
	switch p := env.Payload().(type) {
	case *message.PoseTagPayload:
		key = Key{Stream: p.StreamID, Frame: p.FrameNumber, Instance: p.InstanceID}
		observedAt = p.ObservedAt
	case *message.SegmentationMaskPayload:
		key = Key{Stream: p.StreamID, Frame: p.FrameNumber, Instance: p.InstanceID}
		observedAt = p.ObservedAt
	default:
		return Partial{}, "", errors.WrapInvalid(errors.ErrInvalidData, "Handler", "decode",
			fmt.Sprintf("unexpected payload type %T", env.Payload()))
	}

	// Subject routing and payload must agree on the stream
	if key.Stream != subjectStream {
		return Partial{}, "", errors.WrapInvalid(errors.ErrInvalidKey, "Handler", "decode",
			fmt.Sprintf("subject stream %q does not match payload stream %q", subjectStream, key.Stream))
	}

	// Producers that do not stamp observed_at fall back to the envelope's
	// creation time
	if observedAt == 0 {
		if createdAt := env.Meta().CreatedAt(); !createdAt.IsZero() {
			observedAt = timestamp.ToUnixMs(createdAt)
		}
	}

	return Partial{
		Key:        key,
		Variant:    variant,
		Payload:    payloadData,
		ObservedAt: observedAt,
	}, subjectStream, nil
}

// publishCombined emits the completed pair. A publish failure is
// transient; the delivery naks and the redelivered partial resolves as a
// duplicate.
func (h *Handler) publishCombined(ctx context.Context, d *bus.Delivery, stream string, ev *CombinedEvent) error {
	env := message.NewEnvelope(message.CombinedEventType, ev.Payload(), h.source)

	data, err := env.MarshalJSON()
	if err != nil {
		return errors.WrapFatal(err, "Handler", "publishCombined", "marshal combined envelope")
	}

	subject := bus.FusedSubject(stream)
	if err := d.Publish(ctx, subject, data); err != nil {
		return errors.WrapTransient(err, "Handler", "publishCombined",
			fmt.Sprintf("publish combined event for %s", ev.Key))
	}

	h.logger.Debug("combined event published",
		"key", ev.Key.String(),
		"subject", subject,
		"joinGapMs", ev.JoinGapMs)
	return nil
}
