// Package fusion joins pose tags and segmentation masks into combined
// detection events.
//
// # Overview
//
// Two producer fleets analyze the same video frames independently. One
// emits pose tags, the other segmentation masks, and neither coordinates
// with the other. The fusion package pairs the two sides by correlation
// key (stream, frame, instance) and emits exactly one combined event per
// completed pair, no matter how the arrivals interleave.
//
// # Protocol
//
// The Coordinator keeps at most one pending slot per correlation key in a
// slotstore.Store:
//
//   - First side to arrive creates the slot (atomic create-if-absent).
//   - The counterpart claims the slot with a revision-conditioned delete
//     and builds the combined event from both payloads.
//   - The same side arriving twice is a duplicate and mutates nothing.
//
// A KV revision can be deleted at most once, so the claim is the pair's
// single linearization point: when N submitters race on the same key,
// exactly one combines and the rest observe stored or duplicate. Lost
// races re-read and retry within a bounded number of rounds.
//
// Slots carry a TTL. A partial whose counterpart never arrives expires
// silently; there is no partial-timeout event.
//
// # Outcomes and Errors
//
// Submit returns one of three outcomes (stored, combined, duplicate) or a
// classified error:
//
//   - errors.IsInvalid: malformed key or undecodable slot. Redelivery
//     would fail identically, so the caller should terminate the message.
//   - errors.IsTransient: store unavailable or protocol rounds exhausted.
//     The submit mutated nothing irrevocably and is safe to redeliver.
//
// # Completion Cache
//
// After combining, the coordinator records the key in a local TTL cache.
// Duplicates arriving after completion short-circuit there instead of
// re-creating a slot that would only expire. The cache is an optimization
// for this process only; replicas that miss it still behave correctly.
//
// # Usage
//
//	store, err := slotstore.NewNATS(client, "vision_slots")
//	coord, err := fusion.NewCoordinator(store,
//	    fusion.WithCompletionCache(completed),
//	    fusion.WithMetrics(registry),
//	    fusion.WithLogger(logger),
//	)
//	outcome, err := coord.Submit(ctx, fusion.Partial{
//	    Key:     fusion.Key{Stream: "cam-front", Frame: 42, Instance: "person-3"},
//	    Variant: fusion.VariantPose,
//	    Payload: payload,
//	})
//	if outcome.Kind == fusion.OutcomeCombined {
//	    publish(outcome.Combined)
//	}
package fusion
