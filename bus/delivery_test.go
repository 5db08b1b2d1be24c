package bus

import (
	"context"
	"testing"
)

func TestDelivery_DisposedOnce(t *testing.T) {
	var acks, naks, terms int
	d := &Delivery{
		Subject: "vision.partial.pose.v1",
		Data:    []byte(`{}`),
		ackFn:   func() error { acks++; return nil },
		nakFn:   func() error { naks++; return nil },
		termFn:  func() error { terms++; return nil },
	}

	if err := d.ack(); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// Every later disposition is a no-op
	if err := d.ack(); err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if err := d.nak(); err != nil {
		t.Fatalf("nak after ack: %v", err)
	}
	if err := d.term(); err != nil {
		t.Fatalf("term after ack: %v", err)
	}

	if acks != 1 || naks != 0 || terms != 0 {
		t.Errorf("hooks fired acks=%d naks=%d terms=%d, want 1/0/0", acks, naks, terms)
	}
}

func TestDelivery_NakFirst(t *testing.T) {
	var acks, naks int
	d := &Delivery{
		ackFn: func() error { acks++; return nil },
		nakFn: func() error { naks++; return nil },
	}

	if err := d.nak(); err != nil {
		t.Fatalf("nak: %v", err)
	}
	if err := d.ack(); err != nil {
		t.Fatalf("ack after nak: %v", err)
	}

	if naks != 1 || acks != 0 {
		t.Errorf("hooks fired naks=%d acks=%d, want 1/0", naks, acks)
	}
}

func TestDelivery_NilHooksAreSafe(t *testing.T) {
	d := &Delivery{Subject: "vision.partial.mask.v1"}

	if err := d.ack(); err != nil {
		t.Errorf("ack with nil hook: %v", err)
	}
	if err := d.nak(); err != nil {
		t.Errorf("nak with nil hook: %v", err)
	}
	if err := d.term(); err != nil {
		t.Errorf("term with nil hook: %v", err)
	}
}

func TestNopPublish(t *testing.T) {
	publish := NopPublish()
	if err := publish(context.Background(), "vision.fused.v1", []byte(`{}`)); err != nil {
		t.Errorf("nop publish returned %v", err)
	}
}
