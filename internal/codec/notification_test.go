package codec

import (
	"testing"

	"ledger/internal/schema"
)

func TestNotificationEncodeDecode(t *testing.T) {
	orig := schema.Notification{
		Type:          schema.EventRepay,
		Seq:           42,
		Slot:          157680000,
		Timestamp:     1700000000,
		Amount:        400_000_000_000,
		Interest:      52_000_000_000,
		Total:         452_000_000_000,
		Balance:       948_000_000_000,
		BankBalance:   5_052_000_000_000,
		TotalUsers:    3,
		IsOperational: true,
	}
	orig.Actor[0] = 7
	orig.Actor[31] = 9
	orig.Counterparty[5] = 1

	encoded := EncodeNotification(nil, orig)
	if len(encoded) != NotificationPayloadSize {
		t.Fatalf("payload size mismatch: got %d want %d", len(encoded), NotificationPayloadSize)
	}
	decoded, ok := DecodeNotification(encoded)
	if !ok {
		t.Fatal("decode failed")
	}
	if decoded != orig {
		t.Fatalf("notification mismatch: got %+v want %+v", decoded, orig)
	}
}

func TestDecodeNotificationShortPayload(t *testing.T) {
	if _, ok := DecodeNotification(make([]byte, NotificationPayloadSize-1)); ok {
		t.Fatal("expected short payload to be rejected")
	}
}

func TestHeaderFor(t *testing.T) {
	n := schema.Notification{Type: schema.EventStake, Seq: 9, Slot: 1234, Timestamp: 1700000000}
	h := HeaderFor(n, 3, 1700000000500000000)
	want := schema.EventHeader{
		Type:    schema.EventStake,
		Version: schema.SchemaVersion,
		Source:  3,
		Seq:     9,
		TsEvent: 1700000000000000000,
		TsRecv:  1700000000500000000,
		TraceID: 1234,
	}
	if h != want {
		t.Fatalf("header mismatch: got %+v want %+v", h, want)
	}
}
