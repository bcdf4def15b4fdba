package proto

import (
	"errors"
	"testing"
)

func TestDecodeClientDispatchesByKind(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"player_update","position":{"x":1,"y":2,"z":3},"rotationY":1.5,"timestamp":12345}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	update, ok := msg.(PlayerUpdate)
	if !ok {
		t.Fatalf("decoded %T, want PlayerUpdate", msg)
	}
	if update.Position.X != 1 || update.Position.Y != 2 || update.Position.Z != 3 {
		t.Fatalf("position mismatch: %+v", update.Position)
	}
	if update.Timestamp != 12345 {
		t.Fatalf("timestamp %d, want 12345", update.Timestamp)
	}
}

func TestDecodeClientRejectsUnknownKind(t *testing.T) {
	_, err := DecodeClient([]byte(`{"type":"grant_admin"}`))
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeClientRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeClient([]byte(`{"type":"heartbeat"`)); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestDecodeClientRejectsMissingWalnutID(t *testing.T) {
	if _, err := DecodeClient([]byte(`{"type":"walnut_found","finderId":"p1"}`)); err == nil {
		t.Fatal("expected error for missing walnutId")
	}
	if _, err := DecodeClient([]byte(`{"type":"walnut_hidden","ownerId":"p1"}`)); err == nil {
		t.Fatal("expected error for missing walnutId")
	}
}

func TestDecodeClientCoversAllClientKinds(t *testing.T) {
	frames := map[string]string{
		KindPlayerUpdate: `{"type":"player_update","position":{"x":0,"y":1,"z":0},"timestamp":1}`,
		KindHeartbeat:    `{"type":"heartbeat","timestamp":1}`,
		KindWalnutHidden: `{"type":"walnut_hidden","walnutId":"w1","ownerId":"p1","walnutType":"buried","position":{"x":5,"y":0,"z":5}}`,
		KindWalnutFound:  `{"type":"walnut_found","walnutId":"w1","finderId":"p2"}`,
		KindChatMessage:  `{"type":"chat_message","message":"hi"}`,
		KindPlayerEmote:  `{"type":"player_emote","emote":"wave"}`,
	}
	for kind, frame := range frames {
		if _, err := DecodeClient([]byte(frame)); err != nil {
			t.Fatalf("decode %s: %v", kind, err)
		}
	}
}
