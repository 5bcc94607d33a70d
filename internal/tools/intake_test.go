package tools

import (
	"testing"

	"github.com/voicebridge/voicebridge/internal/types"
)

func TestNextNeededFollowsPriority(t *testing.T) {
	state := &IntakeState{Required: []Slot{SlotReason, SlotEmail, SlotName}}
	profile := &types.CallerProfile{}

	slot, ok := state.NextNeeded(profile)
	if !ok || slot != SlotName {
		t.Fatalf("expected name first, got %q (ok=%v)", slot, ok)
	}

	profile.Name = "Alex"
	slot, ok = state.NextNeeded(profile)
	if !ok || slot != SlotEmail {
		t.Fatalf("expected email second, got %q (ok=%v)", slot, ok)
	}

	profile.Email = "alex@example.com"
	slot, ok = state.NextNeeded(profile)
	if !ok || slot != SlotReason {
		t.Fatalf("expected reason last, got %q (ok=%v)", slot, ok)
	}

	profile.Reason = "billing question"
	if slot, ok = state.NextNeeded(profile); ok {
		t.Fatalf("expected intake complete, got %q", slot)
	}
}

func TestNextNeededIgnoresUnrequiredSlots(t *testing.T) {
	state := &IntakeState{Required: []Slot{SlotOrderID}}
	profile := &types.CallerProfile{Name: "Alex"}

	slot, ok := state.NextNeeded(profile)
	if !ok || slot != SlotOrderID {
		t.Fatalf("expected order_id, got %q (ok=%v)", slot, ok)
	}
}

func TestForceCallbackModeResetsConfirmations(t *testing.T) {
	state := &IntakeState{Required: []Slot{SlotReason}}
	profile := &types.CallerProfile{
		Name:           "Alex",
		NameConfirmed:  true,
		Phone:          "+15550100",
		PhoneConfirmed: true,
	}

	state.ForceCallbackMode(profile)

	if profile.NameConfirmed || profile.PhoneConfirmed {
		t.Error("confirmation flags must be reset when entering callback mode")
	}
	if profile.PendingName != "Alex" || profile.PendingPhone != "+15550100" {
		t.Error("known values must be staged for re-confirmation")
	}

	// Known but unconfirmed values still need the read-back round trip
	if slot, ok := state.NextNeeded(profile); !ok || slot != SlotName {
		t.Fatalf("expected name to need re-confirmation, got %q (ok=%v)", slot, ok)
	}
}

func TestCallbackReady(t *testing.T) {
	state := &IntakeState{}
	profile := &types.CallerProfile{}
	state.ForceCallbackMode(profile)

	if state.CallbackReady(profile) {
		t.Fatal("callback must not be ready with nothing confirmed")
	}

	profile.Name = "Alex"
	profile.NameConfirmed = true
	profile.Phone = "+15550100"
	profile.PhoneConfirmed = true
	if state.CallbackReady(profile) {
		t.Fatal("callback must not be ready without a message")
	}

	state.Message = "please call back about my order"
	state.MessageCollected = true
	if !state.CallbackReady(profile) {
		t.Fatal("callback should be ready with name, number and message")
	}
}

func TestCallbackReadyRequiresForcedMode(t *testing.T) {
	state := &IntakeState{Message: "hi", MessageCollected: true}
	profile := &types.CallerProfile{
		Name: "Alex", NameConfirmed: true,
		Phone: "+15550100", PhoneConfirmed: true,
	}
	if state.CallbackReady(profile) {
		t.Fatal("callback readiness only applies in callback mode")
	}
}

func TestCollected(t *testing.T) {
	state := &IntakeState{Message: "call me back"}
	profile := &types.CallerProfile{
		Name:   "Alex",
		Email:  "alex@example.com",
		Reason: "refund",
	}

	got := state.Collected(profile)
	if got["name"] != "Alex" || got["email"] != "alex@example.com" || got["reason"] != "refund" {
		t.Errorf("unexpected collected map: %v", got)
	}
	if got["message"] != "call me back" {
		t.Errorf("message missing from collected map: %v", got)
	}
	if _, ok := got["phone"]; ok {
		t.Error("empty slots must be omitted")
	}
}
