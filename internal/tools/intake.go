package tools

import "github.com/voicebridge/voicebridge/internal/types"

// Slot is one discrete piece of caller information to collect
type Slot string

const (
	SlotName    Slot = "name"
	SlotEmail   Slot = "email"
	SlotPhone   Slot = "phone"
	SlotOrderID Slot = "order_id"
	SlotReason  Slot = "reason"
)

// slotPriority is the fixed ask-next order: identity first, then contact
// details, then context.
var slotPriority = []Slot{SlotName, SlotEmail, SlotPhone, SlotOrderID, SlotReason}

// IntakeState is the sequential slot-filling state for one session
type IntakeState struct {
	Required []Slot

	// Forced marks callback-intake mode: no agent was available, the
	// conversation now collects a callback request. Values gathered here
	// need explicit read-back confirmation even if previously known.
	Forced bool

	Message          string
	MessageCollected bool
}

// ForceCallbackMode arms callback intake. Confirmation flags on the
// profile are reset: the fallback is a trust boundary, previously
// confirmed values must be re-confirmed.
func (s *IntakeState) ForceCallbackMode(profile *types.CallerProfile) {
	s.Forced = true
	s.Required = []Slot{SlotName, SlotPhone}
	profile.NameConfirmed = false
	profile.PhoneConfirmed = false
	if profile.Name != "" {
		profile.PendingName = profile.Name
	}
	if profile.Phone != "" {
		profile.PendingPhone = profile.Phone
	}
}

// satisfied reports whether a slot needs no further asking
func (s *IntakeState) satisfied(slot Slot, p *types.CallerProfile) bool {
	switch slot {
	case SlotName:
		if s.Forced {
			return p.NameConfirmed
		}
		return p.Name != ""
	case SlotEmail:
		return p.Email != ""
	case SlotPhone:
		if s.Forced {
			return p.PhoneConfirmed
		}
		return p.Phone != ""
	case SlotOrderID:
		return p.OrderID != ""
	case SlotReason:
		return p.Reason != ""
	}
	return true
}

// NextNeeded returns the single next slot to request, by fixed priority.
// ok is false when nothing remains.
func (s *IntakeState) NextNeeded(p *types.CallerProfile) (Slot, bool) {
	required := make(map[Slot]bool, len(s.Required))
	for _, slot := range s.Required {
		required[slot] = true
	}

	for _, slot := range slotPriority {
		if !required[slot] {
			continue
		}
		if !s.satisfied(slot, p) {
			return slot, true
		}
	}
	return "", false
}

// CallbackReady reports whether a callback request can be created: all
// three of name, number and message explicitly confirmed/collected.
func (s *IntakeState) CallbackReady(p *types.CallerProfile) bool {
	return s.Forced && p.NameConfirmed && p.PhoneConfirmed && s.MessageCollected
}

// Collected returns the committed slot values for the call record
func (s *IntakeState) Collected(p *types.CallerProfile) map[string]string {
	out := make(map[string]string)
	if p.Name != "" {
		out[string(SlotName)] = p.Name
	}
	if p.Email != "" {
		out[string(SlotEmail)] = p.Email
	}
	if p.Phone != "" {
		out[string(SlotPhone)] = p.Phone
	}
	if p.OrderID != "" {
		out[string(SlotOrderID)] = p.OrderID
	}
	if p.Reason != "" {
		out[string(SlotReason)] = p.Reason
	}
	if s.Message != "" {
		out["message"] = s.Message
	}
	return out
}
