package types

import "time"

// CallStatus mirrors the terminal/non-terminal statuses the telephony
// gateway reports for a call leg
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether the status ends the call leg
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusCanceled:
		return true
	}
	return false
}

// CallMetadata carries the immutable facts about the call itself
type CallMetadata struct {
	CallID    string        `json:"callId"`
	StreamID  string        `json:"streamId"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Direction CallDirection `json:"direction"`
	Locale    string        `json:"locale,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
}

// CallerProfile is what the conversation has learned about the caller.
// Pending* fields hold spoken candidates awaiting explicit confirmation.
type CallerProfile struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	Reason         string `json:"reason,omitempty"`
	NameConfirmed  bool   `json:"nameConfirmed"`
	EmailConfirmed bool   `json:"emailConfirmed"`
	PhoneConfirmed bool   `json:"phoneConfirmed"`
	PendingName    string `json:"-"`
	PendingEmail   string `json:"-"`
	PendingPhone   string `json:"-"`
}

// DialTargetKind discriminates the destination type of a dial target
type DialTargetKind string

const (
	TargetExternalNumber DialTargetKind = "external_number"
	TargetUserNumber     DialTargetKind = "user_number"
	TargetWebPhone       DialTargetKind = "web_phone"
)

// DialTarget is one destination the routing layer may attempt
type DialTarget struct {
	Kind           DialTargetKind `json:"kind"`
	Number         string         `json:"number,omitempty"`
	ClientIdentity string         `json:"clientIdentity,omitempty"`
	UserID         string         `json:"userId,omitempty"`
}

// DialAttempt is one entry in a routing record's append-only attempt log
type DialAttempt struct {
	At      time.Time  `json:"at"`
	Numbers []string   `json:"numbers"`
	Clients []string   `json:"clients"`
	Status  CallStatus `json:"status,omitempty"`
}

// RoutingRecord tracks an in-flight transfer or pre-AI forward.
// Once a leg is bridged the record is immutable.
type RoutingRecord struct {
	Strategy  RingStrategy  `json:"strategy"`
	Targets   []DialTarget  `json:"targets"`
	NextIndex int           `json:"nextIndex"`
	Attempts  []DialAttempt `json:"attempts"`
	Bridged   bool          `json:"bridged"`
	Reason    string        `json:"reason,omitempty"`
}

// Exhausted reports whether every sequential target has been attempted
func (r *RoutingRecord) Exhausted() bool {
	return r.NextIndex >= len(r.Targets)
}

// CallOutcome classifies how a session ended, for the call record
type CallOutcome string

const (
	OutcomeCompleted    CallOutcome = "completed"
	OutcomeTransferred  CallOutcome = "transferred"
	OutcomeVoicemail    CallOutcome = "voicemail"
	OutcomeIdleTimeout  CallOutcome = "idle_timeout"
	OutcomeRemoteClose  CallOutcome = "remote_close"
	OutcomeBackendError CallOutcome = "backend_error"
)

// CallRecord is the durable summary persisted when a session ends
type CallRecord struct {
	CallID         string            `json:"callId" dynamodbav:"CallID"`
	DateKey        string            `json:"dateKey" dynamodbav:"DateKey"`
	TenantID       string            `json:"tenantId" dynamodbav:"TenantID"`
	WorkflowID     string            `json:"workflowId,omitempty" dynamodbav:"WorkflowID"`
	From           string            `json:"from" dynamodbav:"From"`
	To             string            `json:"to" dynamodbav:"To"`
	Direction      CallDirection     `json:"direction" dynamodbav:"Direction"`
	StartedAt      time.Time         `json:"startedAt" dynamodbav:"StartedAt"`
	EndedAt        time.Time         `json:"endedAt" dynamodbav:"EndedAt"`
	Outcome        CallOutcome       `json:"outcome" dynamodbav:"Outcome"`
	TransferReason string            `json:"transferReason,omitempty" dynamodbav:"TransferReason"`
	DialAttempts   []DialAttempt     `json:"dialAttempts,omitempty" dynamodbav:"DialAttempts"`
	SilencePrompts int               `json:"silencePrompts" dynamodbav:"SilencePrompts"`
	CollectedSlots map[string]string `json:"collectedSlots,omitempty" dynamodbav:"CollectedSlots"`
	Transcript     []TranscriptEntry `json:"transcript,omitempty" dynamodbav:"Transcript"`
}

// TranscriptEntry is one finalized utterance from either side
type TranscriptEntry struct {
	Role string    `json:"role" dynamodbav:"Role"` // "caller" or "assistant"
	Text string    `json:"text" dynamodbav:"Text"`
	At   time.Time `json:"at" dynamodbav:"At"`
}
