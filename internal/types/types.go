package types

import "time"

// CallDirection indicates which side initiated the call
type CallDirection string

const (
	DirectionInbound  CallDirection = "inbound"
	DirectionOutbound CallDirection = "outbound"
)

// PresenceState represents the readiness of a user's voice client
type PresenceState string

const (
	PresenceReady   PresenceState = "ready"
	PresenceBusy    PresenceState = "busy"
	PresenceOffline PresenceState = "offline"
)

// RingStrategy controls how multiple dial targets are attempted
type RingStrategy string

const (
	RingSequential   RingStrategy = "sequential"
	RingSimultaneous RingStrategy = "simultaneous"
)

// DayWindow is a single open interval within a day, minutes since midnight.
// Overnight windows (OpenMinute > CloseMinute) wrap into the next day.
type DayWindow struct {
	OpenMinute  int `json:"openMinute" yaml:"openMinute"`
	CloseMinute int `json:"closeMinute" yaml:"closeMinute"`
}

// Schedule is a weekly working-hours definition keyed by weekday
type Schedule struct {
	Timezone string                       `json:"timezone" yaml:"timezone"`
	Days     map[time.Weekday][]DayWindow `json:"days" yaml:"days"`
}

// User is a directory entry for an internal user who can receive calls
type User struct {
	ID               string    `json:"id" yaml:"id"`
	TenantID         string    `json:"tenantId" yaml:"tenantId"`
	Name             string    `json:"name" yaml:"name"`
	Email            string    `json:"email" yaml:"email"`
	ForwardingNumber string    `json:"forwardingNumber,omitempty" yaml:"forwardingNumber"`
	ClientIdentity   string    `json:"clientIdentity,omitempty" yaml:"clientIdentity"`
	CheckedIn        bool      `json:"checkedIn" yaml:"checkedIn"`
	Timezone         string    `json:"timezone,omitempty" yaml:"timezone"`
	Schedule         *Schedule `json:"schedule,omitempty" yaml:"schedule"`
}

// RingGroup is an ordered set of users dialed together or in turn
type RingGroup struct {
	ID        string       `json:"id" yaml:"id"`
	TenantID  string       `json:"tenantId" yaml:"tenantId"`
	Name      string       `json:"name" yaml:"name"`
	Strategy  RingStrategy `json:"strategy" yaml:"strategy"`
	MemberIDs []string     `json:"memberIds" yaml:"memberIds"`
}

// ForwardingPolicy holds the tenant flags that gate target resolution
type ForwardingPolicy struct {
	OnlyCheckedIn              bool     `json:"onlyCheckedIn" yaml:"onlyCheckedIn"`
	RespectWorkingHours        bool     `json:"respectWorkingHours" yaml:"respectWorkingHours"`
	PrioritizeWebPhone         bool     `json:"prioritizeWebPhone" yaml:"prioritizeWebPhone"`
	AllowExternal              bool     `json:"allowExternal" yaml:"allowExternal"`
	RestrictExternalForwarding bool     `json:"restrictExternalForwarding" yaml:"restrictExternalForwarding"`
	ExternalAllowList          []string `json:"externalAllowList,omitempty" yaml:"externalAllowList"`
}

// TenantSnapshot is the tenant state a session needs, captured at attach
type TenantSnapshot struct {
	ID                 string           `json:"id" yaml:"id"`
	Name               string           `json:"name" yaml:"name"`
	Timezone           string           `json:"timezone" yaml:"timezone"`
	Schedule           *Schedule        `json:"schedule,omitempty" yaml:"schedule"`
	Policy             ForwardingPolicy `json:"policy" yaml:"policy"`
	VoicemailEnabled   bool             `json:"voicemailEnabled" yaml:"voicemailEnabled"`
	VoicemailGreeting  string           `json:"voicemailGreeting,omitempty" yaml:"voicemailGreeting"`
	MaxBookingDuration time.Duration    `json:"maxBookingDuration,omitempty" yaml:"maxBookingDuration"`
}

// WorkflowSnapshot is the conversational configuration for one workflow
type WorkflowSnapshot struct {
	ID                string        `json:"id" yaml:"id"`
	TenantID          string        `json:"tenantId" yaml:"tenantId"`
	Instructions      string        `json:"instructions" yaml:"instructions"`
	Greeting          string        `json:"greeting" yaml:"greeting"`
	Voice             string        `json:"voice" yaml:"voice"`
	DocumentIDs       []string      `json:"documentIds,omitempty" yaml:"documentIds"`
	Timezone          string        `json:"timezone,omitempty" yaml:"timezone"`
	RequiredSlots     []string      `json:"requiredSlots,omitempty" yaml:"requiredSlots"`
	AssignedAgentID   string        `json:"assignedAgentId,omitempty" yaml:"assignedAgentId"`
	ForwardFirst      bool          `json:"forwardFirst" yaml:"forwardFirst"`
	ForwardNumber     string        `json:"forwardNumber,omitempty" yaml:"forwardNumber"`
	ForwardUserID     string        `json:"forwardUserId,omitempty" yaml:"forwardUserId"`
	ForwardGroupID    string        `json:"forwardGroupId,omitempty" yaml:"forwardGroupId"`
	DisableIdleHangup bool          `json:"disableIdleHangup" yaml:"disableIdleHangup"`
	BookingDuration   time.Duration `json:"bookingDuration,omitempty" yaml:"bookingDuration"`
}

// AgentSnapshot is the assigned human agent attached to a workflow, if any
type AgentSnapshot struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Timezone string `json:"timezone,omitempty"`
}
