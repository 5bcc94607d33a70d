package tools

import (
	"encoding/json"

	"github.com/voicebridge/voicebridge/internal/speech"
)

func schema(s string) json.RawMessage { return json.RawMessage(s) }

// Definitions returns the tool surface advertised to the speech backend.
// Booking tools are only included when booking is wired for the session.
func Definitions(withBooking bool) []speech.ToolDef {
	defs := []speech.ToolDef{
		{
			Name:        ToolRequestHumanTransfer,
			Description: "Transfer the caller to a human. Use when the caller asks for a person or the issue is beyond your scope.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"reason": {"type": "string", "description": "Short reason for the transfer"}
				},
				"required": ["reason"]
			}`),
		},
		{
			Name:        ToolEndCall,
			Description: "End the call. Call this when the conversation is finished, then say a short goodbye.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"reason": {"type": "string", "description": "Why the call is ending"}
				}
			}`),
		},
		{
			Name:        ToolUpdateCustomerInfo,
			Description: "Record caller details as they are mentioned. Call with only the fields you learned.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"email": {"type": "string"},
					"phone": {"type": "string"},
					"orderId": {"type": "string"},
					"reason": {"type": "string", "description": "The caller's reason for calling"},
					"message": {"type": "string", "description": "Message the caller wants passed on"}
				}
			}`),
		},
		{
			Name:        ToolConfirmName,
			Description: "Call after reading the caller's name back to them. confirmed=true commits it, false discards it.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"confirmed": {"type": "boolean"}
				},
				"required": ["confirmed"]
			}`),
		},
		{
			Name:        ToolConfirmNumber,
			Description: "Call after reading the caller's phone number back to them. confirmed=true commits it, false discards it.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"confirmed": {"type": "boolean"}
				},
				"required": ["confirmed"]
			}`),
		},
		{
			Name:        ToolConfirmEmail,
			Description: "Call after reading the caller's email address back to them. confirmed=true commits it, false discards it.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"confirmed": {"type": "boolean"}
				},
				"required": ["confirmed"]
			}`),
		},
		{
			Name:        ToolNormalizeEmail,
			Description: "Convert a spelled-out email address into a normal one, e.g. 'john dot doe at example dot com'. Returns the address to read back.",
			Parameters: schema(`{
				"type": "object",
				"properties": {
					"spoken": {"type": "string", "description": "The address exactly as the caller spelled it"}
				},
				"required": ["spoken"]
			}`),
		},
	}

	if withBooking {
		defs = append(defs,
			speech.ToolDef{
				Name:        ToolCheckAvailability,
				Description: "Check whether an appointment slot is free before offering it to the caller.",
				Parameters: schema(`{
					"type": "object",
					"properties": {
						"start": {"type": "string", "description": "Slot start in RFC 3339 format"},
						"durationMinutes": {"type": "integer"}
					},
					"required": ["start"]
				}`),
			},
			speech.ToolDef{
				Name:        ToolBookAppointment,
				Description: "Book an appointment. Requires a confirmed email address; confirm it first with confirm_email.",
				Parameters: schema(`{
					"type": "object",
					"properties": {
						"start": {"type": "string", "description": "Appointment start in RFC 3339 format"},
						"durationMinutes": {"type": "integer"},
						"notes": {"type": "string"},
						"emailOnly": {"type": "boolean", "description": "Skip the calendar and only send an email confirmation"}
					},
					"required": ["start"]
				}`),
			},
		)
	}

	return defs
}
