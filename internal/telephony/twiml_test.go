package telephony

import (
	"strings"
	"testing"
)

func TestStreamResponseRender(t *testing.T) {
	doc := StreamResponse("wss://example.com/ws/media", map[string]string{"workflowId": "wf-1"})

	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)

	for _, want := range []string{
		"<?xml",
		"<Connect>",
		`<Stream url="wss://example.com/ws/media">`,
		`<Parameter name="workflowId" value="wf-1">`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("rendered twiml missing %q:\n%s", want, s)
		}
	}
}

func TestDialRender(t *testing.T) {
	doc := Response{Dial: &Dial{
		Timeout:        25,
		Action:         "https://example.com/telephony/dial-status",
		AnswerOnBridge: true,
		Numbers:        []string{"+15550100"},
		Clients:        []string{"client:dana"},
	}}

	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)

	for _, want := range []string{
		`timeout="25"`,
		`answerOnBridge="true"`,
		"<Number>+15550100</Number>",
		"<Client>client:dana</Client>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("rendered twiml missing %q:\n%s", want, s)
		}
	}
}

func TestVoicemailRender(t *testing.T) {
	doc := Response{
		Say:    &Say{Text: "Please leave a message."},
		Record: &Record{MaxLength: 180, PlayBeep: true},
	}

	out, err := doc.Render()
	if err != nil {
		t.Fatal(err)
	}
	s := string(out)

	if !strings.Contains(s, "<Say>Please leave a message.</Say>") {
		t.Errorf("missing Say verb:\n%s", s)
	}
	if !strings.Contains(s, `maxLength="180"`) {
		t.Errorf("missing Record maxLength:\n%s", s)
	}
}
