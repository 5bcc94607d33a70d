package telephony

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BridgeRequest describes one dial attempt against the live call
type BridgeRequest struct {
	Numbers        []string
	Clients        []string
	CallerID       string
	Timeout        time.Duration
	ActionURL      string
	StatusCallback string
}

// Gateway is the telephony provider control surface for a live call
type Gateway interface {
	Bridge(ctx context.Context, callSID string, req BridgeRequest) error
	Voicemail(ctx context.Context, callSID, greeting, actionURL string) error
	Hangup(ctx context.Context, callSID string) error
}

// RESTGateway drives the provider's call REST API. Live calls are
// modified by POSTing replacement TwiML to the call resource.
type RESTGateway struct {
	baseURL   string
	accountID string
	authToken string
	client    *http.Client
	logger    zerolog.Logger
}

// NewRESTGateway creates a gateway client
func NewRESTGateway(baseURL, accountID, authToken string, logger zerolog.Logger) *RESTGateway {
	return &RESTGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		authToken: authToken,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Bridge redirects the live call into a Dial verb ringing the targets
func (g *RESTGateway) Bridge(ctx context.Context, callSID string, req BridgeRequest) error {
	timeout := int(req.Timeout.Seconds())
	if timeout <= 0 {
		timeout = 25
	}

	doc := Response{Dial: &Dial{
		Timeout:        timeout,
		Action:         req.ActionURL,
		CallerID:       req.CallerID,
		AnswerOnBridge: true,
		Numbers:        req.Numbers,
		Clients:        req.Clients,
	}}
	twiml, err := doc.Render()
	if err != nil {
		return err
	}

	form := url.Values{"Twiml": {string(twiml)}}
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
	}

	g.logger.Info().
		Str("call_sid", callSID).
		Strs("numbers", req.Numbers).
		Strs("clients", req.Clients).
		Msg("bridging call")
	return g.updateCall(ctx, callSID, form)
}

// Voicemail redirects the live call into greeting plus recording
func (g *RESTGateway) Voicemail(ctx context.Context, callSID, greeting, actionURL string) error {
	doc := Response{
		Say:    &Say{Text: greeting},
		Record: &Record{MaxLength: 180, Action: actionURL, PlayBeep: true},
	}
	twiml, err := doc.Render()
	if err != nil {
		return err
	}

	g.logger.Info().Str("call_sid", callSID).Msg("redirecting call to voicemail")
	return g.updateCall(ctx, callSID, url.Values{"Twiml": {string(twiml)}})
}

// Hangup terminates the call at the provider
func (g *RESTGateway) Hangup(ctx context.Context, callSID string) error {
	g.logger.Info().Str("call_sid", callSID).Msg("hanging up call")
	return g.updateCall(ctx, callSID, url.Values{"Status": {"completed"}})
}

func (g *RESTGateway) updateCall(ctx context.Context, callSID string, form url.Values) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", g.baseURL, g.accountID, callSID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.accountID, g.authToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed for call %s: %w", callSID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d for call %s: %s", resp.StatusCode, callSID, string(body))
	}
	return nil
}
