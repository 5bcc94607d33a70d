package telephony

import (
	"encoding/xml"
	"fmt"
)

// TwiML document types for call-control responses

type Response struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:"Say,omitempty"`
	Dial    *Dial    `xml:"Dial,omitempty"`
	Record  *Record  `xml:"Record,omitempty"`
	Connect *Connect `xml:"Connect,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

type Say struct {
	Text string `xml:",chardata"`
}

type Dial struct {
	Timeout        int      `xml:"timeout,attr,omitempty"`
	Action         string   `xml:"action,attr,omitempty"`
	CallerID       string   `xml:"callerId,attr,omitempty"`
	AnswerOnBridge bool     `xml:"answerOnBridge,attr,omitempty"`
	Numbers        []string `xml:"Number,omitempty"`
	Clients        []string `xml:"Client,omitempty"`
}

type Record struct {
	MaxLength int    `xml:"maxLength,attr,omitempty"`
	Action    string `xml:"action,attr,omitempty"`
	PlayBeep  bool   `xml:"playBeep,attr"`
}

type Connect struct {
	Stream *Stream `xml:"Stream"`
}

type Stream struct {
	URL        string      `xml:"url,attr"`
	Parameters []Parameter `xml:"Parameter,omitempty"`
}

type Parameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Hangup struct{}

// Render serializes the response with the XML declaration
func (r Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// StreamResponse answers an inbound call by connecting its media stream
// to the given websocket endpoint.
func StreamResponse(wsURL string, params map[string]string) Response {
	stream := &Stream{URL: wsURL}
	for name, value := range params {
		stream.Parameters = append(stream.Parameters, Parameter{Name: name, Value: value})
	}
	return Response{Connect: &Connect{Stream: stream}}
}
