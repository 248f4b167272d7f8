package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal Twilio Markup Language builder; intentionally avoids any provider
// SDK dependency. Only the verbs this adapter needs.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name     `xml:"Connect"`
	Stream  *twimlStream `xml:"Stream,omitempty"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// RenderStreamTwiML produces the instruction document handed to the provider
// at dial time: connect the answered call's audio to our media-stream socket.
func RenderStreamTwiML(streamURL string) (string, error) {
	if strings.TrimSpace(streamURL) == "" {
		return "", errors.New("telephony: stream url required")
	}
	r := twimlResponse{Verbs: []any{twimlConnect{Stream: &twimlStream{URL: streamURL}}}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
