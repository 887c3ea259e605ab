package signaling

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
)

// Directed signaling events.
const (
	EventCallUser     = "call-user"
	EventMakeAnswer   = "make-answer"
	EventICECandidate = "ice-candidate"
)

// Room-wide media state events.
const (
	EventVideoStateChange = "videoStateChange"
	EventAudioStateChange = "audioStateChange"
)

var errMissingTarget = errors.New("target connection id is required")

// Message is a directed signaling payload.
type Message interface {
	// Target is the connection id the payload is addressed to.
	Target() string
	Validate() error
	forward(from string) any
	describe() string
}

// requireTarget is the only check on directed payloads. Descriptions and
// candidates are forwarded byte for byte, including rollbacks and the null
// end-of-candidates marker.
func requireTarget(to string) error {
	if to == "" {
		return errMissingTarget
	}
	return nil
}

// CallUser carries an SDP offer to one peer.
type CallUser struct {
	To    string          `json:"to"`
	Offer json.RawMessage `json:"offer"`
}

func (p CallUser) Target() string { return p.To }

func (p CallUser) Validate() error { return requireTarget(p.To) }

func (p CallUser) forward(from string) any {
	return struct {
		SID   string          `json:"sid"`
		Offer json.RawMessage `json:"offer"`
	}{from, orNull(p.Offer)}
}

func (p CallUser) describe() string { return describeSDP(p.Offer) }

// MakeAnswer carries an SDP answer back to the caller.
type MakeAnswer struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

func (p MakeAnswer) Target() string { return p.To }

func (p MakeAnswer) Validate() error { return requireTarget(p.To) }

func (p MakeAnswer) forward(from string) any {
	return struct {
		SID    string          `json:"sid"`
		Answer json.RawMessage `json:"answer"`
	}{from, orNull(p.Answer)}
}

func (p MakeAnswer) describe() string { return describeSDP(p.Answer) }

// ICECandidate carries one trickled ICE candidate.
type ICECandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

func (p ICECandidate) Target() string { return p.To }

func (p ICECandidate) Validate() error { return requireTarget(p.To) }

func (p ICECandidate) forward(from string) any {
	return struct {
		SID       string          `json:"sid"`
		Candidate json.RawMessage `json:"candidate"`
	}{from, orNull(p.Candidate)}
}

func (p ICECandidate) describe() string {
	var c webrtc.ICECandidateInit
	if isNull(p.Candidate) {
		return "end-of-candidates"
	}
	if err := json.Unmarshal(p.Candidate, &c); err != nil {
		return "opaque"
	}
	if c.Candidate == "" {
		return "end-of-candidates"
	}
	return "candidate"
}

// describeSDP names a session description for logs. Anything pion cannot
// read is still relayed.
func describeSDP(raw json.RawMessage) string {
	if isNull(raw) {
		return "none"
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return "opaque"
	}
	return sd.Type.String()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func orNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}

// MediaState is the payload broadcast when a member toggles a track.
type MediaState struct {
	SID     string `json:"sid"`
	Enabled bool   `json:"enabled"`
}
