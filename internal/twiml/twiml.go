// Package twiml renders the control markup returned to the telephony
// platform. The directive set is deliberately small: every state transition in
// the call flow is expressed through these verbs, so their byte-level output
// is part of the external contract and is pinned by tests.
package twiml

import (
	"encoding/xml"
	"fmt"
)

type say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr"`
	Language      string   `xml:"language,attr,omitempty"`
}

type play struct {
	XMLName xml.Name `xml:"Play"`
	Loop    int      `xml:"loop,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type pause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

type redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type dial struct {
	XMLName xml.Name `xml:"Dial"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Action  string   `xml:"action,attr,omitempty"`
	Number  string   `xml:",chardata"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type message struct {
	XMLName xml.Name `xml:"Message"`
	Body    string   `xml:",chardata"`
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// VoiceResponse accumulates voice directives in order.
type VoiceResponse struct {
	verbs []any
}

// GatherOpts configures a listen directive.
type GatherOpts struct {
	Action        string
	SpeechTimeout string // "auto" or seconds
	Language      string
}

func NewVoiceResponse() *VoiceResponse {
	return &VoiceResponse{}
}

func (v *VoiceResponse) Say(text, voice, language string) *VoiceResponse {
	v.verbs = append(v.verbs, say{Voice: voice, Language: language, Text: text})
	return v
}

func (v *VoiceResponse) Gather(opts GatherOpts) *VoiceResponse {
	st := opts.SpeechTimeout
	if st == "" {
		st = "auto"
	}
	v.verbs = append(v.verbs, gather{
		Input:         "speech",
		Action:        opts.Action,
		Method:        "POST",
		SpeechTimeout: st,
		Language:      opts.Language,
	})
	return v
}

func (v *VoiceResponse) Play(url string, loop int) *VoiceResponse {
	v.verbs = append(v.verbs, play{URL: url, Loop: loop})
	return v
}

func (v *VoiceResponse) Pause(seconds int) *VoiceResponse {
	v.verbs = append(v.verbs, pause{Length: seconds})
	return v
}

func (v *VoiceResponse) Redirect(url string) *VoiceResponse {
	v.verbs = append(v.verbs, redirect{Method: "POST", URL: url})
	return v
}

func (v *VoiceResponse) Dial(number string, timeout int, statusCallback string) *VoiceResponse {
	v.verbs = append(v.verbs, dial{Number: number, Timeout: timeout, Action: statusCallback})
	return v
}

func (v *VoiceResponse) Hangup() *VoiceResponse {
	v.verbs = append(v.verbs, hangup{})
	return v
}

func (v *VoiceResponse) Render() (string, error) {
	return render(v.verbs)
}

// MessagingResponse is the reply document for WhatsApp/SMS webhooks. An empty
// response acknowledges the inbound message without sending anything.
type MessagingResponse struct {
	verbs []any
}

func NewMessagingResponse() *MessagingResponse {
	return &MessagingResponse{}
}

func (m *MessagingResponse) Message(body string) *MessagingResponse {
	m.verbs = append(m.verbs, message{Body: body})
	return m
}

func (m *MessagingResponse) Render() (string, error) {
	return render(m.verbs)
}

func render(verbs []any) (string, error) {
	out, err := xml.Marshal(response{Verbs: verbs})
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(out), nil
}
