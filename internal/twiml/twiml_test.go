package twiml

import (
	"encoding/xml"
	"strings"
	"testing"
)

func TestSayGatherRedirect(t *testing.T) {
	out, err := NewVoiceResponse().
		Say("Hi, thanks for calling.", "Google.en-US-Standard-C", "en-US").
		Gather(GatherOpts{Action: "/respond", Language: "en-US"}).
		Redirect("/reprompt?attempt=0").
		Render()
	if err != nil {
		t.Fatal(err)
	}

	want := xml.Header +
		`<Response>` +
		`<Say voice="Google.en-US-Standard-C" language="en-US">Hi, thanks for calling.</Say>` +
		`<Gather input="speech" action="/respond" method="POST" speechTimeout="auto" language="en-US"></Gather>` +
		`<Redirect method="POST">/reprompt?attempt=0</Redirect>` +
		`</Response>`
	if out != want {
		t.Errorf("unexpected document:\n got: %s\nwant: %s", out, want)
	}
}

func TestSayOmitsEmptyAttributes(t *testing.T) {
	out, err := NewVoiceResponse().Say("hello", "", "").Render()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "voice=") || strings.Contains(out, "language=") {
		t.Errorf("empty attributes must be omitted: %s", out)
	}
}

func TestGatherDefaultsSpeechTimeout(t *testing.T) {
	out, err := NewVoiceResponse().Gather(GatherOpts{Action: "/respond"}).Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `speechTimeout="auto"`) {
		t.Errorf("expected auto speech timeout: %s", out)
	}
}

func TestPlayPauseHold(t *testing.T) {
	out, err := NewVoiceResponse().
		Play("https://example.com/hold.mp3", 0).
		Pause(1).
		Redirect("/poll").
		Render()
	if err != nil {
		t.Fatal(err)
	}

	want := xml.Header +
		`<Response>` +
		`<Play>https://example.com/hold.mp3</Play>` +
		`<Pause length="1"></Pause>` +
		`<Redirect method="POST">/poll</Redirect>` +
		`</Response>`
	if out != want {
		t.Errorf("unexpected document:\n got: %s\nwant: %s", out, want)
	}
}

func TestDialWithAction(t *testing.T) {
	out, err := NewVoiceResponse().
		Say("Transferring you now.", "", "").
		Dial("+15550199", 20, "/dial-status").
		Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<Dial timeout="20" action="/dial-status">+15550199</Dial>`) {
		t.Errorf("unexpected dial verb: %s", out)
	}
}

func TestHangup(t *testing.T) {
	out, err := NewVoiceResponse().Hangup().Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<Hangup></Hangup>") {
		t.Errorf("unexpected hangup verb: %s", out)
	}
}

func TestTextIsEscaped(t *testing.T) {
	out, err := NewVoiceResponse().Say("fish & chips <tasty>", "", "").Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "fish &amp; chips &lt;tasty&gt;") {
		t.Errorf("special characters must be escaped: %s", out)
	}
}

func TestMessagingResponse(t *testing.T) {
	out, err := NewMessagingResponse().Message("Your booking is confirmed.").Render()
	if err != nil {
		t.Fatal(err)
	}

	want := xml.Header + `<Response><Message>Your booking is confirmed.</Message></Response>`
	if out != want {
		t.Errorf("unexpected document:\n got: %s\nwant: %s", out, want)
	}
}

func TestEmptyMessagingResponse(t *testing.T) {
	out, err := NewMessagingResponse().Render()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "<Response></Response>") {
		t.Errorf("empty response must still be a valid document: %s", out)
	}
}
