package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/bowerhall/mira/internal/logger"
	"github.com/bowerhall/mira/internal/session"
	"github.com/bowerhall/mira/internal/task"
	"github.com/bowerhall/mira/internal/twiml"
)

// handleVoice answers an incoming call: greet, listen, and fall through to the
// reprompt ladder if the caller stays silent.
func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	logger.Info("incoming call", "call", callSID, "from", r.FormValue("From"))

	// establish the session so the channel is pinned to voice
	h.engine.Sessions().Get(callSID, session.ChannelVoice)

	greeting := h.behavior.Greeting
	v := twiml.NewVoiceResponse()
	h.say(v, greeting)
	h.listen(v, h.behavior.Voice(greeting).STTLanguage)
	v.Redirect("/reprompt?attempt=0")
	h.writeVoice(w, v)
}

// handleRespond receives a transcribed utterance, kicks off background
// generation and parks the caller on hold. The interruption watcher pre-empts
// the hold audio as soon as the task has something to say.
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	caller := r.FormValue("From")
	speech := strings.TrimSpace(r.FormValue("SpeechResult"))

	v := twiml.NewVoiceResponse()

	if speech == "" {
		v.Redirect("/reprompt?attempt=0")
		h.writeVoice(w, v)
		return
	}

	logger.Info("utterance received", "call", callSID, "length", len(speech))

	// generation outlives this request, so it runs on a detached context
	t, err := h.engine.Dispatch(context.Background(), callSID, session.ChannelVoice, speech, caller)
	if err != nil {
		// a task is already live for this call; rejoin its poll loop
		logger.Warn("dispatch rejected", "call", callSID, "error", err)
		v.Redirect("/poll")
		h.writeVoice(w, v)
		return
	}

	h.watchForInterrupt(t, callSID)
	h.say(v, h.behavior.Checking)
	h.hold(v)
	h.writeVoice(w, v)
}

// handlePoll is the drain loop: each visit consumes one observation from the
// task queue and either speaks it, waits, or closes out the turn.
func (h *Handler) handlePoll(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	res := h.engine.Tasks().Poll(callSID)

	v := twiml.NewVoiceResponse()

	switch res.State {
	case task.PollChunk:
		h.say(v, res.Chunk)
		v.Redirect("/poll")

	case task.PollPending:
		v.Pause(1)
		v.Redirect("/poll")

	case task.PollDone:
		switch {
		case res.Result.Err != nil:
			apology := h.behavior.APIError
			h.say(v, apology)
			h.listen(v, h.behavior.Voice(apology).STTLanguage)
		case res.Result.RequiresToolCall:
			v.Redirect("/tool")
		default:
			// every chunk has been spoken; hand the turn back
			h.listen(v, h.behavior.Voice(res.Result.Text).STTLanguage)
		}

	default: // task.PollNoTask
		h.listen(v, h.behavior.Voice(h.behavior.Greeting).STTLanguage)
	}

	h.writeVoice(w, v)
}

// handleTool executes the buffered tool calls for the turn. The pending record
// is a destructive read, so a duplicate redirect lands here with nothing to do
// and simply listens.
func (h *Handler) handleTool(w http.ResponseWriter, r *http.Request) {
	callSID := r.FormValue("CallSid")
	caller := r.FormValue("From")

	v := twiml.NewVoiceResponse()

	sess := h.engine.Sessions().Get(callSID, session.ChannelVoice)
	pending := sess.TakeAndClearPendingToolCalls()
	if pending == nil {
		h.listen(v, h.behavior.Voice(h.behavior.Greeting).STTLanguage)
		h.writeVoice(w, v)
		return
	}

	transfer := h.engine.ExecuteTools(context.Background(), callSID, pending, caller)
	if transfer {
		msg := h.behavior.Transferring
		h.say(v, msg)
		v.Dial(h.behavior.Operator.Number, h.behavior.Operator.Timeout, "/dial-status")
		h.writeVoice(w, v)
		return
	}

	t, err := h.engine.Continue(context.Background(), callSID, caller)
	if err != nil {
		logger.Warn("continuation rejected", "call", callSID, "error", err)
		v.Redirect("/poll")
		h.writeVoice(w, v)
		return
	}

	h.watchForInterrupt(t, callSID)
	h.hold(v)
	h.writeVoice(w, v)
}

// handleDialStatus resumes the conversation when the operator transfer fails.
func (h *Handler) handleDialStatus(w http.ResponseWriter, r *http.Request) {
	status := r.FormValue("DialCallStatus")
	logger.Info("operator dial finished", "call", r.FormValue("CallSid"), "status", status)

	v := twiml.NewVoiceResponse()
	if status == "completed" {
		v.Hangup()
		h.writeVoice(w, v)
		return
	}

	msg := h.behavior.NoOperator
	h.say(v, msg)
	h.listen(v, h.behavior.Voice(msg).STTLanguage)
	h.writeVoice(w, v)
}

// handleReprompt is the silence ladder. The attempt counter lives in the URL:
// the flow is stateless, so each silent round redirects to the next rung and
// the third rung says goodbye and hangs up.
func (h *Handler) handleReprompt(w http.ResponseWriter, r *http.Request) {
	attempt, _ := strconv.Atoi(r.URL.Query().Get("attempt"))

	v := twiml.NewVoiceResponse()

	switch attempt {
	case 0:
		msg := h.behavior.NoSpeech
		h.say(v, msg)
		h.listen(v, h.behavior.Voice(msg).STTLanguage)
		v.Redirect("/reprompt?attempt=1")
	case 1:
		h.listen(v, h.behavior.Voice(h.behavior.NoSpeech).STTLanguage)
		v.Redirect("/reprompt?attempt=2")
	default:
		h.say(v, h.behavior.Closing)
		v.Hangup()
	}

	h.writeVoice(w, v)
}

// hold keeps the caller occupied until the next poll.
func (h *Handler) hold(v *twiml.VoiceResponse) {
	if h.behavior.HoldMusicURL != "" {
		v.Play(h.behavior.HoldMusicURL, 0)
	} else {
		v.Pause(1)
	}
	v.Redirect("/poll")
}

func (h *Handler) watchForInterrupt(t *task.Task, callSID string) {
	// without a public origin the redirect would be relative, which the
	// live-call update API rejects; let the natural hold cadence drain it
	if h.interrupts == nil || h.baseURL == "" {
		return
	}

	markup, err := twiml.NewVoiceResponse().Redirect(h.absolute("/poll")).Render()
	if err != nil {
		logger.Error("render interrupt markup", "error", err)
		return
	}

	go h.interrupts.Watch(context.Background(), t, callSID, markup)
}
