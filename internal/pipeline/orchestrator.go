package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devashq/intervoice/internal/audio"
	"github.com/devashq/intervoice/internal/audiostore"
	"github.com/devashq/intervoice/internal/fault"
	"github.com/devashq/intervoice/internal/interview"
	"github.com/devashq/intervoice/internal/observability"
	"github.com/devashq/intervoice/internal/session"
	"github.com/devashq/intervoice/internal/speech"
	"github.com/devashq/intervoice/internal/transcript"
)

// DeliveryMode controls how synthesized reply audio reaches the caller.
type DeliveryMode string

const (
	// DeliveryInline returns the audio bytes in the response body.
	DeliveryInline DeliveryMode = "inline"
	// DeliveryStored keeps the clip in the audio store and returns a URL.
	DeliveryStored DeliveryMode = "stored"
)

// Result is the outcome of one fully processed turn.
type Result struct {
	SessionID        string
	Transcription    string
	ReplyText        string
	Audio            []byte
	AudioContentType string
	AudioURL         string
	Concluded        bool
}

// Orchestrator runs the turn pipeline: transcribe, persist the user
// turn, compose a reply over the full transcript, persist it, synthesize.
// Each step is a hard dependency on the previous one; nothing is retried
// and nothing already persisted is rolled back.
type Orchestrator struct {
	store       transcript.Store
	engine      *interview.Engine
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	sessions    *session.Manager
	audioClips  audiostore.Store
	metrics     *observability.Metrics
	feed        *Feed
	delivery    DeliveryMode
}

func NewOrchestrator(
	store transcript.Store,
	engine *interview.Engine,
	transcriber speech.Transcriber,
	synthesizer speech.Synthesizer,
	sessions *session.Manager,
	audioClips audiostore.Store,
	metrics *observability.Metrics,
	feed *Feed,
	delivery DeliveryMode,
) *Orchestrator {
	if delivery != DeliveryStored {
		delivery = DeliveryInline
	}
	return &Orchestrator{
		store:       store,
		engine:      engine,
		transcriber: transcriber,
		synthesizer: synthesizer,
		sessions:    sessions,
		audioClips:  audioClips,
		metrics:     metrics,
		feed:        feed,
		delivery:    delivery,
	}
}

// Delivery reports the configured audio delivery mode.
func (o *Orchestrator) Delivery() DeliveryMode { return o.delivery }

// ProcessTurn handles one caller utterance end to end.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID string, audioBytes []byte, filename string) (Result, error) {
	turnStart := time.Now()

	if len(audioBytes) == 0 {
		o.countTurn("input_rejected")
		return Result{}, fault.NewInputError("missing or empty audio")
	}
	if _, err := audio.DetectFormat(audioBytes); err != nil {
		o.countTurn("input_rejected")
		return Result{}, fault.NewInputError("unreadable audio payload")
	}

	sess := o.sessions.Ensure(sessionID)
	sessionID = sess.ID

	// Transcription touches no state, so it runs outside the session lock.
	stageStart := time.Now()
	text, err := o.transcriber.Transcribe(ctx, audioBytes, filename)
	o.observeStage(observability.StageTranscribe, stageStart)
	if err != nil {
		return Result{}, o.failTurn("transcription_failed", fault.StageTranscription, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		o.countTurn("input_rejected")
		return Result{}, fault.NewInputError("empty transcript")
	}

	reply, concluded, err := o.advanceConversation(ctx, sessionID, text)
	if err != nil {
		return Result{}, err
	}

	if err := o.sessions.RecordTurn(sessionID); err != nil {
		log.Printf("record turn for session %s: %v", sessionID, err)
	}
	if concluded {
		if err := o.sessions.Conclude(sessionID); err != nil {
			log.Printf("conclude session %s: %v", sessionID, err)
		}
	}
	o.metrics.ActiveInterviews.Set(float64(o.sessions.ActiveCount()))

	stageStart = time.Now()
	replyAudio, err := o.synthesizer.Synthesize(ctx, reply)
	o.observeStage(observability.StageSynthesize, stageStart)
	if err != nil {
		return Result{}, o.failTurn("synthesis_failed", fault.StageSynthesis, err)
	}

	result := Result{
		SessionID:        sessionID,
		Transcription:    text,
		ReplyText:        reply,
		AudioContentType: contentTypeFor(replyAudio),
		Concluded:        concluded,
	}
	if o.delivery == DeliveryStored && o.audioClips != nil {
		clipID := uuid.NewString()
		err := o.audioClips.Put(ctx, clipID, audiostore.Clip{Data: replyAudio, ContentType: result.AudioContentType})
		if err != nil {
			o.countTurn("storage_failed")
			return Result{}, fault.NewStorageError("store reply audio", err)
		}
		result.AudioURL = "/v1/audio/" + clipID
	} else {
		result.Audio = replyAudio
	}

	o.countTurn("ok")
	o.observeStage(observability.StageTurnTotal, turnStart)
	return result, nil
}

// advanceConversation holds the per-session turn lock across the
// persist-read-persist window so concurrent callers on one session
// cannot interleave turns and corrupt topic tracking.
func (o *Orchestrator) advanceConversation(ctx context.Context, sessionID, userText string) (reply string, concluded bool, err error) {
	lock, err := o.sessions.TurnLock(sessionID)
	if err != nil {
		return "", false, fmt.Errorf("session lock: %w", err)
	}
	lock.Lock()
	defer lock.Unlock()

	stageStart := time.Now()
	userTurn := transcript.Turn{SessionID: sessionID, Role: transcript.RoleUser, Content: userText}
	if err := o.store.Append(ctx, userTurn); err != nil {
		o.countTurn("storage_failed")
		return "", false, fault.NewStorageError("append user turn", err)
	}
	o.observeStage(observability.StageStoreAppend, stageStart)
	o.publish(sessionID, transcript.RoleUser, userText, false)

	stageStart = time.Now()
	turns, err := o.store.ReadAll(ctx, sessionID)
	if err != nil {
		o.metrics.ObserveIndicator("user_turn_without_reply")
		o.countTurn("storage_failed")
		return "", false, fault.NewStorageError("read transcript", err)
	}
	o.observeStage(observability.StageStoreRead, stageStart)

	stageStart = time.Now()
	reply, err = o.engine.ComposeReply(ctx, toMessages(turns))
	o.observeStage(observability.StageGenerate, stageStart)
	if err != nil {
		// The user turn stays persisted; a lone user turn is valid
		// transient state and the next turn appends after it.
		o.metrics.ObserveIndicator("user_turn_without_reply")
		return "", false, o.failTurn("generation_failed", fault.StageGeneration, err)
	}

	if n := interview.QuestionCount(reply); n > 2 {
		o.metrics.QuestionOverflowTotal.Inc()
		o.metrics.ObserveIndicator("reply_question_overflow")
		log.Printf("session %s: reply asked %d questions", sessionID, n)
	}

	stageStart = time.Now()
	assistantTurn := transcript.Turn{SessionID: sessionID, Role: transcript.RoleAssistant, Content: reply}
	if err := o.store.Append(ctx, assistantTurn); err != nil {
		o.metrics.ObserveIndicator("user_turn_without_reply")
		o.countTurn("storage_failed")
		return "", false, fault.NewStorageError("append assistant turn", err)
	}
	o.observeStage(observability.StageStoreAppend, stageStart)

	concluded = reply == interview.TerminationToken
	o.publish(sessionID, transcript.RoleAssistant, reply, concluded)
	return reply, concluded, nil
}

// Progress derives the interview position for a session from its stored
// transcript.
func (o *Orchestrator) Progress(ctx context.Context, sessionID string) (interview.Progress, error) {
	turns, err := o.store.ReadAll(ctx, sessionID)
	if err != nil {
		return interview.Progress{}, fault.NewStorageError("read transcript", err)
	}
	return interview.DeriveProgress(toMessages(turns)), nil
}

// Transcript returns the stored turns for a session, storage identity
// included, for the read-only transcript endpoint.
func (o *Orchestrator) Transcript(ctx context.Context, sessionID string) ([]transcript.Turn, error) {
	turns, err := o.store.ReadAll(ctx, sessionID)
	if err != nil {
		return nil, fault.NewStorageError("read transcript", err)
	}
	return turns, nil
}

func (o *Orchestrator) failTurn(outcome string, stage fault.Stage, err error) error {
	// An adapter can reject the payload itself; that is an input
	// rejection, not an upstream failure.
	if fault.IsInput(err) {
		o.countTurn("input_rejected")
		return err
	}
	o.countTurn(outcome)
	o.metrics.UpstreamErrors.WithLabelValues(string(stage)).Inc()
	var ue *fault.UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return fault.NewUpstreamError(stage, err, false)
}

func (o *Orchestrator) countTurn(outcome string) {
	o.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
}

func (o *Orchestrator) observeStage(stage string, start time.Time) {
	o.metrics.ObserveStage(stage, time.Since(start))
}

func (o *Orchestrator) publish(sessionID, role, content string, concluded bool) {
	if o.feed == nil {
		return
	}
	o.feed.Publish(TurnEvent{
		Type:      EventTypeTurn,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Concluded: concluded,
		At:        time.Now().UTC(),
	})
}

// toMessages strips storage identity before turns reach model-facing code.
func toMessages(turns []transcript.Turn) []interview.Message {
	out := make([]interview.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, interview.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

func contentTypeFor(data []byte) string {
	format, err := audio.DetectFormat(data)
	if err != nil {
		return "audio/mpeg"
	}
	switch format {
	case audio.FormatWAV:
		return "audio/wav"
	case audio.FormatOGG:
		return "audio/ogg"
	case audio.FormatWebM:
		return "audio/webm"
	case audio.FormatFLAC:
		return "audio/flac"
	default:
		return "audio/mpeg"
	}
}
