package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/devashq/intervoice/internal/audio"
	"github.com/devashq/intervoice/internal/audiostore"
	"github.com/devashq/intervoice/internal/fault"
	"github.com/devashq/intervoice/internal/interview"
	"github.com/devashq/intervoice/internal/observability"
	"github.com/devashq/intervoice/internal/session"
	"github.com/devashq/intervoice/internal/speech"
	"github.com/devashq/intervoice/internal/transcript"
)

type scriptedGenerator struct {
	replies []string
	err     error
}

func (g *scriptedGenerator) Generate(_ context.Context, _ []interview.Message) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "Understood. Could you tell me more about that?", nil
	}
	next := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return next, nil
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", errors.New("whisper unavailable")
}

type rejectingTranscriber struct{}

func (rejectingTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "", fault.NewInputError("unsupported audio container")
}

type failingSynthesizer struct{}

func (failingSynthesizer) Synthesize(context.Context, string) ([]byte, error) {
	return nil, errors.New("tts unavailable")
}

type fixture struct {
	orchestrator *Orchestrator
	store        *transcript.InMemoryStore
	sessions     *session.Manager
	speech       *speech.MockProvider
	clips        audiostore.Store
	feed         *Feed
}

type fixtureOption func(*fixture, *fixtureConfig)

type fixtureConfig struct {
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	generator   interview.Generator
	delivery    DeliveryMode
}

func withTranscriber(tr speech.Transcriber) fixtureOption {
	return func(_ *fixture, cfg *fixtureConfig) { cfg.transcriber = tr }
}

func withSynthesizer(sy speech.Synthesizer) fixtureOption {
	return func(_ *fixture, cfg *fixtureConfig) { cfg.synthesizer = sy }
}

func withGenerator(g interview.Generator) fixtureOption {
	return func(_ *fixture, cfg *fixtureConfig) { cfg.generator = g }
}

func withDelivery(d DeliveryMode) fixtureOption {
	return func(_ *fixture, cfg *fixtureConfig) { cfg.delivery = d }
}

func newFixture(t *testing.T, namespace string, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		store:    transcript.NewInMemoryStore(),
		sessions: session.NewManager(time.Minute),
		speech:   speech.NewMockProvider(),
		feed:     NewFeed(),
	}
	clips, err := audiostore.New(context.Background(), audiostore.Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("audiostore.New() error = %v", err)
	}
	f.clips = clips

	cfg := fixtureConfig{
		transcriber: f.speech,
		synthesizer: f.speech,
		generator:   &scriptedGenerator{},
		delivery:    DeliveryInline,
	}
	for _, opt := range opts {
		opt(f, &cfg)
	}

	f.orchestrator = NewOrchestrator(
		f.store,
		interview.NewEngine(cfg.generator),
		cfg.transcriber,
		cfg.synthesizer,
		f.sessions,
		f.clips,
		observability.NewMetrics(namespace),
		f.feed,
		cfg.delivery,
	)
	return f
}

func wavBytes() []byte {
	return audio.EncodeWAVPCM16LE(make([]byte, 320), 16000)
}

func (f *fixture) mustTurns(t *testing.T, sessionID string) []transcript.Turn {
	t.Helper()
	turns, err := f.store.ReadAll(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return turns
}

func TestProcessTurnHappyPath(t *testing.T) {
	f := newFixture(t, "test_pipeline_happy")
	f.speech.QueueTranscripts("Hi")

	result, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "audio.wav")
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.SessionID != session.DefaultSessionID {
		t.Fatalf("SessionID = %q, want default", result.SessionID)
	}
	if result.Transcription != "Hi" {
		t.Fatalf("Transcription = %q, want Hi", result.Transcription)
	}
	if result.ReplyText == "" {
		t.Fatalf("ReplyText should not be empty")
	}
	if len(result.Audio) == 0 {
		t.Fatalf("inline delivery should return audio bytes")
	}
	if result.AudioURL != "" {
		t.Fatalf("inline delivery should not return a URL, got %q", result.AudioURL)
	}
	if result.AudioContentType != "audio/wav" {
		t.Fatalf("AudioContentType = %q, want audio/wav", result.AudioContentType)
	}

	turns := f.mustTurns(t, result.SessionID)
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Role != transcript.RoleUser || turns[0].Content != "Hi" {
		t.Fatalf("turns[0] = %+v, want user turn", turns[0])
	}
	if turns[1].Role != transcript.RoleAssistant || turns[1].Content != result.ReplyText {
		t.Fatalf("turns[1] = %+v, want assistant turn", turns[1])
	}
}

func TestProcessTurnRejectsEmptyAudio(t *testing.T) {
	f := newFixture(t, "test_pipeline_empty_audio")

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", nil, "")
	if !fault.IsInput(err) {
		t.Fatalf("error = %v, want InputError", err)
	}
	if turns := f.mustTurns(t, session.DefaultSessionID); len(turns) != 0 {
		t.Fatalf("store should be untouched, got %d turns", len(turns))
	}
}

func TestProcessTurnRejectsUnreadableAudio(t *testing.T) {
	f := newFixture(t, "test_pipeline_bad_audio")

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", []byte("not really audio"), "")
	if !fault.IsInput(err) {
		t.Fatalf("error = %v, want InputError", err)
	}
	if turns := f.mustTurns(t, session.DefaultSessionID); len(turns) != 0 {
		t.Fatalf("store should be untouched, got %d turns", len(turns))
	}
}

func TestProcessTurnTranscriptionFailureLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t, "test_pipeline_stt_fail", withTranscriber(failingTranscriber{}))

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	stage, ok := fault.UpstreamStage(err)
	if !ok || stage != fault.StageTranscription {
		t.Fatalf("stage = %q (ok=%v), want transcription", stage, ok)
	}
	if turns := f.mustTurns(t, session.DefaultSessionID); len(turns) != 0 {
		t.Fatalf("store should be untouched, got %d turns", len(turns))
	}
}

func TestProcessTurnTranscriberInputRejectionIsNotUpstream(t *testing.T) {
	f := newFixture(t, "test_pipeline_stt_reject", withTranscriber(rejectingTranscriber{}))

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	if !fault.IsInput(err) {
		t.Fatalf("error = %v, want InputError", err)
	}
	if _, ok := fault.UpstreamStage(err); ok {
		t.Fatalf("adapter input rejection must not surface as an upstream error: %v", err)
	}

	m := f.orchestrator.metrics
	if got := testutil.ToFloat64(m.UpstreamErrors.WithLabelValues(string(fault.StageTranscription))); got != 0 {
		t.Fatalf("upstream_errors_total{transcription} = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("input_rejected")); got != 1 {
		t.Fatalf("turns_total{input_rejected} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("transcription_failed")); got != 0 {
		t.Fatalf("turns_total{transcription_failed} = %v, want 0", got)
	}
	if turns := f.mustTurns(t, session.DefaultSessionID); len(turns) != 0 {
		t.Fatalf("store should be untouched, got %d turns", len(turns))
	}
}

func TestProcessTurnRejectsWhitespaceTranscript(t *testing.T) {
	f := newFixture(t, "test_pipeline_blank_text")
	f.speech.QueueTranscripts("   \n\t ")

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	if !fault.IsInput(err) {
		t.Fatalf("error = %v, want InputError", err)
	}
	if turns := f.mustTurns(t, session.DefaultSessionID); len(turns) != 0 {
		t.Fatalf("empty transcript must not pollute the store, got %d turns", len(turns))
	}
}

func TestProcessTurnGenerationFailureKeepsUserTurn(t *testing.T) {
	f := newFixture(t, "test_pipeline_gen_fail",
		withGenerator(&scriptedGenerator{err: errors.New("quota exceeded")}))
	f.speech.QueueTranscripts("the cafeteria closes too early")

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	stage, ok := fault.UpstreamStage(err)
	if !ok || stage != fault.StageGeneration {
		t.Fatalf("stage = %q (ok=%v), want generation", stage, ok)
	}

	turns := f.mustTurns(t, session.DefaultSessionID)
	if len(turns) != 1 {
		t.Fatalf("len(turns) = %d, want exactly the user turn", len(turns))
	}
	if turns[0].Role != transcript.RoleUser {
		t.Fatalf("turns[0].Role = %q, want user", turns[0].Role)
	}
}

func TestProcessTurnSynthesisFailureKeepsBothTurns(t *testing.T) {
	f := newFixture(t, "test_pipeline_tts_fail", withSynthesizer(failingSynthesizer{}))
	f.speech.QueueTranscripts("Hi")

	_, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	stage, ok := fault.UpstreamStage(err)
	if !ok || stage != fault.StageSynthesis {
		t.Fatalf("stage = %q (ok=%v), want synthesis", stage, ok)
	}

	turns := f.mustTurns(t, session.DefaultSessionID)
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2 (both turns persisted before synthesis)", len(turns))
	}
}

func TestProcessTurnStoredDelivery(t *testing.T) {
	f := newFixture(t, "test_pipeline_stored", withDelivery(DeliveryStored))
	f.speech.QueueTranscripts("Hi")

	result, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if result.Audio != nil {
		t.Fatalf("stored delivery should not return inline audio")
	}
	if !strings.HasPrefix(result.AudioURL, "/v1/audio/") {
		t.Fatalf("AudioURL = %q, want /v1/audio/ prefix", result.AudioURL)
	}

	clipID := strings.TrimPrefix(result.AudioURL, "/v1/audio/")
	clip, err := f.clips.Get(context.Background(), clipID)
	if err != nil {
		t.Fatalf("clip Get() error = %v", err)
	}
	if len(clip.Data) == 0 {
		t.Fatalf("stored clip should carry audio bytes")
	}
	if clip.ContentType != result.AudioContentType {
		t.Fatalf("clip content type = %q, want %q", clip.ContentType, result.AudioContentType)
	}
}

func TestProcessTurnConcludesOnTermination(t *testing.T) {
	f := newFixture(t, "test_pipeline_conclude",
		withGenerator(&scriptedGenerator{replies: []string{"Thank you."}}))
	f.speech.QueueTranscripts("yes, end the interview")

	result, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), "")
	if err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}
	if !result.Concluded {
		t.Fatalf("Concluded = false, want true")
	}
	if result.ReplyText != interview.TerminationToken {
		t.Fatalf("ReplyText = %q, want exact termination token", result.ReplyText)
	}

	sess, err := f.sessions.Get(result.SessionID)
	if err != nil {
		t.Fatalf("sessions.Get() error = %v", err)
	}
	if sess.Status != session.StatusConcluded {
		t.Fatalf("session status = %q, want concluded", sess.Status)
	}
}

func TestProcessTurnPairingAcrossTurns(t *testing.T) {
	f := newFixture(t, "test_pipeline_pairing")
	f.speech.QueueTranscripts("first", "second", "third")

	for i := 0; i < 3; i++ {
		if _, err := f.orchestrator.ProcessTurn(context.Background(), "", wavBytes(), ""); err != nil {
			t.Fatalf("ProcessTurn() #%d error = %v", i, err)
		}
	}

	turns := f.mustTurns(t, session.DefaultSessionID)
	if len(turns) != 6 {
		t.Fatalf("len(turns) = %d, want 6", len(turns))
	}
	for i, turn := range turns {
		want := transcript.RoleUser
		if i%2 == 1 {
			want = transcript.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turns[%d].Role = %q, want %q (strict user/assistant alternation)", i, turn.Role, want)
		}
	}
}

func TestProcessTurnPublishesFeedEvents(t *testing.T) {
	f := newFixture(t, "test_pipeline_feed")
	f.speech.QueueTranscripts("Hi")
	f.sessions.Ensure("watched")

	events, cancel := f.feed.Subscribe("watched")
	defer cancel()

	if _, err := f.orchestrator.ProcessTurn(context.Background(), "watched", wavBytes(), ""); err != nil {
		t.Fatalf("ProcessTurn() error = %v", err)
	}

	var got []TurnEvent
	for len(got) < 2 {
		select {
		case evt := <-events:
			got = append(got, evt)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for feed events, got %d", len(got))
		}
	}
	if got[0].Role != transcript.RoleUser || got[1].Role != transcript.RoleAssistant {
		t.Fatalf("feed roles = %q, %q, want user then assistant", got[0].Role, got[1].Role)
	}
}

func TestProcessTurnSeparateSessionsDoNotInterleave(t *testing.T) {
	f := newFixture(t, "test_pipeline_sessions")
	f.speech.QueueTranscripts("session a", "session b")
	f.sessions.Ensure("a")
	f.sessions.Ensure("b")

	if _, err := f.orchestrator.ProcessTurn(context.Background(), "a", wavBytes(), ""); err != nil {
		t.Fatalf("ProcessTurn(a) error = %v", err)
	}
	if _, err := f.orchestrator.ProcessTurn(context.Background(), "b", wavBytes(), ""); err != nil {
		t.Fatalf("ProcessTurn(b) error = %v", err)
	}

	if turns := f.mustTurns(t, "a"); len(turns) != 2 || turns[0].Content != "session a" {
		t.Fatalf("session a transcript = %+v, want its own two turns", turns)
	}
	if turns := f.mustTurns(t, "b"); len(turns) != 2 || turns[0].Content != "session b" {
		t.Fatalf("session b transcript = %+v, want its own two turns", turns)
	}
}

func TestContentTypeForSniffsContainer(t *testing.T) {
	if ct := contentTypeFor(wavBytes()); ct != "audio/wav" {
		t.Fatalf("contentTypeFor(wav) = %q, want audio/wav", ct)
	}
	mp3 := append([]byte("ID3"), bytes.Repeat([]byte{0}, 16)...)
	if ct := contentTypeFor(mp3); ct != "audio/mpeg" {
		t.Fatalf("contentTypeFor(mp3) = %q, want audio/mpeg", ct)
	}
}
