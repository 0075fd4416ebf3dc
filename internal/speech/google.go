package speech

import (
	"context"
	"fmt"
	"strings"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/devashq/intervoice/internal/audio"
	"github.com/devashq/intervoice/internal/fault"
)

// GoogleTranscriber transcribes recorded audio with the Google Cloud
// Speech-to-Text API. Authentication uses Application Default Credentials.
type GoogleTranscriber struct {
	client   *gspeech.Client
	language string
}

func NewGoogleTranscriber(ctx context.Context, language string) (*GoogleTranscriber, error) {
	if strings.TrimSpace(language) == "" {
		language = "en-US"
	}
	client, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create google speech client: %w", err)
	}
	return &GoogleTranscriber{client: client, language: language}, nil
}

func (t *GoogleTranscriber) Transcribe(ctx context.Context, audioBytes []byte, _ string) (string, error) {
	cfg := &speechpb.RecognitionConfig{LanguageCode: t.language}

	format, err := audio.DetectFormat(audioBytes)
	if err != nil {
		return "", fault.NewInputError("unrecognized audio format")
	}
	switch format {
	case audio.FormatWAV, audio.FormatFLAC:
		// Header-carrying containers: the API reads encoding and sample
		// rate from the file itself.
	case audio.FormatOGG:
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	case audio.FormatWebM:
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	default:
		return "", fault.NewInputError(fmt.Sprintf("audio format %s is not supported by the google backend", format))
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audioBytes},
		},
	})
	if err != nil {
		return "", fault.NewUpstreamError(fault.StageTranscription, err, true)
	}

	var out strings.Builder
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte(' ')
		}
		out.WriteString(alts[0].GetTranscript())
	}
	return out.String(), nil
}

func (t *GoogleTranscriber) Close() error {
	return t.client.Close()
}
