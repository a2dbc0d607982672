package stt

import (
	"context"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

type GoogleSpeech struct {
	c *speech.Client
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{c: c}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audio []byte, opts Options) (string, float64, error) {
	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig(opts),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, err
	}
	text, conf := bestAlternative(resp.GetResults())
	return text, conf, nil
}

func recognitionConfig(opts Options) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		LanguageCode:               NormalizeLanguage(opts.Language),
		EnableAutomaticPunctuation: true,
	}
	switch opts.Format {
	case FormatWebmOpus:
		// Browser MediaRecorder output.
		cfg.Encoding = speechpb.RecognitionConfig_WEBM_OPUS
		cfg.SampleRateHertz = 48000
	case FormatOggOpus:
		cfg.Encoding = speechpb.RecognitionConfig_OGG_OPUS
		cfg.SampleRateHertz = 48000
	default:
		cfg.Encoding = speechpb.RecognitionConfig_LINEAR16
		cfg.SampleRateHertz = 16000
	}
	return cfg
}

func bestAlternative(results []*speechpb.SpeechRecognitionResult) (string, float64) {
	var bestText string
	var bestConf float64
	for _, r := range results {
		for _, alt := range r.GetAlternatives() {
			if alt.GetTranscript() != "" && float64(alt.GetConfidence()) >= bestConf {
				bestText = alt.GetTranscript()
				bestConf = float64(alt.GetConfidence())
			}
		}
	}
	return bestText, bestConf
}
