package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1p1beta1"
	"cloud.google.com/go/speech/apiv1p1beta1/speechpb"
	"github.com/fmueller/voxsrt/internal/srt"
	"go.uber.org/zap"
)

// Google uses Cloud Speech-to-Text long running recognition with word time
// offsets. MP3 input is only accepted by the v1p1beta1 API. Credentials come
// from GOOGLE_APPLICATION_CREDENTIALS.
type Google struct {
	Language string
	// SampleRate must match the file when set; zero lets the service read it
	// from the MP3 header.
	SampleRate int
	Logger     *zap.Logger
}

func (g *Google) Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error) {
	content, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	defer client.Close()

	req := g.buildRequest(content)
	g.log().Debug("submitting long running recognition",
		zap.String("language", req.GetConfig().GetLanguageCode()),
		zap.Int32("sample_rate", req.GetConfig().GetSampleRateHertz()),
		zap.Int("bytes", len(content)),
	)

	op, err := client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start recognition: %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for recognition: %w", err)
	}

	return segmentsFromGoogle(resp.GetResults()), nil
}

func (g *Google) buildRequest(content []byte) *speechpb.LongRunningRecognizeRequest {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_MP3,
		LanguageCode:               googleLanguageCode(g.Language),
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: true,
	}
	if g.SampleRate > 0 {
		cfg.SampleRateHertz = int32(g.SampleRate)
	}

	return &speechpb.LongRunningRecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	}
}

// segmentsFromGoogle maps each recognition result to one segment spanning its
// first to last word. Results without word timings start where the previous
// result ended.
func segmentsFromGoogle(results []*speechpb.SpeechRecognitionResult) []srt.Segment {
	segments := make([]srt.Segment, 0, len(results))
	previousEnd := 0.0

	for _, result := range results {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		best := alternatives[0]

		start := previousEnd
		end := result.GetResultEndTime().AsDuration().Seconds()
		if words := best.GetWords(); len(words) > 0 {
			start = words[0].GetStartTime().AsDuration().Seconds()
			end = words[len(words)-1].GetEndTime().AsDuration().Seconds()
		}

		segments = append(segments, srt.Segment{
			Start: start,
			End:   end,
			Text:  strings.TrimSpace(best.GetTranscript()),
		})
		previousEnd = end
	}

	return segments
}

func googleLanguageCode(language string) string {
	lang := strings.TrimSpace(language)
	switch strings.ToLower(lang) {
	case "", "auto", "en":
		return "en-US"
	default:
		return lang
	}
}

func (g *Google) log() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
