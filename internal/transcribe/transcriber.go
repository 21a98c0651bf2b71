// Package transcribe defines the speech-to-text capability voxsrt depends on
// and the remote engines that provide it.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/voxsrt/internal/srt"
)

const (
	EngineWhisper = "whisper"
	EngineOpenAI  = "openai"
	EngineGoogle  = "google"
)

var ErrUnknownEngine = errors.New("unknown transcription engine")

// Transcriber converts the audio file at audioPath into segments covering the
// recording, in playback order.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error)
}

type TranscriberFunc func(ctx context.Context, audioPath string) ([]srt.Segment, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error) {
	return f(ctx, audioPath)
}

func EngineNames() []string {
	return []string{EngineWhisper, EngineOpenAI, EngineGoogle}
}

// ParseEngine normalizes an engine name from flags or environment.
func ParseEngine(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return EngineWhisper, nil
	}

	for _, known := range EngineNames() {
		if normalized == known {
			return known, nil
		}
	}

	return "", fmt.Errorf("%w %q (known engines: %s)", ErrUnknownEngine, name, strings.Join(EngineNames(), ", "))
}
