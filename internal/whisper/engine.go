package whisper

import (
	"context"

	"github.com/fmueller/voxsrt/internal/srt"
)

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Language  string
}

// Engine turns an audio file into timed segments, in playback order.
type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) ([]srt.Segment, error)
}
