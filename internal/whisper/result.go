package whisper

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fmueller/voxsrt/internal/srt"
)

// BlankAudioMarker is the text whisper-cli emits for a span without speech.
const BlankAudioMarker = "[BLANK_AUDIO]"

// cliResult mirrors the subset of whisper-cli's -oj output that carries timing.
type cliResult struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

// ParseJSONOutput decodes whisper-cli JSON output into segments. Offsets are
// reported in milliseconds. Blank-audio markers are dropped, so silence yields
// no segments.
func ParseJSONOutput(r io.Reader) ([]srt.Segment, error) {
	var parsed cliResult
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode whisper json output: %w", err)
	}

	segments := make([]srt.Segment, 0, len(parsed.Transcription))
	for _, entry := range parsed.Transcription {
		if isBlankAudio(entry.Text) {
			continue
		}
		segments = append(segments, srt.Segment{
			Start: float64(entry.Offsets.From) / 1000,
			End:   float64(entry.Offsets.To) / 1000,
			Text:  strings.TrimSpace(entry.Text),
		})
	}

	return segments, nil
}

func isBlankAudio(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), BlankAudioMarker)
}
