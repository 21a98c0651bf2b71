package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/stretchr/testify/require"
)

func fixedSegments(segments ...srt.Segment) func(context.Context, string) ([]srt.Segment, error) {
	return func(context.Context, string) ([]srt.Segment, error) {
		return segments, nil
	}
}

func TestTranscribeCommandWritesNextToInput(t *testing.T) {
	t.Parallel()

	audioPath := writeAudioFixture(t, "talk.mp3")
	out := new(bytes.Buffer)

	var seen string
	app := &appState{
		transcribeFn: func(_ context.Context, path string) ([]srt.Segment, error) {
			seen = path
			return []srt.Segment{{Start: 0, End: 1.2, Text: "Hello"}, {Start: 1.2, End: 2.5, Text: "world"}}, nil
		},
	}

	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{audioPath})

	require.NoError(t, cmd.Execute())
	require.Equal(t, audioPath, seen)

	target := filepath.Join(filepath.Dir(audioPath), "talk.srt")
	require.Equal(t, target+"\n", out.String())

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,200\nHello\n\n2\n00:00:01,200 --> 00:00:02,500\nworld\n\n", string(content))
}

func TestTranscribeCommandOutputDestinations(t *testing.T) {
	t.Parallel()

	t.Run("stdout", func(t *testing.T) {
		t.Parallel()

		audioPath := writeAudioFixture(t, "clip.mp3")
		out := new(bytes.Buffer)
		app := &appState{transcribeFn: fixedSegments(srt.Segment{Start: 3661.5, End: 3662, Text: "late"})}

		cmd := newTranscribeCmd(app)
		cmd.SetOut(out)
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"--output", "-", audioPath})

		require.NoError(t, cmd.Execute())
		require.Equal(t, "1\n01:01:01,500 --> 01:01:02,000\nlate\n\n", out.String())

		_, err := os.Stat(filepath.Join(filepath.Dir(audioPath), "clip.srt"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("custom path", func(t *testing.T) {
		t.Parallel()

		audioPath := writeAudioFixture(t, "clip.mp3")
		target := filepath.Join(t.TempDir(), "nested", "dir", "custom.srt")
		app := &appState{transcribeFn: fixedSegments(srt.Segment{Start: 0, End: 1, Text: "x"})}

		cmd := newTranscribeCmd(app)
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"-o", target, audioPath})

		require.NoError(t, cmd.Execute())
		content, err := os.ReadFile(target)
		require.NoError(t, err)
		require.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nx\n\n", string(content))
	})
}

func TestTranscribeCommandWritesEmptyDocumentForNoSpeech(t *testing.T) {
	t.Parallel()

	audioPath := writeAudioFixture(t, "silence.mp3")
	app := &appState{transcribeFn: fixedSegments()}

	cmd := newTranscribeCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{audioPath})

	require.NoError(t, cmd.Execute())
	content, err := os.ReadFile(filepath.Join(filepath.Dir(audioPath), "silence.srt"))
	require.NoError(t, err)
	require.Empty(t, content)
}

func TestTranscribeCommandPropagatesEngineFailure(t *testing.T) {
	t.Parallel()

	audioPath := writeAudioFixture(t, "talk.mp3")
	engineErr := errors.New("engine crashed")
	app := &appState{
		transcribeFn: func(context.Context, string) ([]srt.Segment, error) {
			return nil, engineErr
		},
	}

	cmd := newTranscribeCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{audioPath})

	err := cmd.Execute()
	require.ErrorIs(t, err, engineErr)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(audioPath), "talk.srt"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestSubtitlePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		audio  string
		output string
		want   string
	}{
		{name: "next to input", audio: filepath.Join("media", "talk.mp3"), want: filepath.Join("media", "talk.srt")},
		{name: "explicit output", audio: "talk.mp3", output: filepath.Join("out", "x.srt"), want: filepath.Join("out", "x.srt")},
		{name: "blank output falls back", audio: "talk.mp3", output: "  ", want: "talk.srt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, subtitlePath(tt.audio, tt.output))
		})
	}
}
