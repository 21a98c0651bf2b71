package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxsrt/internal/download"
	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/fmueller/voxsrt/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const stdoutTarget = "-"

func newTranscribeCmd(app *appState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Generate an SRT subtitle file from an audio file",
		Long: "Transcribe an audio file and write <name>.srt next to it.\n" +
			"Use --output to choose another path, or --output - to print the subtitles.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath := filepath.Clean(args[0])
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file not found: %w", err)
			}

			content, segments, err := app.generateSubtitles(cmd.Context(), audioPath)
			if err != nil {
				return err
			}
			if segments == 0 {
				app.log().Warn(noSpeechHint(), zap.String("audio", audioPath))
			}

			if output == stdoutTarget {
				_, err := io.WriteString(cmd.OutOrStdout(), content)
				return err
			}

			target := subtitlePath(audioPath, output)
			if err := writeSubtitles(target, content); err != nil {
				return err
			}
			app.log().Info("subtitles written", zap.String("path", target), zap.Int("segments", segments))
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Subtitle destination; defaults to <audio>.srt next to the input, - for stdout")
	return cmd
}

func (a *appState) generateSubtitles(ctx context.Context, audioPath string) (string, int, error) {
	transcriber, err := a.newTranscriber(ctx)
	if err != nil {
		return "", 0, err
	}

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("engine", a.engine), zap.String("language", a.language))
	spin := startSpinner(a.progressEnabled(), "Generating your subtitles")
	segments, err := transcriber.Transcribe(ctx, audioPath)
	elapsed := spin.Stop()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", 0, err
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", elapsed), zap.Int("segments", len(segments)))

	return srt.Assemble(segments), len(segments), nil
}

func subtitlePath(audioPath, output string) string {
	if strings.TrimSpace(output) != "" {
		return filepath.Clean(output)
	}
	return filepath.Join(filepath.Dir(audioPath), srt.FileName(audioPath))
}

func writeSubtitles(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

func noSpeechHint() string {
	return "No speech detected; the subtitle file is empty. Check the audio track and --language, then try again."
}

func (a *appState) ensureModelAvailable(ctx context.Context) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(a.model, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}
	if !resolved.SupportsLanguage(a.language) {
		a.log().Warn("model only transcribes English; pick a multilingual model such as tiny for this language",
			zap.String("model", resolved.Name), zap.String("language", a.language))
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `voxsrt setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := a.downloadModel(ctx, resolved, resolved.SHA256); err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

func (a *appState) downloadModel(ctx context.Context, model whisper.ResolvedModel, checksum string) error {
	err := download.DownloadFile(ctx, download.Options{
		URL:            model.URL,
		Destination:    model.Path,
		ExpectedSHA256: checksum,
		ChecksumURL:    model.SHA256URL,
		NoProgress:     a.noProgress,
		Description:    fmt.Sprintf("downloading model %s", model.Name),
		Logger:         a.log(),
	})
	if err != nil {
		return fmt.Errorf("download model %q: %w", model.Name, err)
	}
	return nil
}
