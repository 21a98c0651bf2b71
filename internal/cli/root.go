package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fmueller/voxsrt/internal/config"
	"github.com/fmueller/voxsrt/internal/logging"
	"github.com/fmueller/voxsrt/internal/platform"
	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/fmueller/voxsrt/internal/transcribe"
	"github.com/fmueller/voxsrt/internal/version"
	"github.com/fmueller/voxsrt/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	engine       string
	model        string
	modelDir     string
	language     string
	autoDownload bool

	settings  config.Settings
	configErr error

	logger *zap.Logger

	transcribeFn func(ctx context.Context, audioPath string) ([]srt.Segment, error)
	serveFn      func(ctx context.Context, opts serveOptions) error
}

func NewRootCmd() *cobra.Command {
	settings, err := config.FromEnv()
	app := &appState{
		engine:       settings.Engine,
		model:        settings.Model,
		modelDir:     settings.ModelDir,
		language:     settings.Language,
		autoDownload: true,
		settings:     settings,
		configErr:    err,
	}

	cmd := &cobra.Command{
		Use:           "voxsrt",
		Short:         "Generate SRT subtitles from MP3 audio",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger

			if app.configErr != nil {
				return fmt.Errorf("read configuration: %w", app.configErr)
			}

			engine, err := transcribe.ParseEngine(app.engine)
			if err != nil {
				return err
			}
			app.engine = engine
			app.language = sanitizeLanguage(app.language)
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindEngineFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndModelDownloadFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindEngineFlags(cmd *cobra.Command, app *appState) {
	usage := fmt.Sprintf("Transcription engine: %s", strings.Join(transcribe.EngineNames(), "|"))
	cmd.PersistentFlags().StringVar(&app.engine, "engine", app.engine, usage)
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.model, "model", app.model, "Whisper model name or model file path")
	cmd.PersistentFlags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
}

func bindLanguageAndModelDownloadFlags(cmd *cobra.Command, app *appState) {
	cmd.PersistentFlags().StringVar(&app.language, "language", app.language, "Language code (auto|en|de|...) for transcription")
	cmd.PersistentFlags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

// newTranscriber builds the engine selected by --engine. For whisper the model
// is resolved (and downloaded if allowed) up front so failures surface before
// any audio is processed.
func (a *appState) newTranscriber(ctx context.Context) (transcribe.Transcriber, error) {
	if a.transcribeFn != nil {
		return transcribe.TranscriberFunc(a.transcribeFn), nil
	}

	switch a.engine {
	case transcribe.EngineOpenAI:
		return &transcribe.OpenAI{
			BaseURL:  a.settings.OpenAIBaseURL,
			APIKey:   a.settings.OpenAIKey,
			Model:    a.settings.OpenAIModel,
			Language: a.language,
			Logger:   a.log(),
		}, nil
	case transcribe.EngineGoogle:
		return &transcribe.Google{
			Language:   a.language,
			SampleRate: a.settings.GoogleSampleRate,
			Logger:     a.log(),
		}, nil
	}

	engine, err := whisper.NewBundledEngine(a.log())
	if err != nil {
		return nil, err
	}
	model, err := a.ensureModelAvailable(ctx)
	if err != nil {
		return nil, err
	}

	language := a.language
	return transcribe.TranscriberFunc(func(ctx context.Context, audioPath string) ([]srt.Segment, error) {
		return engine.Transcribe(ctx, whisper.TranscriptionRequest{
			AudioPath: audioPath,
			ModelPath: model.Path,
			Language:  language,
		})
	}), nil
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func sanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
