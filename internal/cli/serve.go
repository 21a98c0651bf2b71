package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fmueller/voxsrt/internal/metrics"
	"github.com/fmueller/voxsrt/internal/session"
	"github.com/fmueller/voxsrt/internal/transcribe"
	"github.com/fmueller/voxsrt/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	Addr        string
	MaxUploadMB int64
	Transcriber transcribe.Transcriber
}

func newServeCmd(app *appState) *cobra.Command {
	opts := serveOptions{
		Addr:        app.settings.Addr,
		MaxUploadMB: app.settings.MaxUploadMB,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the subtitle generator web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.MaxUploadMB <= 0 {
				return fmt.Errorf("--max-upload-mb must be positive, got %d", opts.MaxUploadMB)
			}

			transcriber, err := app.newTranscriber(cmd.Context())
			if err != nil {
				return err
			}
			opts.Transcriber = transcriber

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.runServer
			}
			return serveFn(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", opts.Addr, "Listen address")
	cmd.Flags().Int64Var(&opts.MaxUploadMB, "max-upload-mb", opts.MaxUploadMB, "Largest accepted upload in MB")
	return cmd
}

func (a *appState) runServer(ctx context.Context, opts serveOptions) error {
	if !a.verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	srv := web.NewServer(web.Options{
		Flow: &session.Flow{
			Transcriber: opts.Transcriber,
			Logger:      a.log(),
			Metrics:     m,
		},
		Store:          session.NewStore(a.settings.SessionTTL),
		Metrics:        m,
		Logger:         a.log(),
		MaxUploadBytes: opts.MaxUploadMB << 20,
	})

	a.log().Info("subtitle generator ready", zap.String("addr", opts.Addr), zap.String("engine", a.engine))
	return srv.Run(ctx, opts.Addr)
}
