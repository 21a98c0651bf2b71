package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxsrt/internal/metrics"
	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/fmueller/voxsrt/internal/transcribe"
	"go.uber.org/zap"
)

// Upload is one audio file received from the user.
type Upload struct {
	Name string
	Body io.Reader
}

type Result struct {
	Document
	Cached bool
}

// Flow turns uploads into subtitle documents, reusing a session's cached
// document while the same file name is uploaded again.
type Flow struct {
	Transcriber transcribe.Transcriber
	TempDir     string
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Process runs one upload through cache lookup, transcription and assembly.
// Transcriber errors are returned as-is (wrapped) and leave the cache empty.
func (f *Flow) Process(ctx context.Context, cache *Cache, upload Upload) (Result, error) {
	if f.Transcriber == nil {
		return Result{}, errors.New("no transcriber configured")
	}
	if strings.TrimSpace(upload.Name) == "" {
		return Result{}, errors.New("upload name is required")
	}

	cache.work.Lock()
	defer cache.work.Unlock()

	if cache.Observe(upload.Name) {
		f.log().Debug("new audio file; cached subtitles dropped", zap.String("audio", upload.Name))
	}

	if doc, ok := cache.Get(); ok {
		f.log().Info("reusing cached subtitles", zap.String("audio", upload.Name), zap.String("subtitles", doc.FileName))
		f.Metrics.CountUpload(metrics.OutcomeCached)
		return Result{Document: doc, Cached: true}, nil
	}

	audioPath, err := f.persist(upload)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			f.log().Warn("failed to remove temporary audio", zap.String("path", audioPath), zap.Error(err))
		}
	}()

	f.log().Info("transcribing...", zap.String("audio", upload.Name))
	started := time.Now()
	segments, err := f.Transcriber.Transcribe(ctx, audioPath)
	elapsed := time.Since(started)
	if err != nil {
		f.log().Warn("transcription failed", zap.String("audio", upload.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		f.Metrics.CountUpload(metrics.OutcomeFailed)
		return Result{}, fmt.Errorf("transcribe %s: %w", upload.Name, err)
	}
	f.Metrics.ObserveTranscription(elapsed, len(segments))
	f.Metrics.CountUpload(metrics.OutcomeTranscribed)

	doc := Document{
		FileName: srt.FileName(upload.Name),
		Content:  srt.Assemble(segments),
		Segments: len(segments),
	}
	cache.Set(upload.Name, doc)

	f.log().Info("subtitles generated",
		zap.String("audio", upload.Name),
		zap.String("subtitles", doc.FileName),
		zap.Int("segments", doc.Segments),
		zap.Duration("elapsed", elapsed),
	)
	return Result{Document: doc}, nil
}

func (f *Flow) persist(upload Upload) (string, error) {
	ext := ".mp3"
	if audioExt := strings.ToLower(filepath.Ext(upload.Name)); audioExt != "" {
		ext = audioExt
	}

	tmp, err := os.CreateTemp(f.TempDir, "voxsrt-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temporary audio file: %w", err)
	}

	written, copyErr := io.Copy(tmp, upload.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write temporary audio file: %w", err)
	}

	f.log().Debug("upload persisted", zap.String("path", tmp.Name()), zap.Int64("bytes", written))
	return tmp.Name(), nil
}

func (f *Flow) log() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}
