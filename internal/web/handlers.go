package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/fmueller/voxsrt/internal/metrics"
	"github.com/fmueller/voxsrt/internal/session"
	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/fmueller/voxsrt/internal/version"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const uploadField = "audio"

var (
	ErrUnsupportedType = errors.New("only .mp3 audio files are accepted")
	ErrMissingUpload   = errors.New("multipart field \"audio\" is required")
)

type subtitleResponse struct {
	FileName string `json:"filename"`
	Content  string `json:"content"`
	Segments int    `json:"segments"`
	Cached   bool   `json:"cached"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Current()})
}

func (s *Server) createSubtitles(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	header, err := c.FormFile(uploadField)
	if err != nil {
		status, cause := http.StatusBadRequest, ErrMissingUpload
		if isTooLarge(err) {
			status, cause = http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d MB", s.maxUpload>>20)
		}
		s.reject(c, status, cause)
		return
	}

	if !isMP3(header.Filename) {
		s.reject(c, http.StatusUnsupportedMediaType, ErrUnsupportedType)
		return
	}

	file, err := header.Open()
	if err != nil {
		s.reject(c, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	cache := s.store.Get(sessionID(c))
	s.metrics.SetSessions(s.store.Len())

	result, err := s.flow.Process(c.Request.Context(), cache, session.Upload{Name: header.Filename, Body: file})
	if err != nil {
		_ = c.Error(err)
		s.logger.Error("subtitle generation failed", zap.String("audio", header.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "subtitle generation failed"})
		return
	}

	if result.Content == "" {
		s.logger.Warn("no speech detected", zap.String("audio", header.Filename))
	}
	c.JSON(http.StatusOK, toResponse(result.Document, result.Cached))
}

func (s *Server) getSubtitles(c *gin.Context) {
	doc, ok := s.cachedDocument(c)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: session.ErrNoDocument.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(doc, true))
}

func (s *Server) downloadSubtitles(c *gin.Context) {
	doc, ok := s.cachedDocument(c)
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: session.ErrNoDocument.Error()})
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	c.Data(http.StatusOK, srt.ContentType, []byte(doc.Content))
}

func (s *Server) cachedDocument(c *gin.Context) (session.Document, bool) {
	cache, ok := s.store.Lookup(sessionID(c))
	if !ok {
		return session.Document{}, false
	}
	return cache.Get()
}

func (s *Server) reject(c *gin.Context, status int, err error) {
	s.metrics.CountUpload(metrics.OutcomeRejected)
	s.logger.Info("upload rejected", zap.Int("status", status), zap.Error(err))
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func toResponse(doc session.Document, cached bool) subtitleResponse {
	return subtitleResponse{
		FileName: doc.FileName,
		Content:  doc.Content,
		Segments: doc.Segments,
		Cached:   cached,
	}
}

func isMP3(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".mp3")
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
