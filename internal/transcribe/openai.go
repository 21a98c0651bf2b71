package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/voxsrt/internal/srt"
	"go.uber.org/zap"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "whisper-1"
)

// OpenAI talks to an OpenAI-compatible /v1/audio/transcriptions endpoint and
// asks for verbose_json so segment timings come back.
type OpenAI struct {
	BaseURL    string
	APIKey     string
	Model      string
	Language   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type openAIResponse struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) ([]srt.Segment, error) {
	if strings.TrimSpace(o.APIKey) == "" {
		return nil, errors.New("openai engine requires OPENAI_API_KEY")
	}

	body, contentType, err := o.buildForm(audioPath)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", contentType)

	o.log().Debug("posting audio to transcription API", zap.String("url", req.URL.String()), zap.String("model", o.model()))
	resp, err := o.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode transcription response: %w", err)
	}

	segments := make([]srt.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		segments = append(segments, srt.Segment{Start: s.Start, End: s.End, Text: strings.TrimSpace(s.Text)})
	}
	return segments, nil
}

func (o *OpenAI) buildForm(audioPath string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"model", o.model()},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	}
	if lang := strings.TrimSpace(o.Language); lang != "" && lang != "auto" {
		fields = append(fields, [2]string{"language", lang})
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", field[0], err)
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", fmt.Errorf("copy audio into form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return &body, mw.FormDataContentType(), nil
}

func (o *OpenAI) endpoint() string {
	base := strings.TrimRight(strings.TrimSpace(o.BaseURL), "/")
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	return base + "/v1/audio/transcriptions"
}

func (o *OpenAI) model() string {
	if strings.TrimSpace(o.Model) == "" {
		return DefaultOpenAIModel
	}
	return o.Model
}

func (o *OpenAI) client() *http.Client {
	if o.HTTPClient == nil {
		return &http.Client{Timeout: 60 * time.Minute}
	}
	return o.HTTPClient
}

func (o *OpenAI) log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
