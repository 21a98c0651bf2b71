package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fmueller/voxsrt/internal/metrics"
	"github.com/fmueller/voxsrt/internal/session"
	"github.com/fmueller/voxsrt/internal/srt"
	"github.com/fmueller/voxsrt/internal/transcribe"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	server  *Server
	metrics *metrics.Metrics
	calls   *atomic.Int32
}

func newTestServer(t *testing.T, segments []srt.Segment, err error) testServer {
	t.Helper()

	calls := &atomic.Int32{}
	m := metrics.New()
	flow := &session.Flow{
		Transcriber: transcribe.TranscriberFunc(func(context.Context, string) ([]srt.Segment, error) {
			calls.Add(1)
			return segments, err
		}),
		TempDir: t.TempDir(),
		Metrics: m,
	}

	return testServer{
		server:  NewServer(Options{Flow: flow, Metrics: m, MaxUploadBytes: 1 << 20}),
		metrics: m,
		calls:   calls,
	}
}

func multipartBody(t *testing.T, field, name string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &body, w.FormDataContentType()
}

func uploadRequest(t *testing.T, name string, payload []byte, cookie *http.Cookie) *http.Request {
	t.Helper()

	body, contentType := multipartBody(t, "audio", name, payload)
	req := httptest.NewRequest(http.MethodPost, "/api/subtitles", body)
	req.Header.Set("Content-Type", contentType)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("response did not set %s cookie", sessionCookie)
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) subtitleResponse {
	t.Helper()

	var resp subtitleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIndexServesPage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	rec := serve(ts.server, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Subtitle Generator")
	require.Contains(t, rec.Body.String(), "Generate a .srt file from an Audio file (mp3)")
}

func TestUploadGeneratesAndCachesSubtitles(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []srt.Segment{{Start: 0, End: 1.2, Text: "Hello"}}, nil)

	first := serve(ts.server, uploadRequest(t, "talk.mp3", []byte("ID3"), nil))
	require.Equal(t, http.StatusOK, first.Code)
	cookie := sessionCookieFrom(t, first)

	resp := decode(t, first)
	require.Equal(t, "talk.srt", resp.FileName)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,200\nHello\n\n", resp.Content)
	require.Equal(t, 1, resp.Segments)
	require.False(t, resp.Cached)

	second := serve(ts.server, uploadRequest(t, "talk.mp3", []byte("ID3"), cookie))
	require.Equal(t, http.StatusOK, second.Code)
	require.True(t, decode(t, second).Cached)
	require.EqualValues(t, 1, ts.calls.Load())

	require.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Uploads.WithLabelValues(metrics.OutcomeTranscribed)))
	require.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Uploads.WithLabelValues(metrics.OutcomeCached)))
}

func TestUploadsAreIsolatedPerSession(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []srt.Segment{{Start: 0, End: 1, Text: "x"}}, nil)

	first := serve(ts.server, uploadRequest(t, "talk.mp3", []byte("a"), nil))
	require.Equal(t, http.StatusOK, first.Code)

	other := serve(ts.server, uploadRequest(t, "talk.mp3", []byte("a"), nil))
	require.Equal(t, http.StatusOK, other.Code)
	require.False(t, decode(t, other).Cached)
	require.EqualValues(t, 2, ts.calls.Load())
}

func TestUploadRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		status int
	}{
		{
			name: "wrong extension",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "talk.wav", []byte("RIFF"), nil)
			},
			status: http.StatusUnsupportedMediaType,
		},
		{
			name: "missing field",
			req: func(t *testing.T) *http.Request {
				body, contentType := multipartBody(t, "file", "talk.mp3", []byte("ID3"))
				req := httptest.NewRequest(http.MethodPost, "/api/subtitles", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "talk.mp3", bytes.Repeat([]byte{'x'}, 2<<20), nil)
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ts := newTestServer(t, nil, nil)
			rec := serve(ts.server, tc.req(t))

			require.Equal(t, tc.status, rec.Code)
			require.Zero(t, ts.calls.Load())
			require.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.Uploads.WithLabelValues(metrics.OutcomeRejected)))
		})
	}
}

func TestUploadTranscriptionFailure(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, errors.New("engine exploded"))

	rec := serve(ts.server, uploadRequest(t, "talk.mp3", []byte("ID3"), nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "engine exploded")

	get := httptest.NewRequest(http.MethodGet, "/api/subtitles", nil)
	get.AddCookie(sessionCookieFrom(t, rec))
	require.Equal(t, http.StatusNotFound, serve(ts.server, get).Code)
}

func TestGetAndDownloadSubtitles(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []srt.Segment{{Start: 1, End: 2, Text: "Hi"}}, nil)

	missing := serve(ts.server, httptest.NewRequest(http.MethodGet, "/api/subtitles", nil))
	require.Equal(t, http.StatusNotFound, missing.Code)

	created := serve(ts.server, uploadRequest(t, "clip.MP3", []byte("ID3"), nil))
	require.Equal(t, http.StatusOK, created.Code)
	cookie := sessionCookieFrom(t, created)

	get := httptest.NewRequest(http.MethodGet, "/api/subtitles", nil)
	get.AddCookie(cookie)
	rec := serve(ts.server, get)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	require.Equal(t, "clip.srt", resp.FileName)
	require.True(t, resp.Cached)

	download := httptest.NewRequest(http.MethodGet, "/api/subtitles/download", nil)
	download.AddCookie(cookie)
	rec = serve(ts.server, download)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, srt.ContentType, rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename=clip.srt`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\nHi\n\n", rec.Body.String())
}

func TestMalformedSessionCookieIsReplaced(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/subtitles", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "not-a-uuid"})

	rec := serve(ts.server, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	cookie := sessionCookieFrom(t, rec)
	require.NotEqual(t, "not-a-uuid", cookie.Value)
	require.True(t, cookie.HttpOnly)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)

	health := serve(ts.server, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, health.Code)
	require.Contains(t, health.Body.String(), `"status":"ok"`)

	rec := serve(ts.server, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "voxsrt_"), "expected voxsrt metrics in output")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- ts.server.Run(ctx, "127.0.0.1:0") }()
	cancel()

	require.NoError(t, <-done)
}
