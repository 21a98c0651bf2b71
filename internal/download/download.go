// Package download fetches speech model files. Bytes land in a .part file and
// are hashed on the way in; only a verified file is renamed into place.
package download

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrChecksumMismatch is returned when the fetched bytes do not hash to the
// expected sha256. It is never retried.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Temporary reports whether a later attempt could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

const (
	userAgent      = "voxsrt/1"
	lfsOIDPrefix   = "oid sha256:"
	partSuffix     = ".part"
	defaultRetries = 3
	defaultBackoff = 300 * time.Millisecond
)

var hexDigestPattern = regexp.MustCompile(`(?i)\b([a-f0-9]{64})\b`)

type Options struct {
	URL         string
	Destination string
	// ExpectedSHA256 wins over ChecksumURL. With neither set the file is
	// stored unverified.
	ExpectedSHA256 string
	ChecksumURL    string
	Retries        int
	// Backoff is multiplied by the attempt number between retries.
	Backoff     time.Duration
	NoProgress  bool
	Description string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

func (o Options) withDefaults() (Options, error) {
	if strings.TrimSpace(o.URL) == "" {
		return o, errors.New("download URL is required")
	}
	if strings.TrimSpace(o.Destination) == "" {
		return o, errors.New("destination path is required")
	}
	if o.Retries <= 0 {
		o.Retries = defaultRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultBackoff
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if strings.TrimSpace(o.Description) == "" {
		o.Description = "downloading " + filepath.Base(o.Destination)
	}
	o.ExpectedSHA256 = normalizeDigest(o.ExpectedSHA256)
	return o, nil
}

// DownloadFile fetches opts.URL into opts.Destination. Network errors and 5xx
// responses are retried with linear backoff; 4xx responses and checksum
// mismatches fail at once.
func DownloadFile(ctx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	if opts.ExpectedSHA256 == "" && opts.ChecksumURL != "" {
		digest, err := ResolveExpectedChecksum(ctx, opts.ChecksumURL, filepath.Base(opts.Destination), opts.HTTPClient)
		if err != nil {
			return fmt.Errorf("fetch checksum: %w", err)
		}
		opts.ExpectedSHA256 = digest
	}

	if err := os.MkdirAll(filepath.Dir(opts.Destination), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= opts.Retries; attempt++ {
		if attempt > 1 {
			opts.Logger.Warn("retrying download",
				zap.Int("attempt", attempt),
				zap.Int("max", opts.Retries),
				zap.String("url", opts.URL),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * opts.Backoff):
			}
		}

		lastErr = fetchOnce(ctx, opts)
		if lastErr == nil || !retryable(ctx, lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrChecksumMismatch) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

// ResolveExpectedChecksum fetches a checksum document and extracts the digest
// for fileName from it.
func ResolveExpectedChecksum(ctx context.Context, checksumURL, fileName string, client *http.Client) (string, error) {
	if strings.TrimSpace(checksumURL) == "" {
		return "", errors.New("checksum URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}

	resp, err := get(ctx, client, checksumURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read checksum document: %w", err)
	}
	return ParseChecksum(content, fileName)
}

// ParseChecksum accepts a git-lfs pointer or sha256sum output. For sha256sum
// output the line naming fileName is preferred.
func ParseChecksum(content []byte, fileName string) (string, error) {
	var fallback string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := strings.CutPrefix(line, lfsOIDPrefix); ok {
			if digest := digestIn(rest); digest != "" {
				return digest, nil
			}
			continue
		}

		digest := digestIn(line)
		if digest == "" {
			continue
		}
		if fileName != "" && strings.Contains(line, fileName) {
			return digest, nil
		}
		if fallback == "" {
			fallback = digest
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum document: %w", err)
	}

	if fallback == "" {
		return "", errors.New("sha256 checksum not found")
	}
	return fallback, nil
}

// VerifyFileChecksum hashes path and compares it to expectedSHA256. An empty
// expectation always passes.
func VerifyFileChecksum(path, expectedSHA256 string) error {
	expected := normalizeDigest(expectedSHA256)
	if expected == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash file: %w", err)
	}
	return compareDigest(expected, h.Sum(nil))
}

func fetchOnce(ctx context.Context, opts Options) (err error) {
	partPath := opts.Destination + partSuffix
	_ = os.Remove(partPath)

	resp, err := get(ctx, opts.HTTPClient, opts.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	part, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = part.Close()
		if err != nil {
			_ = os.Remove(partPath)
		}
	}()

	h := sha256.New()
	sinks := []io.Writer{part, h}
	bar := newByteBar(opts, resp.ContentLength)
	if bar != nil {
		sinks = append(sinks, bar)
	}

	if _, err = io.Copy(io.MultiWriter(sinks...), resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if opts.ExpectedSHA256 != "" {
		if err = compareDigest(opts.ExpectedSHA256, h.Sum(nil)); err != nil {
			return err
		}
	}
	if err = part.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = part.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(partPath, opts.Destination); err != nil {
		return fmt.Errorf("move temp file into destination: %w", err)
	}
	return nil
}

func get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp, nil
}

// newByteBar returns nil unless stderr is a terminal and the size is known.
func newByteBar(opts Options, size int64) *progressbar.ProgressBar {
	if opts.NoProgress || size <= 0 || !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil
	}
	return progressbar.NewOptions64(
		size,
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}

func compareDigest(expected string, sum []byte) error {
	if actual := hex.EncodeToString(sum); actual != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

func digestIn(s string) string {
	match := hexDigestPattern.FindStringSubmatch(s)
	if len(match) < 2 {
		return ""
	}
	return strings.ToLower(match[1])
}

func normalizeDigest(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
