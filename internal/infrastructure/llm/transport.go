package llm

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxLoggedBody caps how much of a request or response body is logged.
const maxLoggedBody = 2048

// LoggingTransport is an http.RoundTripper that logs outbound LLM and embedding
// calls. Bodies are only read and logged when Verbose is set.
type LoggingTransport struct {
	Base    http.RoundTripper
	Logger  *zap.Logger
	Verbose bool
}

// NewHTTPClient returns a client whose calls go through a LoggingTransport.
func NewHTTPClient(logger *zap.Logger, verbose bool) *http.Client {
	return &http.Client{Transport: &LoggingTransport{
		Base:    http.DefaultTransport,
		Logger:  logger.With(zap.String("component", "upstream")),
		Verbose: verbose,
	}}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if !t.Verbose || t.Logger == nil {
		return base.RoundTrip(req)
	}

	fields := []zap.Field{zap.String("method", req.Method), zap.String("url", req.URL.String())}
	if req.Body != nil && req.Body != http.NoBody {
		reqBody, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
		fields = append(fields, zap.String("request_body", truncate(reqBody)))
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	fields = append(fields, zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		t.Logger.Debug("outbound request failed", append(fields, zap.Error(err))...)
		return resp, err
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.Logger.Debug("outbound request",
		append(fields, zap.Int("status", resp.StatusCode), zap.String("response_body", truncate(respBody)))...)
	return resp, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxLoggedBody {
		return s[:maxLoggedBody] + "...(truncated)"
	}
	return s
}
