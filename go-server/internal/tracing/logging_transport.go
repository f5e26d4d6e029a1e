package tracing

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoggingTransport is an http.RoundTripper that logs outbound requests made
// by the telemetry exporters. It wraps the default transport.
type LoggingTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func NewLoggingTransport(logger *zap.Logger) *LoggingTransport {
	return &LoggingTransport{
		base:   http.DefaultTransport,
		logger: logger,
	}
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.logger.Warn("Exporter request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return resp, err
	}

	t.logger.Debug("Exporter request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}
