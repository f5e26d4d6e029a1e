package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger built by InitLokiLogger. It always
// writes to the console; when LOKI_URL is set it also pushes every entry to
// the Loki push API.
var Logger *zap.Logger

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiCore struct {
	zapcore.LevelEnabler
	encoder zapcore.Encoder
	client  *http.Client
	url     string
	labels  map[string]string
}

func (c *lokiCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.encoder = c.encoder.Clone()
	for _, f := range fields {
		f.AddTo(clone.encoder)
	}
	return &clone
}

func (c *lokiCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *lokiCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.encoder.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := buf.String()
	buf.Free()

	labels := map[string]string{"level": ent.Level.String()}
	for k, v := range c.labels {
		labels[k] = v
	}

	payload := lokiPushRequest{
		Streams: []lokiStream{{
			Stream: labels,
			Values: [][]string{{
				strconv.FormatInt(ent.Time.UnixNano(), 10),
				line,
			}},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Loki being down must not take logging with it; the console core
		// still has the entry.
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "loki push rejected: %s\n", resp.Status)
	}
	return nil
}

func (c *lokiCore) Sync() error { return nil }

// InitLokiLogger builds the global logger: a console core, plus a Loki push
// core when LOKI_URL is set.
func InitLokiLogger(serviceName, environment string) error {
	consoleConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoder := zapcore.NewConsoleEncoder(consoleConfig)
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zapcore.InfoLevel)

	cores := []zapcore.Core{consoleCore}

	if lokiURL := os.Getenv("LOKI_URL"); lokiURL != "" {
		lokiConfig := zap.NewProductionEncoderConfig()
		lokiConfig.TimeKey = "ts"
		lokiConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		cores = append(cores, &lokiCore{
			LevelEnabler: zapcore.InfoLevel,
			encoder:      zapcore.NewJSONEncoder(lokiConfig),
			client:       &http.Client{Timeout: 10 * time.Second},
			url:          lokiURL,
			labels: map[string]string{
				"service":     serviceName,
				"environment": environment,
			},
		})
	}

	Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return nil
}

// Shutdown flushes the logger. Sync errors on stdout are expected on some
// platforms and ignored.
func Shutdown(ctx context.Context) error {
	if Logger != nil {
		_ = Logger.Sync()
	}
	return nil
}
