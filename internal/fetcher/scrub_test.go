package fetcher

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestScrubWriterRedactsSecret(t *testing.T) {
	buf := captureLogs(t)

	w := newScrubWriter("hunter2")
	_, _ = w.Write([]byte("token is hunter2 ok\n"))

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, redacted) {
		t.Fatalf("expected redaction marker in output: %s", out)
	}
}

func TestScrubWriterBuffersPartialLines(t *testing.T) {
	buf := captureLogs(t)

	w := newScrubWriter("")
	_, _ = w.Write([]byte("partial"))
	if strings.Contains(buf.String(), "partial") {
		t.Fatal("partial line logged before newline")
	}

	_, _ = w.Write([]byte(" line\n"))
	if !strings.Contains(buf.String(), "partial line") {
		t.Fatalf("expected completed line in output: %s", buf.String())
	}
}

func TestScrubWriterFlushEmitsRemainder(t *testing.T) {
	buf := captureLogs(t)

	w := newScrubWriter("s3cret")
	_, _ = w.Write([]byte("tail s3cret"))
	w.Flush()

	out := buf.String()
	if strings.Contains(out, "s3cret") {
		t.Fatalf("secret leaked via flush: %s", out)
	}
	if !strings.Contains(out, "tail") {
		t.Fatalf("expected flushed remainder in output: %s", out)
	}
}
