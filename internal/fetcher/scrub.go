package fetcher

import (
	"bufio"
	"bytes"
	"log/slog"
	"strings"
)

const redacted = "********"

// scrubWriter forwards child process output to the log line by line, replacing
// any occurrence of the credential so it cannot leak through program output.
type scrubWriter struct {
	secret string
	buf    bytes.Buffer
}

func newScrubWriter(secret string) *scrubWriter {
	return &scrubWriter{secret: secret}
}

func (w *scrubWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line stays buffered until the next write or Flush.
			w.buf.WriteString(line)
			break
		}
		w.emit(strings.TrimRight(line, "\n"))
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *scrubWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}
	scanner := bufio.NewScanner(&w.buf)
	for scanner.Scan() {
		w.emit(scanner.Text())
	}
	w.buf.Reset()
}

func (w *scrubWriter) emit(line string) {
	if line == "" {
		return
	}
	if w.secret != "" {
		line = strings.ReplaceAll(line, w.secret, redacted)
	}
	slog.Info("fetch: " + line)
}
