package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	crashBufferMax  = 1000
	crashBufferKeep = 800
)

// CrashBuffer keeps a bounded tail of recent log output in memory. Nothing is
// written to disk during normal operation; Dump flushes the tail to a crash
// file only when the process is exiting abnormally.
type CrashBuffer struct {
	mu         sync.Mutex
	lines      []string
	partial    bytes.Buffer
	normalExit bool
	dir        string
}

// NewCrashBuffer returns a buffer that will write crash dumps under dir.
func NewCrashBuffer(dir string) *CrashBuffer {
	return &CrashBuffer{dir: dir}
}

// Write implements io.Writer so the buffer can sit behind an io.MultiWriter.
// Input is split on newlines; incomplete trailing fragments are held until the
// next write completes them.
func (b *CrashBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		b.lines = append(b.lines, string(data[:idx]))
		b.partial.Next(idx + 1)
	}

	if len(b.lines) > crashBufferMax {
		trimmed := make([]string, crashBufferKeep)
		copy(trimmed, b.lines[len(b.lines)-crashBufferKeep:])
		b.lines = trimmed
	}

	return len(p), nil
}

// MarkNormalExit suppresses any subsequent Dump. Call it on the clean
// shutdown path so routine restarts never leave crash files behind.
func (b *CrashBuffer) MarkNormalExit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.normalExit = true
}

// Dump writes the buffered tail to a timestamped file under the crash
// directory. It is a no-op after MarkNormalExit or when nothing was logged.
// The returned path is empty when no file was written.
func (b *CrashBuffer) Dump(reason string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.normalExit || (len(b.lines) == 0 && b.partial.Len() == 0) {
		return "", nil
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}

	name := fmt.Sprintf("crash_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(b.dir, name)

	var out bytes.Buffer
	fmt.Fprintf(&out, "crash dump at %s\n", time.Now().Format(time.RFC3339))
	if reason != "" {
		fmt.Fprintf(&out, "reason: %s\n", reason)
	}
	out.WriteString("\n")
	for _, line := range b.lines {
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if b.partial.Len() > 0 {
		out.Write(b.partial.Bytes())
		out.WriteByte('\n')
	}

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write crash dump: %w", err)
	}
	return path, nil
}
