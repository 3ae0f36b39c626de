package extensionhost

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spirefy/go-extension-host/internal/ctxlog"
)

// Window is the notification surface messages from extensions are shown on.
type Window interface {
	ShowInformationMessage(ctx context.Context, message string) error
}

// WriterWindow prints every message on its own line.
type WriterWindow struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterWindow(w io.Writer) *WriterWindow {
	return &WriterWindow{w: w}
}

func (w *WriterWindow) ShowInformationMessage(_ context.Context, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := fmt.Fprintln(w.w, message)
	return err
}

// LogWindow sends messages to the logger carried by the context.
type LogWindow struct{}

func NewLogWindow() LogWindow {
	return LogWindow{}
}

func (LogWindow) ShowInformationMessage(ctx context.Context, message string) error {
	ctxlog.Info(ctx, "information message", "message", message)
	return nil
}

// RecordingWindow remembers what it was asked to show.
type RecordingWindow struct {
	mu       sync.Mutex
	messages []string
}

func (w *RecordingWindow) ShowInformationMessage(_ context.Context, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, message)
	return nil
}

func (w *RecordingWindow) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.messages))
	copy(out, w.messages)
	return out
}
