package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JSONLSink writes events as newline-delimited JSON envelope records to
// an io.Writer.
//
// JSONLSink is safe for concurrent use. Writes are serialized using a
// mutex to ensure atomic line writes (no interleaved output).
type JSONLSink struct {
	w  io.Writer
	mu sync.Mutex

	// closed indicates the sink has been closed.
	closed bool
}

// NewJSONLSink creates a sink writing to w (a file, a pipe to the
// delivery worker, etc.).
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Notify implements Sink.
func (s *JSONLSink) Notify(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	rec := Record{
		Type:  event.RecordType(),
		TS:    time.Now().UTC(),
		JobID: event.JobID,
		Data:  data,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	_, err = s.w.Write(line)
	return err
}

// Close marks the sink closed. The underlying writer is not closed;
// the caller owns it.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// LogSink reports events through the structured logger. Used when no
// downstream delivery channel is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a logging sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Notify implements Sink.
func (s *LogSink) Notify(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("job_id", event.JobID),
		zap.String("outcome", string(event.Outcome)),
		zap.String("kind", string(event.Kind)),
		zap.String("format", string(event.Format)),
		zap.String("owner", event.Owner.ID),
	}
	if event.Attachment != nil {
		fields = append(fields,
			zap.String("attachment", event.Attachment.Ref),
			zap.Int64("size_bytes", event.Attachment.SizeBytes))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}

	if event.Outcome == OutcomeCompleted {
		s.logger.Info("export completed", fields...)
	} else {
		s.logger.Warn("export failed", fields...)
	}
	return nil
}

// Memory collects events for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// NewMemory creates an empty collecting sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Notify implements Sink.
func (m *Memory) Notify(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

// Events returns a copy of everything notified so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}
