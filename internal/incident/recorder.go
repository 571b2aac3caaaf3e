package incident

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder writes one trace file per unexpected failure so the log line can
// stay short.
type Recorder struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(dir string, logger *zap.Logger) *Recorder {
	return &Recorder{dir: dir, logger: logger, now: time.Now}
}

// Record writes the failure with the current stack and returns the file path.
func (r *Recorder) Record(kind string, failure any, fields ...zap.Field) (string, error) {
	return r.write(kind, failure, debug.Stack(), fields...)
}

// Recover is deferred at the command and event boundaries. It swallows a
// panic, records it, and calls onPanic if set.
func (r *Recorder) Recover(scope string, onPanic func(), fields ...zap.Field) {
	recovered := recover()
	if recovered == nil {
		return
	}
	path, err := r.write("Panic", recovered, debug.Stack(), fields...)
	if err != nil {
		r.logger.Error("failed to write incident file", zap.Error(err))
	}
	r.logger.Error("recovered from panic",
		append(fields, zap.String("scope", scope), zap.Any("panic", recovered), zap.String("trace", path))...)
	if onPanic != nil {
		onPanic()
	}
}

func (r *Recorder) write(kind string, failure any, stack []byte, fields ...zap.Field) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create incident dir: %w", err)
	}

	id := uuid.NewString()
	name := fmt.Sprintf("%s-%s-%s.txt", sanitize(kind), r.now().UTC().Format("20060102T150405Z"), id)
	path := filepath.Join(r.dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "incident: %s\n", id)
	fmt.Fprintf(&b, "time: %s\n", r.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "type: %s\n", kind)
	fmt.Fprintf(&b, "error: %v\n", failure)
	for _, field := range fields {
		if field.String != "" {
			fmt.Fprintf(&b, "%s: %s\n", field.Key, field.String)
		}
	}
	b.WriteString("\n")
	b.Write(stack)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write incident file: %w", err)
	}
	return path, nil
}

func sanitize(kind string) string {
	kind = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, kind)
	if kind == "" {
		return "Error"
	}
	return kind
}
