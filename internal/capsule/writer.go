package capsule

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.sr.ht/~adnano/go-gemini"

	"github.com/nao1215/gemirror/internal/log"
)

// ErrUnsafePath is returned for a target path that would leave the
// content root.
var ErrUnsafePath = errors.New("target path escapes the content root")

// Writer writes Gemtext files below a content root.
//
// Design decision: Files are overwritten unconditionally on every run.
// The mirror is a full rebuild, and identical input yields byte-identical
// output, so a rerun over an unchanged site leaves the tree unchanged.
type Writer struct {
	root   string
	logger *slog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// New creates a Writer for the content root.
func New(root string, opts ...Option) *Writer {
	w := &Writer{
		root:   root,
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Root returns the content root.
func (w *Writer) Root() string {
	return w.root
}

// Write writes text to the slash-separated target path below the root,
// creating parent directories as needed.
func (w *Writer) Write(target string, text gemini.Text) error {
	dest, err := w.Path(target)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	if err := writeFile(dest, Render(text)); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	w.logger.Debug("wrote page", "path", target, "lines", len(text))
	return nil
}

// Path returns the file system path of a target path, or ErrUnsafePath.
func (w *Writer) Path(target string) (string, error) {
	if target == "" || strings.Contains(target, "\\") || path.IsAbs(target) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, target)
	}
	cleaned := path.Clean(target)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, target)
	}
	return filepath.Join(w.root, filepath.FromSlash(cleaned)), nil
}

// Render serializes text: one line per element joined by "\n", with a
// trailing newline.
func Render(text gemini.Text) []byte {
	var b strings.Builder
	for _, line := range text {
		b.WriteString(line.String())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// writeFile replaces dest through a temporary file in the same
// directory so that an interrupted run never leaves a truncated page.
func writeFile(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".gemirror-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // write error takes precedence
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil { //nolint:gosec // served files are world-readable
		return err
	}
	return os.Rename(name, dest)
}
