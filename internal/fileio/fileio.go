// Package fileio implements the post-exchange collaborators: saving the
// response text to disk and launching an external diff tool against a
// diff target.
package fileio

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rashkov/gish/internal/diff"
	"github.com/rashkov/gish/internal/pathutil"
)

// Saver writes response text to disk so it can be inspected or compared.
type Saver struct {
	dir    string
	logger *zap.Logger
}

// NewSaver creates a saver. dir is where responses land when there is no
// diff target to place them next to.
func NewSaver(dir string, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{dir: pathutil.Normalize(dir), logger: logger}
}

// Save writes text to a file and returns its path. With a diff target
// the file lands next to the target as <name>.response<ext>; otherwise a
// timestamped file goes into the save directory. Returns "" when saving
// is off and there is no diff target.
func (s *Saver) Save(text, diffTarget string, save bool) (string, error) {
	if !save && diffTarget == "" {
		return "", nil
	}

	var path string
	if diffTarget != "" {
		target := pathutil.Normalize(diffTarget)
		ext := filepath.Ext(target)
		path = strings.TrimSuffix(target, ext) + ".response" + ext
	} else {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create save directory: %w", err)
		}
		name := fmt.Sprintf("response_%s.txt", time.Now().Format("20060102_150405"))
		path = filepath.Join(s.dir, name)
	}

	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to save response: %w", err)
	}
	s.logger.Debug("response saved", zap.String("path", path))
	return path, nil
}

// Launcher spawns the configured external diff tool, inheriting the
// terminal. With no tool configured it prints a unified diff instead.
type Launcher struct {
	command string
	out     io.Writer
	logger  *zap.Logger
}

// NewLauncher creates a launcher. command may carry arguments
// ("code --diff"); an empty command selects the in-terminal fallback
// written to out.
func NewLauncher(command string, out io.Writer, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Launcher{command: command, out: out, logger: logger}
}

// Launch compares newFile against diffFile.
func (l *Launcher) Launch(ctx context.Context, newFile, diffFile string) error {
	if l.command == "" {
		return l.printUnified(newFile, diffFile)
	}

	parts := strings.Fields(l.command)
	args := append(parts[1:], diffFile, newFile)
	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	l.logger.Debug("launching diff tool",
		zap.String("command", l.command),
		zap.String("old", diffFile),
		zap.String("new", newFile))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("diff command %q failed: %w", l.command, err)
	}
	return nil
}

func (l *Launcher) printUnified(newFile, diffFile string) error {
	oldData, err := os.ReadFile(diffFile)
	if err != nil {
		return fmt.Errorf("failed to read diff target: %w", err)
	}
	newData, err := os.ReadFile(newFile)
	if err != nil {
		return fmt.Errorf("failed to read response file: %w", err)
	}

	unified := diff.Unified(diffFile, newFile, string(oldData), string(newData))
	if unified == "" {
		fmt.Fprintf(l.out, "no differences between %s and %s\n", diffFile, newFile)
		return nil
	}
	fmt.Fprint(l.out, unified)
	return nil
}
