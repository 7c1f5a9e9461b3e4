package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/uxtrace/uxtrace/internal/models"
)

// Grabber is the platform screen-capture primitive. Grab returns the
// captured frame as a renderable data URI.
type Grabber interface {
	Grab(ctx context.Context) (string, error)
}

// GrabberFunc adapts a function to the Grabber interface.
type GrabberFunc func(ctx context.Context) (string, error)

func (f GrabberFunc) Grab(ctx context.Context) (string, error) { return f(ctx) }

// ExecGrabber shells out to a screenshot command that writes a JPEG to the
// path given as its last argument.
type ExecGrabber struct {
	command []string
}

// NewExecGrabber builds a grabber around command, or the platform default
// when command is empty.
func NewExecGrabber(command string) (*ExecGrabber, error) {
	if command == "" {
		switch runtime.GOOS {
		case "darwin":
			command = "screencapture -x -t jpg"
		case "linux":
			command = "gnome-screenshot -f"
		default:
			return nil, fmt.Errorf("no default capture command for %s, set agent.capture_command", runtime.GOOS)
		}
	}
	return &ExecGrabber{command: strings.Fields(command)}, nil
}

func (g *ExecGrabber) Grab(ctx context.Context) (string, error) {
	tmpDir, err := os.MkdirTemp("", "uxtrace-capture-*")
	if err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outPath := filepath.Join(tmpDir, "frame.jpg")
	args := append(append([]string(nil), g.command[1:]...), outPath)
	cmd := exec.CommandContext(ctx, g.command[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("capture command failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return "", fmt.Errorf("read captured frame: %w", err)
	}
	return models.DefaultImagePrefix + base64.StdEncoding.EncodeToString(data), nil
}
