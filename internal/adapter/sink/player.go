package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Player starts playback of a sound file. Device output is outside this
// process; a Player only hands the file to something that can play it.
type Player interface {
	Play(ctx context.Context, file string, volume float64) error
}

// CommandPlayer runs an external program per alert. The placeholders
// {file} and {volume} (0-100) are substituted in every argument.
type CommandPlayer struct {
	argv    []string
	timeout time.Duration
}

func NewCommandPlayer(argv []string, timeout time.Duration) (*CommandPlayer, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("sound command is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CommandPlayer{argv: append([]string(nil), argv...), timeout: timeout}, nil
}

func (p *CommandPlayer) Play(ctx context.Context, file string, volume float64) error {
	r := strings.NewReplacer(
		"{file}", file,
		"{volume}", strconv.Itoa(int(volume*100+0.5)),
	)
	args := make([]string, len(p.argv))
	for i, a := range p.argv {
		args[i] = r.Replace(a)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// NewPlayer returns a CommandPlayer for command, or a LogPlayer when no
// command is configured.
func NewPlayer(command []string, logger *slog.Logger) (Player, error) {
	if len(command) == 0 {
		return LogPlayer{Logger: logger}, nil
	}
	return NewCommandPlayer(command, 0)
}

// LogPlayer only records that a sound would play.
type LogPlayer struct {
	Logger *slog.Logger
}

func (p LogPlayer) Play(_ context.Context, file string, volume float64) error {
	p.Logger.Info("[SOUND] alert",
		slog.String("file", file),
		slog.Float64("volume", volume),
	)
	return nil
}
