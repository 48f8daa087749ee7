package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/xivwolf/a-tour-ingame/config"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/sink"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
	"github.com/xivwolf/a-tour-ingame/internal/service/dto"
)

const (
	ServiceName      = "touralert"
	ServiceNamespace = "a-tour-ingame"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Role-filtered notification stream client",
		Version: fmt.Sprintf("%s (%s, %s, built %s, committed %s)", version, commit, branch, buildTimestamp, commitDate),
		Commands: []*cli.Command{
			runCmd(),
			decodeCmd(),
			soundCmd(),
		},
	}

	return app.Run(os.Args)
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Aliases:   []string{"r"},
		Usage:     "Connect to the notification stream and raise alerts",
		ArgsUsage: "[--address URL] [--identity NAME] [--log-level LEVEL] [--status-listen ADDR]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

func decodeCmd() *cli.Command {
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode one payload from stdin and show which rules it matches",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), c.Args().Slice())
			if err != nil {
				return err
			}
			return Decode(os.Stdin, c.App.Writer, model.NewRuleSet(cfg.Rules()...))
		},
	}
}

func soundCmd() *cli.Command {
	return &cli.Command{
		Name:  "sound",
		Usage: "Play the configured alert sound once at the configured volume",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config_file",
				Usage: "Path to the configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), c.Args().Slice())
			if err != nil {
				return err
			}
			logger, err := NewLogger(cfg.Log, os.Stderr)
			if err != nil {
				return err
			}
			player, err := sink.NewPlayer(cfg.Sound.Command, logger)
			if err != nil {
				return err
			}
			return PlaySound(c.Context, cfg, player, logger)
		},
	}
}

// PlaySound plays the sound configured in cfg through p and waits for it.
func PlaySound(ctx context.Context, cfg *config.Config, p sink.Player, logger *slog.Logger) error {
	s := sink.NewSound(model.SoundSettings{
		File:   cfg.Sound.File,
		Dir:    cfg.Sound.Dir,
		Volume: cfg.Sound.Volume,
	}, 0, p, logger)
	defer func() { _ = s.Close(context.Background()) }()

	if err := s.Play(ctx); err != nil {
		return err
	}
	logger.Info("[SOUND] test sound played",
		slog.String("file", s.Path()),
		slog.Float64("volume", s.Settings().Volume),
	)
	return nil
}

// DecodeResult is the output of the decode command.
type DecodeResult struct {
	Message model.InboundMessage `json:"message"`
	Notify  bool                 `json:"notify"`
	Rules   []string             `json:"rules"`
}

// Decode reads one payload from r and writes the decoded message and the
// matching rules of rs to w as indented JSON.
func Decode(r io.Reader, w io.Writer, rs model.RuleSet) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	msg, err := dto.DecodeMessage(raw)
	if err != nil {
		return err
	}
	names, ok := service.Match(msg, rs)
	if names == nil {
		names = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(DecodeResult{Message: msg, Notify: ok, Rules: names})
}
