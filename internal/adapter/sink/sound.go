package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/service"
	"golang.org/x/time/rate"
)

// ErrSoundMissing is returned when the configured sound file does not exist.
var ErrSoundMissing = errors.New("sound file not found")

var (
	_ service.Notifier        = (*Sound)(nil)
	_ service.SoundConfigurer = (*Sound)(nil)
)

// Sound plays the configured alert. Bursts inside the minimum interval ring
// once. Playback runs on goroutines owned by Sound and joined by Close.
type Sound struct {
	settings atomic.Pointer[model.SoundSettings]
	limiter  *rate.Limiter
	player   Player
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewSound(s model.SoundSettings, minInterval time.Duration, player Player, logger *slog.Logger) *Sound {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	ctx, cancel := context.WithCancel(context.Background())
	snd := &Sound{
		limiter: rate.NewLimiter(limit, 1),
		player:  player,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	snd.Configure(s)
	return snd
}

func (s *Sound) Name() string { return "sound" }

// Configure replaces the settings; volume is clamped to [0,1].
func (s *Sound) Configure(v model.SoundSettings) {
	v.Volume = min(max(v.Volume, 0), 1)
	s.settings.Store(&v)
}

func (s *Sound) Settings() model.SoundSettings {
	return *s.settings.Load()
}

// Path resolves the sound file against the sound directory. It is empty when
// no file is configured.
func (s *Sound) Path() string {
	return resolve(s.settings.Load())
}

func resolve(v *model.SoundSettings) string {
	if v.File == "" {
		return ""
	}
	if filepath.IsAbs(v.File) || v.Dir == "" {
		return v.File
	}
	return filepath.Join(v.Dir, v.File)
}

// Notify triggers playback and returns without waiting for it to finish.
// Playback errors are logged.
func (s *Sound) Notify(_ context.Context, _ model.Notification) error {
	v := s.settings.Load()
	path := resolve(v)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrSoundMissing, path)
	}
	if !s.limiter.Allow() {
		s.logger.Debug("[SOUND] suppressed inside min interval", slog.String("file", path))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.player.Play(s.ctx, path, v.Volume); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("[SOUND] playback failed", slog.String("file", path), slog.Any("err", err))
		}
	}()
	return nil
}

// Play plays the configured sound once and waits for it, ignoring the
// minimum interval.
func (s *Sound) Play(ctx context.Context) error {
	v := s.settings.Load()
	path := resolve(v)
	if path == "" {
		return fmt.Errorf("%w: no sound file configured", ErrSoundMissing)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrSoundMissing, path)
	}
	return s.player.Play(ctx, path, v.Volume)
}

// Close stops accepting alerts, cancels running playback and waits for it
// until ctx is done.
func (s *Sound) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
