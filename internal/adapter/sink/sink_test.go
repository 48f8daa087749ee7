package sink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
	"github.com/xivwolf/a-tour-ingame/internal/metrics"
	"github.com/xivwolf/a-tour-ingame/internal/service"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func notification(category, content string) model.Notification {
	return model.Notification{
		Message: model.InboundMessage{Category: category, Content: content},
		Rules:   []string{category},
	}
}

type fakePlayer struct {
	mu    sync.Mutex
	files []string
	vols  []float64
}

func (p *fakePlayer) Play(_ context.Context, file string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, file)
	p.vols = append(p.vols, volume)
	return nil
}

func (p *fakePlayer) plays() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

func TestChatLog_WritesHeadline(t *testing.T) {
	var buf bytes.Buffer
	c := NewChatLog(&buf)

	require.NoError(t, c.Notify(context.Background(), notification("7A", "Dalriada in 10")))
	require.NoError(t, c.Notify(context.Background(), notification("", "no category")))

	assert.Equal(t, "[7A]: Dalriada in 10\n[]: no category\n", buf.String())
	assert.Equal(t, "chat", c.Name())
}

func TestSound_EmptyFileIsNoop(t *testing.T) {
	p := &fakePlayer{}
	s := NewSound(model.SoundSettings{}, 0, p, quiet())

	require.NoError(t, s.Notify(context.Background(), notification("7A", "x")))
	assert.Zero(t, p.plays())
}

func TestSound_MissingFile(t *testing.T) {
	p := &fakePlayer{}
	s := NewSound(model.SoundSettings{File: "nope.mp3", Dir: t.TempDir()}, 0, p, quiet())

	err := s.Notify(context.Background(), notification("7A", "x"))
	require.ErrorIs(t, err, ErrSoundMissing)
	assert.Zero(t, p.plays())
}

func TestSound_BurstPlaysOnceAndClampsVolume(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tell.mp3"), []byte("ID3"), 0o600))

	p := &fakePlayer{}
	s := NewSound(model.SoundSettings{File: "tell.mp3", Dir: dir, Volume: 3}, time.Hour, p, quiet())
	assert.InDelta(t, 1.0, s.Settings().Volume, 1e-9)

	for range 5 {
		require.NoError(t, s.Notify(context.Background(), notification("7A", "x")))
	}
	require.NoError(t, s.Close(context.Background()))
	require.Equal(t, 1, p.plays())
	assert.Equal(t, filepath.Join(dir, "tell.mp3"), p.files[0])
	assert.InDelta(t, 1.0, p.vols[0], 1e-9)

	s.Configure(model.SoundSettings{File: "tell.mp3", Dir: dir, Volume: -1})
	assert.Zero(t, s.Settings().Volume)
}

// slowPlayer blocks every playback until released or cancelled.
type slowPlayer struct {
	release chan struct{}
	started chan string
}

func (p *slowPlayer) Play(ctx context.Context, file string, _ float64) error {
	p.started <- file
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func soundFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tell.mp3")
	require.NoError(t, os.WriteFile(path, []byte("ID3"), 0o600))
	return path
}

func TestSound_SlowPlaybackDoesNotDelayChat(t *testing.T) {
	p := &slowPlayer{release: make(chan struct{}), started: make(chan string, 2)}
	s := NewSound(model.SoundSettings{File: soundFile(t), Volume: 1}, 0, p, quiet())

	var buf bytes.Buffer
	store := model.NewRuleStore(model.FilterRule{Name: "7A", RoleID: "111", Enabled: true})
	d, err := service.NewDispatchService(store, []service.Notifier{s, NewChatLog(&buf)}, 0, metrics.New(nil))
	require.NoError(t, err)

	begin := time.Now()
	for _, content := range []string{"first", "second"} {
		msg := model.InboundMessage{
			Category:     "7A",
			Content:      content,
			RoleMentions: model.NewRoleMentions(model.RoleMention{ID: "111"}),
		}
		dec, err := d.Dispatch(context.Background(), model.Delivery{Message: msg, ReceivedAt: time.Now()})
		require.NoError(t, err)
		require.True(t, dec.Notify)
	}
	assert.Less(t, time.Since(begin), time.Second, "dispatch returned while both sounds still play")
	assert.Equal(t, "[7A]: first\n[7A]: second\n", buf.String())

	for range 2 {
		select {
		case <-p.started:
		case <-time.After(time.Second):
			t.Fatal("playback was not started")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx), "close cancels and joins running playback")
	require.NoError(t, s.Notify(context.Background(), notification("7A", "late")))
	assert.Empty(t, p.started, "a closed sound starts nothing")
}

func TestSound_PlayWaitsAndIgnoresInterval(t *testing.T) {
	path := soundFile(t)
	p := &fakePlayer{}
	s := NewSound(model.SoundSettings{File: path, Volume: 0.4}, time.Hour, p, quiet())

	require.NoError(t, s.Play(context.Background()))
	require.NoError(t, s.Play(context.Background()))
	assert.Equal(t, 2, p.plays())
	assert.Equal(t, []float64{0.4, 0.4}, p.vols)

	s.Configure(model.SoundSettings{})
	assert.ErrorIs(t, s.Play(context.Background()), ErrSoundMissing)
	s.Configure(model.SoundSettings{File: "gone.mp3", Dir: t.TempDir()})
	assert.ErrorIs(t, s.Play(context.Background()), ErrSoundMissing)
}

func TestNewPlayer(t *testing.T) {
	p, err := NewPlayer(nil, quiet())
	require.NoError(t, err)
	assert.IsType(t, LogPlayer{}, p)

	p, err = NewPlayer([]string{"mpv", "{file}"}, quiet())
	require.NoError(t, err)
	assert.IsType(t, &CommandPlayer{}, p)
}

func TestSound_AbsolutePathIgnoresDir(t *testing.T) {
	s := NewSound(model.SoundSettings{File: "/abs/a.wav", Dir: "sounds"}, 0, &fakePlayer{}, quiet())
	assert.Equal(t, "/abs/a.wav", s.Path())

	s.Configure(model.SoundSettings{File: "a.wav", Dir: "sounds"})
	assert.Equal(t, filepath.Join("sounds", "a.wav"), s.Path())
}

func TestCommandPlayer(t *testing.T) {
	_, err := NewCommandPlayer(nil, 0)
	require.Error(t, err)

	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	p, err := NewCommandPlayer([]string{"sh", "-c", `printf '%s %s' "$0" "$1" > ` + out, "{file}", "{volume}"}, time.Second)
	require.NoError(t, err)

	require.NoError(t, p.Play(context.Background(), "/tmp/tell.mp3", 0.25))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/tell.mp3 25", string(got))

	failing, err := NewCommandPlayer([]string{"sh", "-c", "echo oops >&2; exit 3"}, time.Second)
	require.NoError(t, err)
	assert.ErrorContains(t, failing.Play(context.Background(), "f", 1), "oops")
}

type flakySink struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *flakySink) Name() string { return "flaky" }

func (f *flakySink) Notify(context.Context, model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakySink{err: errors.New("unreachable")}
	b := NewBreaker(inner, 3, time.Hour, quiet())
	assert.Equal(t, "flaky", b.Name())

	for range 3 {
		assert.Error(t, b.Notify(context.Background(), notification("7A", "x")))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Notify(context.Background(), notification("7A", "x"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, inner.calls, "an open breaker does not call the sink")
}

func TestBreaker_RecoversAfterCooldown(t *testing.T) {
	inner := &flakySink{err: errors.New("unreachable")}
	b := NewBreaker(inner, 1, 20*time.Millisecond, quiet())

	require.Error(t, b.Notify(context.Background(), notification("7A", "x")))
	require.Equal(t, gobreaker.StateOpen, b.State())

	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	require.Eventually(t, func() bool {
		return b.Notify(context.Background(), notification("7A", "x")) == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
