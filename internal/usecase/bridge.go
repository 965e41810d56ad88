package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voicebridge/internal/domain"
	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
)

const channelDrainTimeout = 4 * time.Second

// BridgeConfig controls audio buffering for upstream channels.
type BridgeConfig struct {
	SampleRate  int
	Channels    int
	FrameBuffer int
}

// TranscriptionBridge owns exactly one streaming recognition+translation
// channel per session. Audio frames go in, translated result events fan out
// through the broadcaster in recognized order.
type TranscriptionBridge struct {
	provider ports.TranslationProvider
	router   ports.Broadcaster
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      BridgeConfig

	mu     sync.Mutex
	active map[string]*activeChannel

	downMu sync.RWMutex
	onDown func(code string, cause error)
}

type activeChannel struct {
	code   string
	cancel context.CancelFunc
	stream ports.TranslationSession

	frames     chan []byte
	pumpDone   chan struct{}
	eventsDone chan struct{}

	closeMu  sync.RWMutex
	closed   bool
	starting bool
	stopOnce sync.Once
}

func NewTranscriptionBridge(
	provider ports.TranslationProvider,
	router ports.Broadcaster,
	m *metrics.Metrics,
	log *slog.Logger,
	cfg BridgeConfig,
) *TranscriptionBridge {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FrameBuffer < 8 {
		cfg.FrameBuffer = 32
	}
	return &TranscriptionBridge{
		provider: provider,
		router:   router,
		metrics:  m,
		log:      log,
		cfg:      cfg,
		active:   make(map[string]*activeChannel),
	}
}

// SetDownHandler registers a callback for channels that end without a Stop
// call, typically because the upstream connection dropped.
func (b *TranscriptionBridge) SetDownHandler(fn func(code string, cause error)) {
	b.downMu.Lock()
	defer b.downMu.Unlock()
	b.onDown = fn
}

// Start opens a streaming channel for the session. Returns
// domain.ErrTranslationActive when one is already open; the original channel
// is unaffected.
func (b *TranscriptionBridge) Start(ctx context.Context, session domain.Session) error {
	placeholder := &activeChannel{code: session.Code, starting: true}

	b.mu.Lock()
	if _, exists := b.active[session.Code]; exists {
		b.mu.Unlock()
		return domain.ErrTranslationActive
	}
	b.active[session.Code] = placeholder
	b.mu.Unlock()

	// The channel outlives the start request, so it gets its own context.
	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := b.provider.StartStreaming(streamCtx, ports.StreamingConfig{
		SourceLanguage:  session.SourceLanguage,
		TargetLanguages: []string{session.TargetLanguage},
		SampleRate:      b.cfg.SampleRate,
		Channels:        b.cfg.Channels,
		Encoding:        "linear16",
	})
	if err != nil {
		cancel()
		b.mu.Lock()
		delete(b.active, session.Code)
		b.mu.Unlock()
		return err
	}

	channel := &activeChannel{
		code:       session.Code,
		cancel:     cancel,
		stream:     stream,
		frames:     make(chan []byte, b.cfg.FrameBuffer),
		pumpDone:   make(chan struct{}),
		eventsDone: make(chan struct{}),
	}

	b.mu.Lock()
	b.active[session.Code] = channel
	b.mu.Unlock()

	go b.pumpFrames(channel)
	go b.consumeResults(channel)

	b.metrics.StreamingChannels.Inc()
	b.log.Info("translation channel opened",
		"session", session.Code,
		"source", session.SourceLanguage,
		"target", session.TargetLanguage)
	return nil
}

// PushAudio hands one frame of linear PCM to the session's channel. It never
// blocks the caller: frames for an unknown or stopped session are silently
// discarded, and a full buffer drops the frame.
func (b *TranscriptionBridge) PushAudio(code string, frame []byte) {
	if len(frame) == 0 {
		return
	}

	b.mu.Lock()
	channel := b.active[code]
	b.mu.Unlock()
	if channel == nil || channel.starting {
		b.metrics.FramesDropped.Inc()
		return
	}

	channel.closeMu.RLock()
	defer channel.closeMu.RUnlock()
	if channel.closed {
		b.metrics.FramesDropped.Inc()
		return
	}

	copied := append([]byte(nil), frame...)
	select {
	case channel.frames <- copied:
		b.metrics.FramesReceived.Inc()
	default:
		b.metrics.FramesDropped.Inc()
	}
}

// Stop closes the session's channel. Idempotent; stopping a session with no
// open channel is a no-op.
func (b *TranscriptionBridge) Stop(code string) {
	b.mu.Lock()
	channel := b.active[code]
	delete(b.active, code)
	b.mu.Unlock()
	if channel == nil || channel.starting {
		return
	}

	channel.stopOnce.Do(func() {
		channel.closeMu.Lock()
		channel.closed = true
		close(channel.frames)
		channel.closeMu.Unlock()

		channel.cancel()
		_ = channel.stream.Close()

		b.waitDone(channel.pumpDone)
		b.waitDone(channel.eventsDone)
		b.metrics.StreamingChannels.Dec()
		b.log.Info("translation channel closed", "session", code)
	})
}

// Active reports whether a channel is open for the session.
func (b *TranscriptionBridge) Active(code string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.active[code]
	return ok
}

// StopAll tears down every open channel; used at shutdown.
func (b *TranscriptionBridge) StopAll() {
	b.mu.Lock()
	codes := make([]string, 0, len(b.active))
	for code := range b.active {
		codes = append(codes, code)
	}
	b.mu.Unlock()

	for _, code := range codes {
		b.Stop(code)
	}
}

func (b *TranscriptionBridge) pumpFrames(channel *activeChannel) {
	defer close(channel.pumpDone)

	for frame := range channel.frames {
		if err := channel.stream.SendAudio(frame); err != nil {
			b.log.Warn("audio send failed", "session", channel.code, "error", err)
			return
		}
	}
	_ = channel.stream.CloseSend()
}

func (b *TranscriptionBridge) consumeResults(channel *activeChannel) {
	defer close(channel.eventsDone)

	// Single consumer per session keeps translations in recognized order.
	for event := range channel.stream.Events() {
		b.metrics.TranslationEvents.Inc()
		b.router.Publish(channel.code, domain.EventTranslationResult, event)
	}

	cause := channel.stream.Wait()
	if cause != nil {
		b.log.Warn("translation channel ended with error", "session", channel.code, "error", cause)
	}

	// Events closing while the channel is still registered means the upstream
	// died on its own. Clear the slot so the session can restart, and tell the
	// owner the channel is gone.
	b.mu.Lock()
	registered := b.active[channel.code] == channel
	if registered {
		delete(b.active, channel.code)
	}
	b.mu.Unlock()
	if !registered {
		return
	}

	channel.stopOnce.Do(func() {
		channel.closeMu.Lock()
		channel.closed = true
		close(channel.frames)
		channel.closeMu.Unlock()

		channel.cancel()
		_ = channel.stream.Close()
		b.metrics.StreamingChannels.Dec()
	})
	b.log.Warn("translation channel lost", "session", channel.code)

	b.downMu.RLock()
	onDown := b.onDown
	b.downMu.RUnlock()
	if onDown != nil {
		onDown(channel.code, cause)
	}
}

func (b *TranscriptionBridge) waitDone(done chan struct{}) {
	select {
	case <-done:
	case <-time.After(channelDrainTimeout):
		b.log.Warn("timed out draining translation channel")
	}
}
