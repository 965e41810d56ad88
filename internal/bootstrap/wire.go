package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"voicebridge/internal/api"
	"voicebridge/internal/config"
	"voicebridge/internal/metrics"
	"voicebridge/internal/ports"
	"voicebridge/internal/providers/azure"
	memorystore "voicebridge/internal/store/memory"
	valkeystore "voicebridge/internal/store/valkey"
	"voicebridge/internal/usecase"
	"voicebridge/internal/ws"
)

// Services is the assembled runtime graph.
type Services struct {
	Router     http.Handler
	Controller *usecase.SessionController
	Janitor    *usecase.Janitor
	Tokens     *azure.TokenSource
	Config     config.Config

	close func()
}

// Close releases owned resources (store connections).
func (s Services) Close() {
	if s.close != nil {
		s.close()
	}
}

// Build wires all server dependencies for the current runtime.
func Build(cfg config.Config, log *slog.Logger) (Services, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	var (
		store     ports.SessionStore
		closeFunc func()
	)
	switch cfg.Store.Backend {
	case config.StoreValkey:
		valkeyStore, err := valkeystore.New(cfg.Store.ValkeyAddress)
		if err != nil {
			return Services{}, fmt.Errorf("failed to build valkey store: %w", err)
		}
		store = valkeyStore
		closeFunc = valkeyStore.Close
	default:
		store = memorystore.NewSessionStore()
	}

	listeners := memorystore.NewListenerRegistry()

	speechCfg := azure.Config{
		Region:          cfg.Speech.Region,
		Key:             cfg.Speech.Key,
		PrivateEndpoint: cfg.Speech.PrivateEndpoint,
	}
	tokens := azure.NewTokenSource(speechCfg, azure.IceOverride{
		ServerURL:       cfg.Ice.ServerURL,
		ServerURLRemote: cfg.Ice.ServerURLRemote,
		Username:        cfg.Ice.Username,
		Password:        cfg.Ice.Password,
	}, log.With("component", "ice"))

	hub := ws.NewHub(store, listeners, m, log.With("component", "hub"), cfg.Server.EmitLegacyEvents)

	bridge := usecase.NewTranscriptionBridge(
		azure.NewProvider(speechCfg),
		hub,
		m,
		log.With("component", "bridge"),
		usecase.BridgeConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			FrameBuffer: cfg.Audio.FrameBuffer,
		},
	)

	controller := usecase.NewSessionController(
		store,
		listeners,
		bridge,
		azure.NewSignaler(speechCfg, tokens, log.With("component", "signaler")),
		hub,
		m,
		log.With("component", "controller"),
		usecase.Config{
			PublicBaseURL: cfg.Server.PublicBaseURL,
			DefaultVoice:  cfg.Speech.DefaultVoice,
		},
	)
	hub.SetAudioSink(controller.PushAudio)

	janitor := usecase.NewJanitor(store, controller, m,
		log.With("component", "janitor"), cfg.Session.TTL, cfg.Session.SweepInterval)

	handler := &api.Handler{
		Controller: controller,
		Tokens:     tokens,
		Log:        log.With("component", "api"),
	}
	router := api.NewRouter(handler, hub, registry, log.With("component", "http"))

	return Services{
		Router:     router,
		Controller: controller,
		Janitor:    janitor,
		Tokens:     tokens,
		Config:     cfg,
		close:      closeFunc,
	}, nil
}
