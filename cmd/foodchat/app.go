package main

import (
	"fmt"
	"io"

	"foodchat/internal/config"
	"foodchat/internal/controller"
	"foodchat/internal/logger"
	"foodchat/internal/services"
	"foodchat/internal/sessionid"
	"foodchat/internal/shell"
	"foodchat/internal/storage"
	"foodchat/pkg/chattypes"

	"github.com/charmbracelet/lipgloss"
)

// app is the wired client: services, storage, controller and the shell session.
type app struct {
	registry *services.Registry
	store    storage.Store
	ctrl     *controller.Controller
	session  *shell.Session
}

// newApp registers and initializes the services, opens storage and builds the controller.
func newApp(cfg *config.Config, out io.Writer) (*app, error) {
	httpService := services.NewHTTPRequestService(cfg.HTTPTimeout)
	auth := services.NewAuthClient(cfg.AuthBaseURL, httpService)
	chat := services.NewChatClient(cfg.ChatBaseURL, httpService)
	themes := services.NewThemeService()
	typing := services.NewTemporalDisplayService(out, 0)

	registry := services.NewRegistry()
	toRegister := []chattypes.Service{httpService, auth, chat, themes, typing}

	var markdown *services.MarkdownService
	if cfg.UI.RenderMarkdown {
		markdown = services.NewMarkdownService(cfg.UI.Theme, 0)
		toRegister = append(toRegister, markdown)
	}
	for _, svc := range toRegister {
		if err := registry.RegisterService(svc); err != nil {
			return nil, err
		}
	}
	if err := registry.InitializeAll(); err != nil {
		return nil, err
	}
	logger.Debug("Services initialized", "services", registry.Names())

	store, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	ctrl, err := controller.New(controller.Deps{
		Store: store,
		Auth:  auth,
		Chat:  chat,
		IDs:   sessionid.New(),
	}, controller.Options{
		Greeting:              cfg.UI.Greeting,
		RegisterRedirectDelay: cfg.UI.RegisterRedirectDelay,
	})
	if err != nil {
		closeStore(store)
		return nil, err
	}

	storageLabel := cfg.Storage.Backend
	if cfg.Storage.Path != "" {
		storageLabel += " (" + cfg.Storage.Path + ")"
	}
	session := shell.NewSession(ctrl, shell.Config{
		Out:      out,
		Theme:    themes.ThemeForProfile(cfg.UI.Theme, lipgloss.ColorProfile()),
		Markdown: markdown,
		Typing:   typing,
		Health:   chat,
		Status: [][2]string{
			{"auth", auth.BaseURL()},
			{"chat", chat.BaseURL()},
			{"storage", storageLabel},
		},
	})

	return &app{registry: registry, store: store, ctrl: ctrl, session: session}, nil
}

// Close stops controller timers, clears displays and releases the store.
func (a *app) Close() {
	a.ctrl.Close()
	if typing, err := services.Lookup[*services.TemporalDisplayService](a.registry, "temporal-display"); err == nil {
		_ = typing.StopAll()
	}
	closeStore(a.store)
}

func closeStore(store storage.Store) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}
}
