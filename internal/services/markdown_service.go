package services

import (
	"fmt"
	"strings"

	"foodchat/internal/logger"

	"github.com/charmbracelet/glamour"
)

// DefaultWordWrap is the column at which assistant replies are wrapped.
const DefaultWordWrap = 80

// MarkdownService renders assistant replies, which the chat service may format as Markdown,
// for the terminal using Glamour.
type MarkdownService struct {
	initialized bool
	style       string
	wordWrap    int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a MarkdownService for the given foodchat theme name.
func NewMarkdownService(theme string, wordWrap int) *MarkdownService {
	if wordWrap <= 0 {
		wordWrap = DefaultWordWrap
	}
	return &MarkdownService{
		style:    GlamourStyleForTheme(theme),
		wordWrap: wordWrap,
	}
}

// Name returns the service name "markdown" for registration.
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize builds the renderer.
func (m *MarkdownService) Initialize() error {
	if m.initialized {
		return nil
	}
	renderer, err := m.newRenderer(m.style, m.wordWrap)
	if err != nil {
		return err
	}
	m.renderer = renderer
	m.initialized = true

	logger.Debug("MarkdownService initialized", "style", m.style, "word_wrap", m.wordWrap)
	return nil
}

func (m *MarkdownService) newRenderer(style string, width int) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "auto" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer, nil
}

// Render renders markdown content to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// RenderOrPlain renders markdown, returning the input unchanged when rendering fails.
// A reply must always be shown, formatted or not.
func (m *MarkdownService) RenderOrPlain(markdown string) string {
	rendered, err := m.Render(markdown)
	if err != nil {
		logger.Debug("Showing reply without markdown rendering", "error", err)
		return markdown
	}
	return strings.Trim(rendered, "\n")
}

// SetWordWrap sets the word wrap width for markdown rendering.
func (m *MarkdownService) SetWordWrap(width int) error {
	if !m.initialized {
		return fmt.Errorf("markdown service not initialized")
	}
	if width <= 0 {
		return fmt.Errorf("word wrap width must be positive, got %d", width)
	}

	renderer, err := m.newRenderer(m.style, width)
	if err != nil {
		return err
	}
	m.renderer = renderer
	m.wordWrap = width
	logger.Debug("MarkdownService word wrap updated", "width", width)
	return nil
}

// Style returns the Glamour style in use.
func (m *MarkdownService) Style() string {
	return m.style
}

// GlamourStyleForTheme maps foodchat theme names to Glamour standard styles.
func GlamourStyleForTheme(themeName string) string {
	switch strings.ToLower(themeName) {
	case "dark":
		return "dark"
	case "light":
		return "light"
	case "plain":
		return "notty"
	case "ascii":
		return "ascii"
	default:
		return "auto"
	}
}

// GetServiceInfo returns information about the markdown service.
func (m *MarkdownService) GetServiceInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        m.Name(),
		"initialized": m.initialized,
		"style":       m.style,
		"word_wrap":   m.wordWrap,
	}
}
