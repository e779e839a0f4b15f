package services

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"foodchat/internal/logger"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/list"
	"github.com/muesli/termenv"
	"gopkg.in/yaml.v3"
)

//go:embed themes/*.yaml
var themeFS embed.FS

// PlainTheme is the theme without any styling.
const PlainTheme = "plain"

// ThemeFile is the YAML layout of an embedded theme.
type ThemeFile struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Styles      map[string]StyleConfig `yaml:"styles"`
}

// StyleConfig describes one lipgloss style. Colours are either a string or a
// {light, dark} adaptive pair.
type StyleConfig struct {
	Foreground    interface{} `yaml:"foreground"`
	Background    interface{} `yaml:"background"`
	Bold          *bool       `yaml:"bold"`
	Italic        *bool       `yaml:"italic"`
	Underline     *bool       `yaml:"underline"`
	Strikethrough *bool       `yaml:"strikethrough"`
}

// Theme holds the styles used to render the conversation and the auth forms.
type Theme struct {
	Name      string
	User      lipgloss.Style
	Assistant lipgloss.Style
	Notice    lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Prompt    lipgloss.Style
	Muted     lipgloss.Style
	Label     lipgloss.Style
	List      lipgloss.Style
}

// ThemeService loads the embedded themes and hands out Theme objects.
type ThemeService struct {
	initialized bool
	themes      map[string]*Theme
}

// NewThemeService creates a new ThemeService instance.
func NewThemeService() *ThemeService {
	return &ThemeService{themes: make(map[string]*Theme)}
}

// Name returns the service name "theme" for registration.
func (t *ThemeService) Name() string {
	return "theme"
}

// Initialize loads every embedded theme. A theme that fails to parse is replaced with an
// unstyled one so rendering never fails.
func (t *ThemeService) Initialize() error {
	if t.initialized {
		return nil
	}
	entries, err := themeFS.ReadDir("themes")
	if err != nil {
		return fmt.Errorf("failed to read embedded themes: %w", err)
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		data, err := themeFS.ReadFile(path.Join("themes", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read theme %s: %w", name, err)
		}
		theme, err := ParseTheme(data)
		if err != nil {
			logger.Error("Failed to load theme", "theme", name, "error", err)
			theme = plainTheme(name)
		}
		t.themes[name] = theme
	}
	if _, ok := t.themes[PlainTheme]; !ok {
		t.themes[PlainTheme] = plainTheme(PlainTheme)
	}
	t.initialized = true
	logger.Debug("ThemeService initialized", "themes", len(t.themes))
	return nil
}

// ParseTheme builds a Theme from YAML.
func ParseTheme(data []byte) (*Theme, error) {
	var file ThemeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse theme file: %w", err)
	}
	if file.Name == "" {
		return nil, fmt.Errorf("theme file has no name")
	}
	style := func(role string) lipgloss.Style {
		return createStyle(file.Styles[role])
	}
	return &Theme{
		Name:      file.Name,
		User:      style("user"),
		Assistant: style("assistant"),
		Notice:    style("notice"),
		Error:     style("error"),
		Success:   style("success"),
		Prompt:    style("prompt"),
		Muted:     style("muted"),
		Label:     style("label"),
		List:      style("list"),
	}, nil
}

func createStyle(config StyleConfig) lipgloss.Style {
	style := lipgloss.NewStyle()

	if color := parseColor(config.Foreground); color != nil {
		style = style.Foreground(color)
	}
	if color := parseColor(config.Background); color != nil {
		style = style.Background(color)
	}
	if config.Bold != nil && *config.Bold {
		style = style.Bold(true)
	}
	if config.Italic != nil && *config.Italic {
		style = style.Italic(true)
	}
	if config.Underline != nil && *config.Underline {
		style = style.Underline(true)
	}
	if config.Strikethrough != nil && *config.Strikethrough {
		style = style.Strikethrough(true)
	}
	return style
}

// parseColor parses a color value that can be a string or a {light, dark} map.
func parseColor(colorValue interface{}) lipgloss.TerminalColor {
	switch v := colorValue.(type) {
	case string:
		return lipgloss.Color(v)
	case map[string]interface{}:
		light, hasLight := v["light"].(string)
		dark, hasDark := v["dark"].(string)
		if hasLight && hasDark {
			return lipgloss.AdaptiveColor{Light: light, Dark: dark}
		}
		return nil
	default:
		return nil
	}
}

func plainTheme(name string) *Theme {
	plain := lipgloss.NewStyle()
	return &Theme{
		Name: name, User: plain, Assistant: plain, Notice: plain, Error: plain,
		Success: plain, Prompt: plain, Muted: plain, Label: plain, List: plain,
	}
}

// GetAvailableThemes returns the sorted theme names.
func (t *ThemeService) GetAvailableThemes() []string {
	names := make([]string, 0, len(t.themes))
	for name := range t.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetThemeByName returns the named theme, case-insensitively. Unknown names and an
// uninitialized service yield the plain theme.
func (t *ThemeService) GetThemeByName(name string) *Theme {
	if !t.initialized {
		return plainTheme(PlainTheme)
	}
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		normalized = PlainTheme
	}
	if theme, ok := t.themes[normalized]; ok {
		return theme
	}
	logger.Debug("Unknown theme requested, using plain theme", "theme", name, "available", t.GetAvailableThemes())
	return t.themes[PlainTheme]
}

// ThemeForProfile is GetThemeByName, except that terminals without colour support
// always get the plain theme.
func (t *ThemeService) ThemeForProfile(name string, profile termenv.Profile) *Theme {
	if profile == termenv.Ascii {
		return t.GetThemeByName(PlainTheme)
	}
	return t.GetThemeByName(name)
}

// SenderStyle returns the label style for a history entry.
func (th *Theme) SenderStyle(user bool) lipgloss.Style {
	if user {
		return th.User
	}
	return th.Assistant
}

// CreateKeyValueList renders label/value pairs in the given order as a styled list.
func (th *Theme) CreateKeyValueList(pairs [][2]string) *list.List {
	l := list.New().EnumeratorStyle(th.List)
	for _, pair := range pairs {
		l.Item(fmt.Sprintf("%s %s", th.Label.Render(pair[0]+":"), pair[1]))
	}
	return l
}

// GetServiceInfo returns information about the theme service.
func (t *ThemeService) GetServiceInfo() map[string]interface{} {
	return map[string]interface{}{
		"name":        t.Name(),
		"initialized": t.initialized,
		"themes":      t.GetAvailableThemes(),
	}
}
