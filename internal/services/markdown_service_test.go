package services

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func containsText(result, text string) bool {
	return strings.Contains(ansi.Strip(result), text)
}

func TestMarkdownService_Name(t *testing.T) {
	service := NewMarkdownService("default", 0)
	assert.Equal(t, "markdown", service.Name())
	assert.Equal(t, DefaultWordWrap, service.wordWrap)
}

func TestMarkdownService_Initialize(t *testing.T) {
	service := NewMarkdownService("dark", 60)
	assert.False(t, service.initialized)

	require.NoError(t, service.Initialize())
	assert.True(t, service.initialized)
	assert.NotNil(t, service.renderer)

	renderer := service.renderer
	require.NoError(t, service.Initialize())
	assert.Same(t, renderer, service.renderer)
}

func TestMarkdownService_Render(t *testing.T) {
	service := NewMarkdownService("plain", 0)

	_, err := service.Render("# Test")
	assert.ErrorContains(t, err, "not initialized")

	require.NoError(t, service.Initialize())

	_, err = service.Render("   ")
	assert.ErrorContains(t, err, "cannot be empty")

	result, err := service.Render("Here is today's **menu**:\n\n- Phở bò: 55.000₫\n- Bún chả: 50.000₫\n")
	require.NoError(t, err)
	assert.True(t, containsText(result, "menu"))
	assert.True(t, containsText(result, "Phở bò: 55.000₫"))
	assert.False(t, containsText(result, "**menu**"), "emphasis markers are consumed")
}

func TestMarkdownService_RenderStyles(t *testing.T) {
	for _, theme := range []string{"default", "dark", "light", "plain", "ascii"} {
		t.Run(theme, func(t *testing.T) {
			service := NewMarkdownService(theme, 0)
			require.NoError(t, service.Initialize())

			result, err := service.Render("# Hello World")
			require.NoError(t, err)
			assert.True(t, containsText(result, "Hello World"))
		})
	}
}

func TestMarkdownService_RenderOrPlain(t *testing.T) {
	uninitialized := NewMarkdownService("plain", 0)
	assert.Equal(t, "**raw**", uninitialized.RenderOrPlain("**raw**"))

	service := NewMarkdownService("plain", 0)
	require.NoError(t, service.Initialize())
	assert.Equal(t, "", service.RenderOrPlain(""))

	rendered := service.RenderOrPlain("chào bạn")
	assert.True(t, containsText(rendered, "chào bạn"))
	assert.False(t, strings.HasPrefix(rendered, "\n"))
	assert.False(t, strings.HasSuffix(rendered, "\n"))
}

func TestMarkdownService_SetWordWrap(t *testing.T) {
	service := NewMarkdownService("plain", 0)
	assert.ErrorContains(t, service.SetWordWrap(40), "not initialized")

	require.NoError(t, service.Initialize())
	assert.ErrorContains(t, service.SetWordWrap(0), "must be positive")
	require.NoError(t, service.SetWordWrap(40))

	long := strings.Repeat("phở ", 30)
	result, err := service.Render(long)
	require.NoError(t, err)
	for _, line := range strings.Split(ansi.Strip(result), "\n") {
		assert.LessOrEqual(t, ansi.StringWidth(strings.TrimRight(line, " ")), 40)
	}
}

func TestGlamourStyleForTheme(t *testing.T) {
	tests := map[string]string{
		"dark":    "dark",
		"LIGHT":   "light",
		"plain":   "notty",
		"ascii":   "ascii",
		"default": "auto",
		"unknown": "auto",
	}
	for theme, expected := range tests {
		assert.Equal(t, expected, GlamourStyleForTheme(theme), theme)
	}
}

func TestMarkdownService_GetServiceInfo(t *testing.T) {
	service := NewMarkdownService("dark", 72)
	info := service.GetServiceInfo()
	assert.Equal(t, "markdown", info["name"])
	assert.Equal(t, false, info["initialized"])
	assert.Equal(t, "dark", info["style"])
	assert.Equal(t, 72, info["word_wrap"])
}
