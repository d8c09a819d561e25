package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveThemeDefaults(t *testing.T) {
	theme := ResolveTheme(BotConfig{Name: "Helper"})

	assert.Equal(t, DefaultPrimaryColor, theme.PrimaryColor)
	assert.Equal(t, DefaultBackgroundColor, theme.BackgroundColor)
	assert.Equal(t, DefaultUserMessageColor, theme.UserMessageColor)
	assert.Equal(t, DefaultBotMessageColor, theme.BotMessageColor)
	assert.Equal(t, DefaultInputBackgroundColor, theme.InputBackgroundColor)
	assert.Equal(t, DefaultBorderRadius, theme.BorderRadius)
	assert.Equal(t, DefaultFontSize, theme.FontSize)
	assert.Equal(t, DefaultFontFamily, theme.FontFamily)
	assert.Equal(t, "Helper", theme.HeaderTitle)
	assert.Empty(t, theme.Logo)
}

func TestResolveThemeFieldsFallBackIndependently(t *testing.T) {
	theme := ResolveTheme(BotConfig{
		Name:           "Helper",
		PrimaryColor:   "rgb(10, 20, 30)",
		TextColor:      "not-a-color",
		SecondaryColor: "#111111",
		BorderRadius:   "8px",
		FontSize:       "-3",
		HeaderTitle:    "Support",
	})

	assert.Equal(t, "rgb(10, 20, 30)", theme.PrimaryColor)
	assert.Equal(t, DefaultTextColor, theme.TextColor)
	assert.Equal(t, "#111111", theme.SecondaryColor)
	assert.Equal(t, DefaultInputBackgroundColor, theme.InputBackgroundColor)
	assert.Equal(t, "8", theme.BorderRadius)
	assert.Equal(t, DefaultFontSize, theme.FontSize)
	assert.Equal(t, "Support", theme.HeaderTitle)
}
