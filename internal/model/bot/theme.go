package bot

import (
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// Fallbacks applied by ResolveTheme.
const (
	DefaultPrimaryColor           = "#00a651"
	DefaultSecondaryColor         = "#fafafa"
	DefaultTextColor              = "#333333"
	DefaultBackgroundColor        = "#ffffff"
	DefaultHeaderTextColor        = "#ffffff"
	DefaultMessageBackgroundColor = "#fafafa"
	DefaultUserMessageColor       = "#667eea"
	DefaultBotMessageColor        = "#e9ecef"
	DefaultInputBackgroundColor   = "#f8f9fa"
	DefaultBorderRadius           = "16"
	DefaultFontSize               = "14"
	DefaultFontFamily             = "Inter, sans-serif"
)

// Theme is the fully resolved presentation of a bot: every field is set.
type Theme struct {
	PrimaryColor           string `json:"primaryColor"`
	SecondaryColor         string `json:"secondaryColor"`
	TextColor              string `json:"textColor"`
	BackgroundColor        string `json:"backgroundColor"`
	HeaderTextColor        string `json:"headerTextColor"`
	MessageBackgroundColor string `json:"messageBackgroundColor"`
	UserMessageColor       string `json:"userMessageColor"`
	BotMessageColor        string `json:"botMessageColor"`
	InputBackgroundColor   string `json:"inputBackgroundColor"`
	BorderRadius           string `json:"borderRadius"`
	FontSize               string `json:"fontSize"`
	FontFamily             string `json:"fontFamily"`
	Logo                   string `json:"logo,omitempty"`
	HeaderTitle            string `json:"headerTitle"`
	HeaderSubtitle         string `json:"headerSubtitle,omitempty"`
}

// ResolveTheme applies the literal defaults field by field. A color that does
// not parse as CSS falls back as if it were absent.
func ResolveTheme(cfg BotConfig) Theme {
	return Theme{
		PrimaryColor:           color(cfg.PrimaryColor, DefaultPrimaryColor),
		SecondaryColor:         color(cfg.SecondaryColor, DefaultSecondaryColor),
		TextColor:              color(cfg.TextColor, DefaultTextColor),
		BackgroundColor:        color(cfg.BackgroundColor, DefaultBackgroundColor),
		HeaderTextColor:        color(cfg.HeaderTextColor, DefaultHeaderTextColor),
		MessageBackgroundColor: color(cfg.MessageBackgroundColor, DefaultMessageBackgroundColor),
		UserMessageColor:       color(cfg.UserMessageColor, DefaultUserMessageColor),
		BotMessageColor:        color(cfg.BotMessageColor, DefaultBotMessageColor),
		InputBackgroundColor:   color(cfg.InputBackgroundColor, DefaultInputBackgroundColor),
		BorderRadius:           pixels(cfg.BorderRadius, DefaultBorderRadius),
		FontSize:               pixels(cfg.FontSize, DefaultFontSize),
		FontFamily:             text(cfg.FontFamily, DefaultFontFamily),
		Logo:                   strings.TrimSpace(cfg.Logo),
		HeaderTitle:            text(cfg.HeaderTitle, cfg.Name),
		HeaderSubtitle:         strings.TrimSpace(cfg.HeaderSubtitle),
	}
}

func text(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func color(value, fallback string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	if _, err := csscolorparser.Parse(v); err != nil {
		return fallback
	}
	return v
}

// pixels accepts "16" or "16px" and returns the bare number.
func pixels(value, fallback string) string {
	v := strings.TrimSuffix(strings.TrimSpace(value), "px")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return v
}
