package bot

import "time"

// BotConfig describes one bot's identity, webhook and visual theme. Every
// presentation field is optional; ResolveTheme supplies the fallbacks.
type BotConfig struct {
	ID             string `json:"id"`
	OwnerID        string `json:"ownerId,omitempty"`
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcomeMessage,omitempty"`
	WebhookURL     string `json:"webhookUrl"`

	PrimaryColor           string `json:"primaryColor,omitempty"`
	SecondaryColor         string `json:"secondaryColor,omitempty"`
	TextColor              string `json:"textColor,omitempty"`
	BackgroundColor        string `json:"backgroundColor,omitempty"`
	HeaderTextColor        string `json:"headerTextColor,omitempty"`
	Logo                   string `json:"logo,omitempty"`
	HeaderTitle            string `json:"headerTitle,omitempty"`
	HeaderSubtitle         string `json:"headerSubtitle,omitempty"`
	MessageBackgroundColor string `json:"messageBackgroundColor,omitempty"`
	UserMessageColor       string `json:"userMessageColor,omitempty"`
	BotMessageColor        string `json:"botMessageColor,omitempty"`
	InputBackgroundColor   string `json:"inputBackgroundColor,omitempty"`
	BorderRadius           string `json:"borderRadius,omitempty"`
	FontSize               string `json:"fontSize,omitempty"`
	FontFamily             string `json:"fontFamily,omitempty"`

	// CategoryKeywords overrides the formatter's heading lexicon for this bot.
	CategoryKeywords []string `json:"categoryKeywords,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DemoBotID is the identifier of the bot installed by Seed.
const DemoBotID = "botrix-demo"

// Seed provides the demo bot wired to the built-in demo webhook.
func Seed(demoWebhookURL string) []BotConfig {
	return []BotConfig{
		{
			ID:             DemoBotID,
			OwnerID:        "demo",
			Name:           "Botrix Assistant",
			WelcomeMessage: "Hi there! Ask me about our batteries, UPS systems or anything else.",
			WebhookURL:     demoWebhookURL,
			PrimaryColor:   "#00a651",
			HeaderSubtitle: "Typically replies in a few seconds",
		},
	}
}
