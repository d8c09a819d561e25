package widget

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"

	botmodel "github.com/zhouzirui/botrix/backend/internal/model/bot"
)

const panelTemplateName = "widget-panel"

const panelTemplate = `<div class="botrix-widget" data-session="{{.View.SessionID}}" style="{{.Style}}">
{{- if not .View.Open}}
  <button class="botrix-launcher" aria-label="Open chat with {{.View.BotName}}">
    {{- if .View.Theme.Logo}}<img src="{{.View.Theme.Logo}}" alt="">{{else}}Chat{{end -}}
  </button>
{{- else}}
  <section class="botrix-panel">
    <header class="botrix-header">
      {{- if .View.Theme.Logo}}<img class="botrix-logo" src="{{.View.Theme.Logo}}" alt="">{{end}}
      <div>
        <h2>{{.View.Theme.HeaderTitle}}</h2>
        {{- if .View.Theme.HeaderSubtitle}}<p>{{.View.Theme.HeaderSubtitle}}</p>{{end}}
      </div>
      <button class="botrix-minimize" aria-label="Minimize">&minus;</button>
    </header>
    <ol class="botrix-log">
    {{- range .View.Messages}}
      <li class="botrix-message botrix-{{.Sender}}" data-id="{{.ID}}">
      {{- if eq .Sender "user"}}
        <p>{{.Text}}</p>
      {{- else}}
        {{- range .Blocks}}
          {{- if eq .Kind "heading"}}
        <h3>{{.Text}}</h3>
          {{- else if eq .Kind "product"}}
        <div class="botrix-product">
          <h4>{{.Product.Name}}</h4>
          {{- if .Product.Description}}<p>{{.Product.Description}}</p>{{end}}
          {{- if .Product.Price}}<span class="botrix-price">{{.Product.Price}}</span>{{end}}
          {{- if .Product.URL}}<a href="{{.Product.URL}}" target="_blank" rel="noopener noreferrer">View Product</a>{{end}}
        </div>
          {{- else if .HasLinks}}
        <p>{{range .Spans}}{{if .URL}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Text}}</a>{{else}}<span>{{.Text}}</span>{{end}}{{end}}</p>
          {{- else}}
        <p>{{.Text}}</p>
          {{- end}}
        {{- end}}
      {{- end}}
        <time datetime="{{.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}">{{.Timestamp.Format "15:04"}}</time>
      </li>
    {{- end}}
    {{- if .View.Typing}}
      <li class="botrix-typing" aria-live="polite"><span></span><span></span><span></span></li>
    {{- end}}
    </ol>
    {{- range .View.Notifications}}
    <div class="botrix-notice{{if .Destructive}} botrix-notice-error{{end}}" role="alert"><strong>{{.Title}}</strong> {{.Description}}</div>
    {{- end}}
    <form class="botrix-input">
      <input name="text" value="{{.View.Input}}" placeholder="Type your message..."{{if .View.Loading}} disabled{{end}}>
      {{- if .View.VoiceSupported}}
      <button type="button" class="botrix-mic{{if .View.Listening}} botrix-listening{{end}}" aria-pressed="{{.View.Listening}}">Mic</button>
      {{- end}}
      <button type="submit"{{if .View.Loading}} disabled{{end}}>Send</button>
    </form>
  </section>
{{- end}}
</div>
`

var panel = template.Must(template.New(panelTemplateName).Parse(panelTemplate))

type panelData struct {
	View  View
	Style template.CSS
}

// Render writes the chat panel for v as an HTML fragment.
func Render(w io.Writer, v View) error {
	var buf bytes.Buffer
	if err := panel.Execute(&buf, panelData{View: v, Style: themeStyle(v.Theme)}); err != nil {
		return fmt.Errorf("render widget: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// themeStyle exposes the resolved theme as CSS custom properties. Colors are
// already validated; the font family is stripped of declaration syntax.
func themeStyle(t botmodel.Theme) template.CSS {
	props := []struct{ name, value string }{
		{"--botrix-primary", t.PrimaryColor},
		{"--botrix-secondary", t.SecondaryColor},
		{"--botrix-text", t.TextColor},
		{"--botrix-background", t.BackgroundColor},
		{"--botrix-header-text", t.HeaderTextColor},
		{"--botrix-message-background", t.MessageBackgroundColor},
		{"--botrix-user-message", t.UserMessageColor},
		{"--botrix-bot-message", t.BotMessageColor},
		{"--botrix-input-background", t.InputBackgroundColor},
		{"--botrix-radius", t.BorderRadius + "px"},
		{"--botrix-font-size", t.FontSize + "px"},
		{"--botrix-font-family", cssSafe(t.FontFamily)},
	}
	var b strings.Builder
	for _, p := range props {
		b.WriteString(p.name)
		b.WriteString(": ")
		b.WriteString(cssSafe(p.value))
		b.WriteString("; ")
	}
	return template.CSS(strings.TrimSpace(b.String()))
}

func cssSafe(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '"', '\'', '\\', '\n', '\r':
			return -1
		}
		return r
	}, v)
}
