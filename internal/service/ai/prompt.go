package ai

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// CatalogueItem 演示店铺中的一件商品
type CatalogueItem struct {
	Category    string
	Name        string
	Description string
	Price       int
	URL         string
}

// Line renders the item the way the widget formatter recognises products.
func (c CatalogueItem) Line() string {
	return fmt.Sprintf("• %s - %s (%s) | Price: %s", c.Name, c.Description, c.URL, rupees(c.Price))
}

// DemoCatalogue backs the demo bot's answers.
var DemoCatalogue = []CatalogueItem{
	{"Power Systems", "Home Inverter 1100", "Pure sine wave inverter for homes and small offices", 7499, "https://shop.botrix.dev/p/home-inverter-1100"},
	{"Power Systems", "Solar Hybrid 3kW", "Grid-tied inverter with MPPT charge controller", 38900, "https://shop.botrix.dev/p/solar-hybrid-3kw"},
	{"UPS Systems", "Desktop Backup 600VA", "Line-interactive backup for one workstation", 2650, "https://shop.botrix.dev/p/desktop-ups-600"},
	{"UPS Systems", "Online Backup 3kVA", "Double conversion unit for servers and labs", 41200, "https://shop.botrix.dev/p/online-ups-3k"},
	{"Batteries", "Tall Tubular 150Ah", "Long backup battery with 36 month warranty", 13450, "https://shop.botrix.dev/p/tubular-150"},
	{"Batteries", "Lithium Pack 2.5kWh", "Wall-mounted LiFePO4 storage", 86000, "https://shop.botrix.dev/p/lithium-2-5"},
}

const systemPromptBase = `You are the shopping assistant of an electrical store embedded as a chat widget.
Answer briefly and only about the catalogue below.

Formatting rules:
- Start each group with its category name followed by a colon on its own line.
- List each product on its own line as: • Name - short description (link) | Price: ₹amount
- Use plain sentences for anything else. No markdown tables.

Catalogue:
`

// BuildSystemPrompt lists the catalogue grouped by category.
func BuildSystemPrompt(items []CatalogueItem) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	for _, group := range groupByCategory(items) {
		b.WriteString(group[0].Category)
		b.WriteString(":\n")
		for _, item := range group {
			b.WriteString(item.Line())
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// EchoReply answers without a model: products whose name or category share a
// word with the query, or the whole catalogue.
func EchoReply(items []CatalogueItem, query string) string {
	words := lo.Filter(strings.Fields(strings.ToLower(query)), func(w string, _ int) bool {
		return len(w) > 2
	})
	hits := lo.Filter(items, func(item CatalogueItem, _ int) bool {
		hay := strings.ToLower(item.Category + " " + item.Name)
		return lo.SomeBy(words, func(w string) bool { return strings.Contains(hay, w) })
	})

	var b strings.Builder
	if len(hits) == 0 {
		hits = items
		fmt.Fprintf(&b, "You said %q. Here is everything we stock right now.\n\n", strings.TrimSpace(query))
	} else {
		fmt.Fprintf(&b, "Here is what matches %q.\n\n", strings.TrimSpace(query))
	}
	for _, group := range groupByCategory(hits) {
		b.WriteString(group[0].Category)
		b.WriteString(":\n")
		for _, item := range group {
			b.WriteString(item.Line())
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	b.WriteString("Browse the full range at https://shop.botrix.dev")
	return b.String()
}

func groupByCategory(items []CatalogueItem) [][]CatalogueItem {
	order := lo.Uniq(lo.Map(items, func(item CatalogueItem, _ int) string { return item.Category }))
	grouped := lo.GroupBy(items, func(item CatalogueItem) string { return item.Category })
	return lo.Map(order, func(category string, _ int) []CatalogueItem { return grouped[category] })
}

// rupees 按印度数字分组格式化，例如 38900 -> ₹38,900，86000 -> ₹86,000。
func rupees(amount int) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return "₹" + s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	parts = append([]string{head}, parts...)
	return "₹" + strings.Join(parts, ",") + "," + tail
}
