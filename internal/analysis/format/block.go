package format

// Kind 区分展示块类型。
type Kind string

const (
	KindHeading   Kind = "heading"
	KindProduct   Kind = "product"
	KindParagraph Kind = "paragraph"
)

// Span is one piece of a paragraph: plain text, or a link when URL is set.
type Span struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// Product 是商品卡片的解析结果，缺失字段为空字符串。
type Product struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Block is one display unit produced from a single reply line.
type Block struct {
	Kind    Kind     `json:"kind"`
	Text    string   `json:"text,omitempty"`
	Spans   []Span   `json:"spans,omitempty"`
	Product *Product `json:"product,omitempty"`
}

// HasLinks reports whether a paragraph carries link spans.
func (b Block) HasLinks() bool {
	for _, s := range b.Spans {
		if s.URL != "" {
			return true
		}
	}
	return false
}

// Line 是规范化后的一行文本及其行号。
type Line struct {
	Index int
	Text  string
}
