package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/botrix/backend/internal/analysis/format"
	"github.com/zhouzirui/botrix/backend/internal/model/chat"
)

type scriptedModel struct {
	mu     sync.Mutex
	reply  string
	err    error
	inputs [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) lastInput() []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs[len(m.inputs)-1]
}

func TestReplyUsesModelWithHistory(t *testing.T) {
	fake := &scriptedModel{reply: "We have two UPS units."}
	svc, err := NewServiceWithModel(context.Background(), fake, 4)
	require.NoError(t, err)
	assert.True(t, svc.ModelEnabled())

	assert.Equal(t, "We have two UPS units.", svc.Reply(context.Background(), "s1", "ups?"))
	assert.Equal(t, "We have two UPS units.", svc.Reply(context.Background(), "s1", "cheapest one?"))

	input := fake.lastInput()
	require.Len(t, input, 4)
	assert.Equal(t, schema.System, input[0].Role)
	assert.Contains(t, input[0].Content, "Desktop Backup 600VA")
	assert.Equal(t, schema.User, input[1].Role)
	assert.Equal(t, "ups?", input[1].Content)
	assert.Equal(t, schema.Assistant, input[2].Role)
	assert.Equal(t, "cheapest one?", input[3].Content)
}

func TestHistoryIsBounded(t *testing.T) {
	svc := NewEchoService(4)
	for _, q := range []string{"one", "two", "three"} {
		svc.Reply(context.Background(), "s1", q)
	}
	h := svc.History("s1")
	require.Len(t, h, 4)
	assert.Equal(t, "two", h[0].Text)
	assert.Equal(t, chat.SenderUser, h[0].Sender)
	assert.Equal(t, chat.SenderBot, h[3].Sender)

	svc.Forget("s1")
	assert.Empty(t, svc.History("s1"))
}

func TestReplyFallsBackToEchoOnModelError(t *testing.T) {
	fake := &scriptedModel{err: errors.New("quota exceeded")}
	svc, err := NewServiceWithModel(context.Background(), fake, 0)
	require.NoError(t, err)

	got := svc.Reply(context.Background(), "s1", "batteries please")
	assert.Contains(t, got, "Tall Tubular 150Ah")
}

func TestEchoReplyMatchesCategory(t *testing.T) {
	got := EchoReply(DemoCatalogue, "show me batteries")
	assert.Contains(t, got, "Batteries:")
	assert.Contains(t, got, "Lithium Pack 2.5kWh")
	assert.NotContains(t, got, "Desktop Backup")
}

func TestEchoReplyIsFormattable(t *testing.T) {
	blocks := format.New().Format(EchoReply(DemoCatalogue, "ups"))

	var headings, products int
	for _, b := range blocks {
		switch b.Kind {
		case format.KindHeading:
			headings++
			assert.Equal(t, "UPS Systems", b.Text)
		case format.KindProduct:
			products++
			assert.NotEmpty(t, b.Product.URL)
			assert.True(t, strings.HasPrefix(b.Product.Price, "₹"))
		}
	}
	assert.Equal(t, 1, headings)
	assert.Equal(t, 2, products)
}

func TestEchoReplyWithoutMatchListsEverything(t *testing.T) {
	got := EchoReply(DemoCatalogue, "hello")
	for _, item := range DemoCatalogue {
		assert.Contains(t, got, item.Name)
	}
}

func TestBlankQuery(t *testing.T) {
	svc := NewEchoService(0)
	assert.NotEmpty(t, svc.Reply(context.Background(), "s1", "  "))
	assert.Empty(t, svc.History("s1"))
}

func TestRupees(t *testing.T) {
	cases := map[int]string{
		650:     "₹650",
		7499:    "₹7,499",
		86000:   "₹86,000",
		1234567: "₹12,34,567",
	}
	for in, want := range cases {
		assert.Equal(t, want, rupees(in))
	}
}
