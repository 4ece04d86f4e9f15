package bot

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/teacher-bot/internal/chat"
)

func commandMessage(text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		MessageID: 42,
		From:      &tgbotapi.User{ID: 7, UserName: "ada"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
		Date:      1700000000,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: length},
		},
	}
}

func plainMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 43,
		From:      &tgbotapi.User{ID: 7, FirstName: "Ada", LastName: "Lovelace"},
		Chat:      &tgbotapi.Chat{ID: 100},
		Text:      text,
		Date:      1700000000,
	}
}

func TestDirectiveFor_PlainMessageIsChat(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(plainMessage("how do channels work?"))

	assert.Equal(t, "chat", d.Name)
	assert.Equal(t, "how do channels work?", d.Question)
	assert.Equal(t, "100_7", d.UserKey)
	assert.Equal(t, "Ada Lovelace", d.UserName)
	assert.Equal(t, int64(100), d.Target.ChatID)
	require.NotNil(t, d.Reply)
	assert.Equal(t, 43, d.Reply.MessageID)
}

func TestDirectiveFor_ArxivBatchAndQuestion(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/arxiv 1706.03762 2104.05704 Compare these two papers"))

	assert.Equal(t, "arxiv", d.Name)
	assert.Equal(t, []string{"1706.03762", "2104.05704"}, d.Args)
	assert.Equal(t, "Compare these two papers", d.Question)
	assert.False(t, d.UseMemory)
}

func TestDirectiveFor_ArxivMemoryFlag(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/arxiv --memory 1706.03762 Tell me about attention"))

	assert.True(t, d.UseMemory)
	assert.Equal(t, []string{"1706.03762"}, d.Args)
	assert.Equal(t, "Tell me about attention", d.Question)
}

func TestDirectiveFor_ArxivURLAccepted(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/arxiv https://arxiv.org/abs/1706.03762 What is this?"))

	assert.Equal(t, []string{"https://arxiv.org/abs/1706.03762"}, d.Args)
	assert.Equal(t, "What is this?", d.Question)
}

func TestDirectiveFor_ArxivQuestionWordNotAnID(t *testing.T) {
	b := &Bot{}
	// "attention" matches the bare identifier shape but has no digits, so it
	// belongs to the question.
	d := b.directiveFor(commandMessage("/arxiv attention please"))

	assert.Empty(t, d.Args)
	assert.Equal(t, "attention please", d.Question)
}

func TestDirectiveFor_CrawlURLs(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/crawl https://a.example www.b.example what do these say"))

	assert.Equal(t, []string{"https://a.example", "www.b.example"}, d.Args)
	assert.Equal(t, "what do these say", d.Question)
}

func TestDirectiveFor_DDGQuotedPhrase(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage(`/ddg "python asyncio" How to use async/await?`))

	assert.Equal(t, []string{"python asyncio"}, d.Args)
	assert.Equal(t, "How to use async/await?", d.Question)
}

func TestDirectiveFor_DDGSingleToken(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/ddg golang what is it"))

	assert.Equal(t, []string{"golang"}, d.Args)
	assert.Equal(t, "what is it", d.Question)
}

func TestDirectiveFor_LinksLimit(t *testing.T) {
	b := &Bot{}
	d := b.directiveFor(commandMessage("/links 500"))
	assert.Equal(t, []string{"500"}, d.Args)

	d = b.directiveFor(commandMessage("/links"))
	assert.Empty(t, d.Args)
}

func TestDirectiveFor_AdminFlag(t *testing.T) {
	b := New(nil, nil, NewHistoryBuffer(10), []int64{7}, nil)
	assert.True(t, b.directiveFor(commandMessage("/globalreset")).Admin)

	b = New(nil, nil, NewHistoryBuffer(10), nil, nil)
	assert.False(t, b.directiveFor(commandMessage("/globalreset")).Admin)
}

func TestHistoryBuffer_RecentNewestFirst(t *testing.T) {
	h := NewHistoryBuffer(10)
	h.Observe(plainMessage("first"))
	h.Observe(plainMessage("second"))
	h.Observe(plainMessage("third"))

	recent := h.Recent(chat.Target{ChatID: 100}, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Content)
	assert.Equal(t, "second", recent[1].Content)
}

func TestHistoryBuffer_BoundedPerChat(t *testing.T) {
	h := NewHistoryBuffer(3)
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		h.Observe(plainMessage(text))
	}

	recent := h.Recent(chat.Target{ChatID: 100}, 0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].Content)
	assert.Equal(t, "c", recent[2].Content)
}

func TestHistoryBuffer_ChatsIsolated(t *testing.T) {
	h := NewHistoryBuffer(10)
	h.Observe(plainMessage("in chat 100"))

	other := plainMessage("in chat 200")
	other.Chat = &tgbotapi.Chat{ID: 200}
	h.Observe(other)

	assert.Len(t, h.Recent(chat.Target{ChatID: 100}, 0), 1)
	assert.Len(t, h.Recent(chat.Target{ChatID: 200}, 0), 1)
	assert.Empty(t, h.Recent(chat.Target{ChatID: 300}, 0))
}

func TestHistoryBuffer_IgnoresEmptyMessages(t *testing.T) {
	h := NewHistoryBuffer(10)
	h.Observe(plainMessage(""))
	assert.Empty(t, h.Recent(chat.Target{ChatID: 100}, 0))
}

func TestLooksLikeArxivID(t *testing.T) {
	assert.True(t, looksLikeArxivID("1706.03762"))
	assert.True(t, looksLikeArxivID("https://arxiv.org/pdf/1706.03762.pdf"))
	assert.False(t, looksLikeArxivID("attention"))
	assert.False(t, looksLikeArxivID("what/is/this"))
}
