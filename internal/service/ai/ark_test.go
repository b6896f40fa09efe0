package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeChatModel struct {
	reply    *schema.Message
	err      error
	received []*schema.Message
	opts     *model.Options
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.received = input
	f.opts = model.GetCommonOptions(nil, opts...)
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatModelCompleter(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("Onward.", nil)}
	c := NewChatModelCompleter(fake, "", 128, nil, nil)

	text, err := c.Complete(context.Background(), CompletionRequest{
		Messages:    []*schema.Message{schema.UserMessage("go")},
		Temperature: 0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Onward.", text)
	require.Len(t, fake.received, 1)
	require.NotNil(t, fake.opts.Temperature)
	assert.InDelta(t, 0.5, *fake.opts.Temperature, 1e-6)
	require.NotNil(t, fake.opts.MaxTokens)
	assert.Equal(t, 128, *fake.opts.MaxTokens)
}

func TestChatModelCompleterErrors(t *testing.T) {
	for name, fake := range map[string]*fakeChatModel{
		"generate error": {err: errors.New("quota")},
		"empty reply":    {reply: schema.AssistantMessage("", nil)},
		"nil reply":      {},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewChatModelCompleter(fake, ProviderArk, 0, nil, nil).Complete(context.Background(), CompletionRequest{})
			var upstream *UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, ProviderArk, upstream.Provider)
		})
	}
}

func TestGeminiContents(t *testing.T) {
	system, contents := geminiContents([]*schema.Message{
		schema.SystemMessage("persona"),
		schema.SystemMessage("context"),
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
		nil,
	})

	assert.Equal(t, "persona\n\ncontext", system)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
}
