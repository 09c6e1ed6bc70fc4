package intel

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAI talks to the Chat Completions API.
type OpenAI struct {
	client    openai.Client
	model     shared.ChatModel
	maxTokens int64
}

// NewOpenAI creates an OpenAI backend. An empty model selects gpt-4o.
func NewOpenAI(apiKey, modelName string, maxTokens int, baseURL string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	m := shared.ChatModelGPT4o
	if modelName != "" {
		m = shared.ChatModel(modelName)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     m,
		maxTokens: int64(maxTokens),
	}
}

// Complete sends prompt as a single user message.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Model:               o.model,
		MaxCompletionTokens: openai.Int(o.maxTokens),
		Temperature:         openai.Float(0.3),
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	return completion.Choices[0].Message.Content, nil
}
