package semantic

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// claudeClient implements completer using Anthropic's Claude
type claudeClient struct {
	client *anthropic.Client
	model  string
}

func newClaude(opts Options) (*claudeClient, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("FORMPROBE_ANTHROPIC_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("FORMPROBE_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	model := opts.Model
	if model == "" {
		model = string(anthropic.ModelClaudeHaiku4_5)
	}

	return &claudeClient{client: &client, model: model}, nil
}

func (c *claudeClient) name() string { return "claude" }

func (c *claudeClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("empty response from Claude")
}
