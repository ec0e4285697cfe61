package semantic

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// geminiClient implements completer using the Gemini API
type geminiClient struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, opts Options) (*geminiClient, error) {
	apiKey := opts.APIKey
	for _, env := range []string{"FORMPROBE_GEMINI_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if apiKey != "" {
			break
		}
		apiKey = os.Getenv(env)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("FORMPROBE_GEMINI_KEY, GEMINI_API_KEY or GOOGLE_API_KEY environment variable required")
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.BaseURL != "" {
		cc.HTTPOptions.BaseURL = opts.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) name() string { return "gemini" }

func (c *geminiClient) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		MaxOutputTokens:   256,
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return text, nil
}
