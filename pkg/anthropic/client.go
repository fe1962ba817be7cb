// Package anthropic is a thin single-turn wrapper over the Anthropic Messages
// API, shaped for prompt-per-review classification.
package anthropic

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client sends one prompt and returns the model's answer.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Request is a single-turn completion.
type Request struct {
	Model     string
	MaxTokens int64
	System    string
	// CacheSystem marks the system prompt for one-hour prompt caching.
	CacheSystem bool
	Prompt      string
	Temperature *float64
}

// Response is the model answer with its text blocks joined.
type Response struct {
	ID         string
	Model      string
	StopReason string
	Text       string
	Usage      Usage
}

type sdkClient struct {
	client sdk.Client
}

// NewClient returns a Client backed by anthropic-sdk-go.
func NewClient(apiKey string, opts ...option.RequestOption) Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &sdkClient{client: sdk.NewClient(opts...)}
}

func (c *sdkClient) Complete(ctx context.Context, req Request) (*Response, error) {
	msg, err := c.client.Messages.New(ctx, newParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: complete")
	}
	return newResponse(msg), nil
}

func newParams(req Request) sdk.MessageNewParams {
	p := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt))},
	}
	if req.System != "" {
		sys := sdk.TextBlockParam{Text: req.System}
		if req.CacheSystem {
			sys.CacheControl = sdk.NewCacheControlEphemeralParam()
			sys.CacheControl.TTL = sdk.CacheControlEphemeralTTL("1h")
		}
		p.System = []sdk.TextBlockParam{sys}
	}
	if req.Temperature != nil {
		p.Temperature = sdk.Float(*req.Temperature)
	}
	return p
}

func newResponse(msg *sdk.Message) *Response {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Text:       text.String(),
		Usage: Usage{
			Input:      msg.Usage.InputTokens,
			Output:     msg.Usage.OutputTokens,
			CacheWrite: msg.Usage.CacheCreationInputTokens,
			CacheRead:  msg.Usage.CacheReadInputTokens,
		},
	}
}
