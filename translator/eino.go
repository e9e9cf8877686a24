package translator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// chatGenerator eino 聊天模型中翻译用到的部分
type chatGenerator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// EinoProvider 通过 cloudwego/eino 聊天模型翻译
type EinoProvider struct {
	model chatGenerator
	name  string
}

// NewEinoProvider 创建 eino 提供商，apiUrl 作为 OpenAI 兼容服务的 BaseURL
func NewEinoProvider(ctx context.Context, config ProviderConfig) (*EinoProvider, error) {
	chatModelConfig := &openai.ChatModelConfig{
		Model:  config.Model,
		APIKey: config.APIKey,
	}
	if config.APIURL != "" {
		chatModelConfig.BaseURL = config.APIURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &EinoProvider{model: chatModel, name: "eino"}, nil
}

func (p *EinoProvider) GetName() string {
	return p.name
}

func (p *EinoProvider) Translate(ctx context.Context, req Request) (string, error) {
	response, err := p.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt(req)),
		schema.UserMessage(req.Text),
	})
	if err != nil {
		return "", err
	}
	if response == nil {
		return "", ErrEmptyResult
	}
	return nonEmpty(response.Content)
}
