package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// lambdaInvoker lambda.Client 中用到的方法
type lambdaInvoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaRequest 翻译函数的请求格式（分块模式）
type LambdaRequest struct {
	Chunks     [][]string `json:"chunks"`
	SourceLang string     `json:"source_lang,omitempty"`
	TargetLang string     `json:"target_lang"`
}

// LambdaResponse 翻译函数的响应格式
type LambdaResponse struct {
	Translations [][]string `json:"translations"`
	Error        string     `json:"error,omitempty"`
}

// LambdaProvider 调用部署在 AWS Lambda 上的翻译函数
type LambdaProvider struct {
	client   lambdaInvoker
	function string
}

// NewLambdaProvider 使用默认 AWS 凭证链创建 Lambda 提供商
func NewLambdaProvider(ctx context.Context, cfg ProviderConfig) (*LambdaProvider, error) {
	if cfg.Function == "" {
		return nil, errors.New("lambda 提供商需要配置 function")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &LambdaProvider{
		client:   lambda.NewFromConfig(awsCfg),
		function: cfg.Function,
	}, nil
}

func (p *LambdaProvider) GetName() string {
	return "lambda"
}

func (p *LambdaProvider) Translate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(LambdaRequest{
		Chunks:     [][]string{{req.Text}},
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
	})
	if err != nil {
		return "", err
	}

	result, err := p.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(p.function),
		Payload:      payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke lambda %s: %w", p.function, err)
	}
	if result.FunctionError != nil {
		return "", fmt.Errorf("lambda error: %s", aws.ToString(result.FunctionError))
	}

	var resp LambdaResponse
	if err := json.Unmarshal(result.Payload, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("translator error: %s", resp.Error)
	}
	if len(resp.Translations) == 0 || len(resp.Translations[0]) == 0 {
		return "", ErrEmptyResult
	}
	return nonEmpty(resp.Translations[0][0])
}
