package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pdf-translator/pipeline"
)

// ProviderType 翻译提供商类型
type ProviderType string

const (
	ProviderGoogle         ProviderType = "google" // 免费的 translate.googleapis.com 接口
	ProviderOpenAI         ProviderType = "openai"
	ProviderDeepSeek       ProviderType = "deepseek"
	ProviderCustom         ProviderType = "custom"
	ProviderClaude         ProviderType = "claude"
	ProviderGemini         ProviderType = "gemini"
	ProviderOllama         ProviderType = "ollama"
	ProviderLibreTranslate ProviderType = "libretranslate"
	ProviderEino           ProviderType = "eino"   // cloudwego/eino 聊天模型
	ProviderLambda         ProviderType = "lambda" // AWS Lambda 翻译函数
	ProviderEcho           ProviderType = "echo"   // 原样返回，用于调试
)

// SupportedProviders 全部提供商类型
var SupportedProviders = []ProviderType{
	ProviderGoogle, ProviderOpenAI, ProviderDeepSeek, ProviderCustom, ProviderClaude,
	ProviderGemini, ProviderOllama, ProviderLibreTranslate, ProviderEino, ProviderLambda, ProviderEcho,
}

// IsSupported 是否为已知的提供商类型
func IsSupported(t ProviderType) bool {
	for _, p := range SupportedProviders {
		if p == t {
			return true
		}
	}
	return false
}

// defaultAPIURLs 未配置 apiUrl 时使用的地址
var defaultAPIURLs = map[ProviderType]string{
	ProviderGoogle:         "https://translate.googleapis.com/translate_a/single",
	ProviderOpenAI:         "https://api.openai.com/v1/chat/completions",
	ProviderDeepSeek:       "https://api.deepseek.com/v1/chat/completions",
	ProviderClaude:         "https://api.anthropic.com/v1/messages",
	ProviderOllama:         "http://localhost:11434/api/generate",
	ProviderLibreTranslate: "https://libretranslate.com/translate",
}

// Request 单次翻译请求
type Request struct {
	Text       string
	SourceLang string
	TargetLang string
	Prompt     string // 附加到系统提示词的用户说明
	Token      string // 需要原样保留的分隔符核心标记，为空时使用默认标记
}

// Provider 翻译提供商接口
type Provider interface {
	Translate(ctx context.Context, req Request) (string, error)
	GetName() string
}

// ProviderConfig 提供商配置
type ProviderConfig struct {
	Type        ProviderType      `json:"type" yaml:"type"`
	APIKey      string            `json:"apiKey" yaml:"apiKey"`
	APIURL      string            `json:"apiUrl" yaml:"apiUrl"`
	Model       string            `json:"model" yaml:"model"`
	Temperature float64           `json:"temperature" yaml:"temperature"`
	MaxTokens   int               `json:"maxTokens" yaml:"maxTokens"`
	Function    string            `json:"function,omitempty" yaml:"function"` // Lambda 函数名
	Extra       map[string]string `json:"extra,omitempty" yaml:"extra"`       // 额外参数
}

// BaseProvider 基础提供商实现
type BaseProvider struct {
	Config     ProviderConfig
	HTTPClient *http.Client
}

// NewProvider 创建提供商实例
func NewProvider(ctx context.Context, config ProviderConfig) (Provider, error) {
	if config.Type == "" {
		config.Type = ProviderGoogle
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURLs[config.Type]
	}

	base := &BaseProvider{
		Config: config,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	switch config.Type {
	case ProviderGoogle:
		return &GoogleProvider{BaseProvider: base}, nil
	case ProviderOpenAI, ProviderDeepSeek:
		return &OpenAIProvider{BaseProvider: base}, nil
	case ProviderCustom:
		return &CustomProvider{BaseProvider: base}, nil
	case ProviderClaude:
		return &ClaudeProvider{BaseProvider: base}, nil
	case ProviderGemini:
		return &GeminiProvider{BaseProvider: base}, nil
	case ProviderOllama:
		return &OllamaProvider{BaseProvider: base}, nil
	case ProviderLibreTranslate:
		return &LibreTranslateProvider{BaseProvider: base}, nil
	case ProviderEino:
		return NewEinoProvider(ctx, config)
	case ProviderLambda:
		return NewLambdaProvider(ctx, config)
	case ProviderEcho:
		return EchoProvider{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, config.Type)
	}
}

// doRequest 执行 HTTP 请求
func (b *BaseProvider) doRequest(req *http.Request) ([]byte, error) {
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// postJSON 以 JSON 请求体发送 POST
func (b *BaseProvider) postJSON(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return b.doRequest(req)
}

// systemPrompt 构建 LLM 系统提示词，要求保留分隔行
func systemPrompt(req Request) string {
	token := req.Token
	if token == "" {
		token = pipeline.SeparatorToken
	}
	prompt := fmt.Sprintf("You are a professional translator. Translate the following text from %s to %s. "+
		"Keep the original meaning and style. "+
		"The text may contain lines that consist only of %q; keep every such line unchanged and in the same place. "+
		"Only return the translated text without any explanations.",
		LanguageName(req.SourceLang), LanguageName(req.TargetLang), token)
	if req.Prompt != "" {
		prompt += " " + req.Prompt
	}
	return prompt
}

// nonEmpty 空白译文视为失败
func nonEmpty(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// chatResponse OpenAI 兼容的响应格式
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r chatResponse) text() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("API 错误: %s", r.Error.Message)
	}
	if len(r.Choices) == 0 {
		return "", ErrEmptyResult
	}
	return nonEmpty(r.Choices[0].Message.Content)
}

// chatRequest OpenAI 兼容的请求体
func (b *BaseProvider) chatRequest(req Request) map[string]any {
	body := map[string]any{
		"model":       b.Config.Model,
		"temperature": b.Config.Temperature,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(req)},
			{"role": "user", "content": req.Text},
		},
	}
	if b.Config.MaxTokens > 0 {
		body["max_tokens"] = b.Config.MaxTokens
	}
	return body
}

// OpenAIProvider OpenAI 兼容的提供商（包括 OpenAI、DeepSeek 等）
type OpenAIProvider struct {
	*BaseProvider
}

func (p *OpenAIProvider) GetName() string {
	return string(p.Config.Type)
}

func (p *OpenAIProvider) Translate(ctx context.Context, req Request) (string, error) {
	body, err := p.postJSON(ctx, p.Config.APIURL, p.chatRequest(req), map[string]string{
		"Authorization": "Bearer " + p.Config.APIKey,
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	return resp.text()
}

// CustomProvider 自定义 API 提供商，使用 OpenAI 兼容格式
type CustomProvider struct {
	*BaseProvider
}

func (p *CustomProvider) GetName() string {
	return "custom"
}

func (p *CustomProvider) Translate(ctx context.Context, req Request) (string, error) {
	reqBody := p.chatRequest(req)
	// 添加额外参数
	for k, v := range p.Config.Extra {
		reqBody[k] = v
	}

	headers := map[string]string{}
	if p.Config.APIKey != "" {
		headers["Authorization"] = "Bearer " + p.Config.APIKey
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, headers)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	return resp.text()
}

// ClaudeProvider Anthropic Claude 提供商
type ClaudeProvider struct {
	*BaseProvider
}

func (p *ClaudeProvider) GetName() string {
	return "claude"
}

func (p *ClaudeProvider) Translate(ctx context.Context, req Request) (string, error) {
	maxTokens := p.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	reqBody := map[string]any{
		"model":       p.Config.Model,
		"max_tokens":  maxTokens,
		"temperature": p.Config.Temperature,
		"system":      systemPrompt(req),
		"messages": []map[string]string{
			{"role": "user", "content": req.Text},
		},
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, map[string]string{
		"x-api-key":         p.Config.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Content) == 0 {
		return "", ErrEmptyResult
	}
	return nonEmpty(resp.Content[0].Text)
}

// GeminiProvider Google Gemini 提供商
type GeminiProvider struct {
	*BaseProvider
}

func (p *GeminiProvider) GetName() string {
	return "gemini"
}

func (p *GeminiProvider) Translate(ctx context.Context, req Request) (string, error) {
	generationConfig := map[string]any{
		"temperature": p.Config.Temperature,
	}
	if p.Config.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = p.Config.MaxTokens
	}

	reqBody := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]string{
					{"text": systemPrompt(req) + "\n\n" + req.Text},
				},
			},
		},
		"generationConfig": generationConfig,
	}

	// Gemini API URL 格式: https://generativelanguage.googleapis.com/v1/models/{model}:generateContent?key={apiKey}
	apiURL := p.Config.APIURL
	if apiURL == "" {
		apiURL = fmt.Sprintf("https://generativelanguage.googleapis.com/v1/models/%s:generateContent", p.Config.Model)
	}
	apiURL = fmt.Sprintf("%s?key=%s", apiURL, p.Config.APIKey)

	body, err := p.postJSON(ctx, apiURL, reqBody, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API 错误: %s", resp.Error.Message)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResult
	}
	return nonEmpty(resp.Candidates[0].Content.Parts[0].Text)
}

// OllamaProvider Ollama 本地模型提供商
type OllamaProvider struct {
	*BaseProvider
}

func (p *OllamaProvider) GetName() string {
	return "ollama"
}

func (p *OllamaProvider) Translate(ctx context.Context, req Request) (string, error) {
	options := map[string]any{
		"temperature": p.Config.Temperature,
	}
	if p.Config.MaxTokens > 0 {
		options["num_predict"] = p.Config.MaxTokens
	}

	reqBody := map[string]any{
		"model":   p.Config.Model,
		"prompt":  systemPrompt(req) + "\n\n" + req.Text,
		"stream":  false,
		"options": options,
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Response string `json:"response"`
		Error    string `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("API 错误: %s", resp.Error)
	}
	return nonEmpty(resp.Response)
}

// LibreTranslateProvider LibreTranslate 提供商
type LibreTranslateProvider struct {
	*BaseProvider
}

func (p *LibreTranslateProvider) GetName() string {
	return "libretranslate"
}

func (p *LibreTranslateProvider) Translate(ctx context.Context, req Request) (string, error) {
	reqBody := map[string]any{
		"q":      req.Text,
		"source": baseCode(req.SourceLang),
		"target": baseCode(req.TargetLang),
		"format": "text",
	}

	// 如果配置了 API Key，添加到请求中
	if p.Config.APIKey != "" {
		reqBody["api_key"] = p.Config.APIKey
	}

	body, err := p.postJSON(ctx, p.Config.APIURL, reqBody, nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		TranslatedText string `json:"translatedText"`
		Error          string `json:"error,omitempty"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("翻译错误: %s", resp.Error)
	}
	return nonEmpty(resp.TranslatedText)
}

// EchoProvider 原样返回输入
type EchoProvider struct{}

func (EchoProvider) GetName() string { return "echo" }

func (EchoProvider) Translate(_ context.Context, req Request) (string, error) {
	return req.Text, nil
}
