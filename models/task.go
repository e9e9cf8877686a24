package models

import (
	"time"

	"pdf-translator/pipeline"
)

// 任务状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TranslateTask 一次 PDF 翻译任务
type TranslateTask struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"-"`
	SourceFile     string     `json:"sourceFile"`
	SourceLanguage string     `json:"sourceLanguage"`
	TargetLanguage string     `json:"targetLanguage"`
	Provider       string     `json:"provider"`
	Format         string     `json:"format"`
	Status         string     `json:"status"` // pending, processing, completed, failed
	Progress       float64    `json:"progress"`
	Error          string     `json:"error,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    time.Time  `json:"completedAt,omitempty"`
	OutputPath     string     `json:"-"`
	Stats          *TaskStats `json:"stats,omitempty"`

	// 预览与重新渲染用，不序列化
	Title      string              `json:"-"`
	Pages      int                 `json:"-"`
	Original   []pipeline.Fragment `json:"-"`
	Translated []pipeline.Fragment `json:"-"`
}

// TaskStats 翻译统计
type TaskStats struct {
	Pages      int   `json:"pages"`
	Fragments  int   `json:"fragments"`
	Batches    int   `json:"batches"`
	Fallbacks  int   `json:"fallbacks"`
	Failures   int   `json:"failures"`
	Skipped    int   `json:"skipped"`
	Calls      int   `json:"calls"`
	DurationMs int64 `json:"durationMs"`
}

// ProviderSettings 请求中携带的提供商配置，留空字段使用服务端配置
type ProviderSettings struct {
	Provider    string            `json:"provider"` // google, openai, claude, gemini, ollama, deepseek, libretranslate, eino, lambda, custom, echo
	APIKey      string            `json:"apiKey"`
	APIURL      string            `json:"apiUrl"`
	Model       string            `json:"model"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"maxTokens"`
	Function    string            `json:"function,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"` // 额外参数，用于自定义提供商
}

// TranslateRequest 翻译请求参数
type TranslateRequest struct {
	Direction        string           `json:"direction,omitempty"`
	SourceLanguage   string           `json:"sourceLanguage"`
	TargetLanguage   string           `json:"targetLanguage"`
	Format           string           `json:"format"`
	Provider         ProviderSettings `json:"llmConfig"`
	UserPrompt       string           `json:"userPrompt,omitempty"`
	ForceRetranslate bool             `json:"forceRetranslate,omitempty"` // 是否强制重新翻译（忽略缓存）
}

// Direction 预设的翻译方向
type Direction struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Directions 支持的翻译方向
var Directions = []Direction{
	{ID: "en-id", Label: "English → Indonesian", Source: "en", Target: "id"},
	{ID: "id-en", Label: "Indonesian → English", Source: "id", Target: "en"},
	{ID: "auto-id", Label: "Auto → Indonesian", Source: "auto", Target: "id"},
	{ID: "auto-en", Label: "Auto → English", Source: "auto", Target: "en"},
}

// FindDirection 按 ID 查找翻译方向
func FindDirection(id string) (Direction, bool) {
	for _, d := range Directions {
		if d.ID == id {
			return d, true
		}
	}
	return Direction{}, false
}
