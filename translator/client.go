package translator

import (
	"context"
	"errors"
	"strings"
	"time"

	"pdf-translator/logging"
	"pdf-translator/pipeline"
)

// Client 翻译客户端（支持多提供商），实现 pipeline.Translator
type Client struct {
	Provider      Provider
	Cache         *Cache
	Prompt        string
	Token         string // 分隔符核心标记，写入提示词并用于缓存校验
	RetryTimes    int
	RetryInterval time.Duration
	Timeout       time.Duration // 单次调用超时，0 表示不限制
	log           *logging.Logger
}

// NewClient 创建翻译客户端
func NewClient(provider Provider, cache *Cache, log *logging.Logger) *Client {
	if log == nil {
		log = logging.Discard()
	}
	return &Client{
		Provider:      provider,
		Cache:         cache,
		Token:         pipeline.SeparatorToken,
		RetryTimes:    2,
		RetryInterval: 2 * time.Second,
		Timeout:       60 * time.Second,
		log:           log.With(map[string]interface{}{"provider": provider.GetName()}),
	}
}

// NewClientFromConfig 按配置创建提供商和客户端
func NewClientFromConfig(ctx context.Context, config ProviderConfig, cache *Cache, log *logging.Logger) (*Client, error) {
	provider, err := NewProvider(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewClient(provider, cache, log), nil
}

// WithRetry 设置重试参数
func (c *Client) WithRetry(times int, interval time.Duration) *Client {
	c.RetryTimes = times
	c.RetryInterval = interval
	return c
}

// WithTimeout 设置单次调用超时
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.Timeout = timeout
	return c
}

// WithPrompt 设置附加提示词
func (c *Client) WithPrompt(prompt string) *Client {
	c.Prompt = prompt
	return c
}

// WithSeparator 设置批次分隔符，只保留其核心标记
func (c *Client) WithSeparator(separator string) *Client {
	c.Token = pipeline.CoreToken(separator)
	return c
}

// Translate 翻译文本（带缓存与重试）
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	req := Request{Text: text, SourceLang: sourceLang, TargetLang: targetLang, Prompt: c.Prompt, Token: c.Token}
	name := c.Provider.GetName()

	key := CacheKey{
		Provider: name,
		Source:   sourceLang,
		Target:   targetLang,
		Prompt:   c.Prompt,
		Token:    c.Token,
		Text:     text,
	}
	if c.Cache != nil {
		if cached, ok := c.Cache.Get(key); ok {
			c.log.Debug("命中翻译缓存", map[string]interface{}{"chars": len([]rune(text))})
			return cached, nil
		}
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.RetryTimes; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.RetryInterval); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		result, err := c.call(ctx, req)
		if err == nil {
			if c.Cache != nil {
				if stored, err := c.Cache.Set(key, result); err != nil {
					c.log.Warn("写入翻译缓存失败", map[string]interface{}{"error": err.Error()})
				} else if !stored {
					c.log.Debug("译文分段数不符，不写入缓存", map[string]interface{}{"members": key.Members()})
				}
			}
			return result, nil
		}

		lastErr = err
		c.log.Debug("翻译请求失败", map[string]interface{}{
			"attempt": attempts,
			"error":   err.Error(),
			"text":    logging.Truncate(text, 60),
		})

		if errors.Is(err, ErrQuotaExceeded) || ctx.Err() != nil {
			break
		}
	}

	return "", &TranslationError{Provider: name, Attempts: attempts, Err: lastErr}
}

// call 单次调用提供商，带超时
func (c *Client) call(ctx context.Context, req Request) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	out, err := c.Provider.Translate(ctx, req)
	if err != nil {
		return "", err
	}
	return nonEmpty(out)
}

// sleep 可被取消的等待
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
