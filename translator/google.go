package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GoogleProvider 免费的 Google 翻译接口（client=gtx），无需 API Key
type GoogleProvider struct {
	*BaseProvider
}

func (p *GoogleProvider) GetName() string {
	return "google"
}

func (p *GoogleProvider) Translate(ctx context.Context, req Request) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", googleCode(req.SourceLang))
	query.Set("tl", googleCode(req.TargetLang))
	query.Set("dt", "t")

	// 文本放在表单里，避免 URL 过长
	form := url.Values{}
	form.Set("q", req.Text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.Config.APIURL+"?"+query.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	body, err := p.doRequest(httpReq)
	if err != nil {
		return "", err
	}

	return parseGoogleResponse(body)
}

// parseGoogleResponse 解析嵌套数组格式: [[["译文","原文",...],...],null,"en",...]
func parseGoogleResponse(body []byte) (string, error) {
	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}
	if len(raw) == 0 {
		return "", ErrEmptyResult
	}

	sentences, ok := raw[0].([]any)
	if !ok || len(sentences) == 0 {
		return "", ErrEmptyResult
	}

	var sb strings.Builder
	for _, s := range sentences {
		parts, ok := s.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if text, ok := parts[0].(string); ok {
			sb.WriteString(text)
		}
	}

	return nonEmpty(sb.String())
}

// googleCode Google 接口使用的语言代码（zh-CN、zh-TW 保留地区）
func googleCode(code string) string {
	switch strings.ToLower(code) {
	case "", AutoDetect:
		return AutoDetect
	case "zh", "zh-hans", "zh-cn":
		return "zh-CN"
	case "zh-hant", "zh-tw":
		return "zh-TW"
	}
	return baseCode(code)
}
