package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pdf-translator/logging"
	"pdf-translator/pipeline"
	"pdf-translator/translator"
)

// warmupSource 定时预热事件的来源标识
const warmupSource = "warmup"

// Request 翻译请求
type Request struct {
	Fragments  []pipeline.Fragment `json:"fragments"`
	SourceLang string              `json:"sourceLang"`
	TargetLang string              `json:"targetLang"`
}

// Response 翻译结果，片段与请求等长同序
type Response struct {
	Fragments []pipeline.Fragment `json:"fragments,omitempty"`
	Batches   int                 `json:"batches"`
	Fallbacks int                 `json:"fallbacks"`
	Failures  int                 `json:"failures"`
	Skipped   int                 `json:"skipped"`
	Calls     int                 `json:"calls"`
	Error     string              `json:"error,omitempty"`
}

type handler struct {
	dt  *translator.DocumentTranslator
	log *logging.Logger
}

func (h *handler) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// 预热事件直接返回
	if isWarmupEvent(event) {
		return map[string]string{"status": "warm"}, nil
	}

	var req Request
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, err
	}
	return h.handle(ctx, req), nil
}

// handle 校验请求并翻译。校验错误写入 Response.Error，不作为调用失败返回
func (h *handler) handle(ctx context.Context, req Request) *Response {
	source, target, err := validateRequest(req)
	if err != nil {
		return &Response{Error: err.Error()}
	}

	if len(req.Fragments) == 0 {
		return &Response{Fragments: []pipeline.Fragment{}}
	}

	translated, result := h.dt.TranslateFragments(ctx, req.Fragments, source, target, nil)
	resp := &Response{
		Fragments: translated,
		Batches:   result.Batches(),
		Fallbacks: result.Fallbacks(),
		Failures:  len(result.Failures()),
		Skipped:   result.Count(pipeline.OutcomeSkipped),
		Calls:     result.Calls(),
	}
	if resp.Skipped > 0 {
		resp.Error = fmt.Sprintf("%d 个批次因超时未翻译", resp.Skipped)
	}
	return resp
}

// validateRequest 返回规范化后的源语言和目标语言
func validateRequest(req Request) (string, string, error) {
	if req.Fragments == nil {
		return "", "", errors.New("fragments is required")
	}
	if req.TargetLang == "" {
		return "", "", errors.New("targetLang is required")
	}

	source, err := translator.NormalizeLanguage(req.SourceLang)
	if err != nil {
		return "", "", fmt.Errorf("sourceLang: %w", err)
	}
	target, err := translator.NormalizeLanguage(req.TargetLang)
	if err != nil {
		return "", "", fmt.Errorf("targetLang: %w", err)
	}
	if target == translator.AutoDetect {
		return "", "", errors.New("targetLang cannot be auto")
	}
	if source == target {
		return "", "", errors.New("sourceLang and targetLang must be different")
	}
	return source, target, nil
}

func isWarmupEvent(event json.RawMessage) bool {
	var probe struct {
		Source string `json:"source"`
	}
	if err := json.Unmarshal(event, &probe); err != nil {
		return false
	}
	return probe.Source == warmupSource
}
