package translator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pdf-translator/extract"
	"pdf-translator/logging"
	"pdf-translator/pipeline"
	"pdf-translator/writer"
)

// DocumentExtractor 从文件提取片段
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*extract.Document, error)
}

// Job 一次文档翻译
type Job struct {
	InputPath  string
	OutputPath string // 为空时不写出文件
	FileName   string // 展示用的原文件名
	SourceLang string
	TargetLang string
	Format     writer.Format
	Provider   string
}

// DocumentResult 文档翻译结果
type DocumentResult struct {
	Document   *extract.Document
	Translated []pipeline.Fragment
	Report     *pipeline.Result
	OutputPath string
	Duration   time.Duration
}

// DocumentTranslator 统一文档翻译器：提取 → 批量翻译 → 写出
type DocumentTranslator struct {
	Client    pipeline.Translator
	Extractor DocumentExtractor
	Writer    *writer.Writer
	Options   pipeline.Options
	log       *logging.Logger
}

// NewDocumentTranslator 创建文档翻译器
func NewDocumentTranslator(client pipeline.Translator, extractor DocumentExtractor, w *writer.Writer, opts pipeline.Options, log *logging.Logger) *DocumentTranslator {
	if log == nil {
		log = logging.Discard()
	}
	if w == nil {
		w = writer.New(writer.Options{})
	}
	return &DocumentTranslator{Client: client, Extractor: extractor, Writer: w, Options: opts, log: log}
}

// 进度分配：提取 10%，翻译 85%，写出 5%
const (
	progressExtracted  = 0.10
	progressTranslated = 0.95
)

// TranslateDocument 翻译文档。onExtracted 在提取完成后调用，可为 nil。
func (dt *DocumentTranslator) TranslateDocument(ctx context.Context, job Job, progressCallback func(float64), onExtracted func(*extract.Document)) (*DocumentResult, error) {
	start := time.Now()
	report := func(p float64) {
		if progressCallback != nil {
			progressCallback(p)
		}
	}

	dt.log.Info("开始翻译文档", map[string]interface{}{
		"file":   job.InputPath,
		"source": job.SourceLang,
		"target": job.TargetLang,
		"format": string(job.Format),
	})

	doc, err := dt.Extractor.Extract(ctx, job.InputPath)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return nil, fmt.Errorf("无法从该 PDF 提取文本，可能是扫描件: %w", err)
		}
		return nil, fmt.Errorf("提取文本失败: %w", err)
	}
	report(progressExtracted)
	if onExtracted != nil {
		onExtracted(doc)
	}

	translated, result := dt.TranslateFragments(ctx, doc.Fragments, job.SourceLang, job.TargetLang, func(p float64) {
		report(progressExtracted + (progressTranslated-progressExtracted)*p)
	})
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("翻译已取消: %w", err)
	}

	out := &DocumentResult{
		Document:   doc,
		Translated: translated,
		Report:     result,
		OutputPath: job.OutputPath,
	}

	if job.OutputPath != "" {
		meta := writer.Meta{
			Title:      doc.Title,
			FileName:   job.FileName,
			SourceLang: job.SourceLang,
			TargetLang: job.TargetLang,
			Provider:   job.Provider,
			Pages:      doc.Pages,
		}
		if meta.FileName == "" {
			meta.FileName = job.InputPath
		}
		if err := dt.Writer.WriteFile(job.OutputPath, job.Format, meta, translated, doc.Fragments); err != nil {
			return nil, fmt.Errorf("写出文件失败: %w", err)
		}
	}
	report(1.0)

	out.Duration = time.Since(start)
	dt.log.LogOperationTiming("translate_document", out.Duration, map[string]interface{}{
		"file":      job.InputPath,
		"pages":     doc.Pages,
		"fragments": len(doc.Fragments),
		"batches":   result.Batches(),
		"fallbacks": result.Fallbacks(),
	})
	return out, nil
}

// TranslateFragments 批量翻译片段，不修改输入
func (dt *DocumentTranslator) TranslateFragments(ctx context.Context, fragments []pipeline.Fragment, sourceLang, targetLang string, progressCallback func(float64)) ([]pipeline.Fragment, *pipeline.Result) {
	opts := dt.Options
	opts.Progress = progressCallback
	driver := pipeline.NewDriver(dt.Client, opts, dt.log)
	result := driver.TranslateAll(ctx, fragments, sourceLang, targetLang)
	return result.Fragments, result
}
