package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"pdf-translator/config"
	"pdf-translator/extract"
	"pdf-translator/logging"
	"pdf-translator/models"
	"pdf-translator/pipeline"
	"pdf-translator/translator"
	"pdf-translator/writer"
)

type translateOptions struct {
	direction string
	from      string
	to        string
	format    string
	output    string
	workers   int
	maxChars  int
	provider  string
	apiKey    string
	apiURL    string
	model     string
	prompt    string
	font      string
	noCache   bool
}

func newTranslateCmd() *cobra.Command {
	var opts translateOptions

	cmd := &cobra.Command{
		Use:   "translate <input.pdf>",
		Short: "在命令行翻译单个 PDF",
		Long: `提取 PDF 文本并分批翻译，结果写入 -o 指定的文件。
未指定 -o 时输出到输入文件旁，扩展名取决于 --format。

Examples:
  pdf-translator translate paper.pdf --direction en-id
  pdf-translator translate paper.pdf --to en --format md -o paper.en.md
  pdf-translator translate paper.pdf --provider openai --model gpt-4o-mini --workers 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runTranslate(cmd.Context(), cfg, opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.direction, "direction", "", "预设翻译方向: en-id, id-en, auto-id, auto-en")
	f.StringVar(&opts.from, "from", "", "源语言（auto 为自动检测）")
	f.StringVar(&opts.to, "to", "", "目标语言")
	f.StringVarP(&opts.format, "format", "f", "", "输出格式: txt, html, md, pdf, bilingual, docx")
	f.StringVarP(&opts.output, "output", "o", "", "输出文件路径")
	f.IntVarP(&opts.workers, "workers", "w", 0, "并发批次数")
	f.IntVar(&opts.maxChars, "max-chars", 0, "每批最大字符数")
	f.StringVarP(&opts.provider, "provider", "p", "", "翻译提供商")
	f.StringVar(&opts.apiKey, "api-key", "", "API Key")
	f.StringVar(&opts.apiURL, "api-url", "", "API 地址")
	f.StringVar(&opts.model, "model", "", "模型名称")
	f.StringVar(&opts.prompt, "prompt", "", "附加提示词")
	f.StringVar(&opts.font, "font", "", "PDF 输出使用的 TTF 字体")
	f.BoolVar(&opts.noCache, "no-cache", false, "忽略已有翻译缓存，新结果仍会写入")

	return cmd
}

// apply 命令行参数覆盖配置
func (o translateOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.direction != "" {
		d, ok := models.FindDirection(o.direction)
		if !ok {
			return fmt.Errorf("不支持的翻译方向: %s", o.direction)
		}
		cfg.Pipeline.SourceLanguage = d.Source
		cfg.Pipeline.TargetLanguage = d.Target
	}
	if o.from != "" {
		cfg.Pipeline.SourceLanguage = o.from
	}
	if o.to != "" {
		cfg.Pipeline.TargetLanguage = o.to
	}
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.font != "" {
		cfg.Output.FontPath = o.font
	}
	if cmd.Flags().Changed("workers") {
		cfg.Pipeline.Workers = o.workers
	}
	if cmd.Flags().Changed("max-chars") {
		cfg.Pipeline.MaxChars = o.maxChars
	}
	if o.provider != "" && translator.ProviderType(o.provider) != cfg.Provider.Type {
		cfg.Provider = translator.ProviderConfig{
			Type:        translator.ProviderType(o.provider),
			Temperature: cfg.Provider.Temperature,
		}
	}
	if o.apiKey != "" {
		cfg.Provider.APIKey = o.apiKey
	}
	if o.apiURL != "" {
		cfg.Provider.APIURL = o.apiURL
	}
	if o.model != "" {
		cfg.Provider.Model = o.model
	}
	if o.prompt != "" {
		cfg.Pipeline.Prompt = o.prompt
	}
	return cfg.Validate()
}

func runTranslate(ctx context.Context, cfg *config.Config, opts translateOptions, input string, stdout, stderr io.Writer) error {
	if !strings.EqualFold(filepath.Ext(input), ".pdf") {
		return errors.New("只支持 .pdf 文件")
	}

	logCfg := cfg.Log
	if logCfg.Output == nil {
		logCfg.Output = stderr
	}
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := translator.NormalizeLanguage(cfg.Pipeline.SourceLanguage)
	if err != nil {
		return err
	}
	target, err := translator.NormalizeLanguage(cfg.Pipeline.TargetLanguage)
	if err != nil {
		return err
	}
	format, err := writer.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "." + target + format.Extension()
	}

	cache := openCache(cfg, opts.noCache, log)

	client, err := cfg.NewClient(ctx, cfg.Provider, cache, "", log)
	if err != nil {
		return err
	}

	dt := translator.NewDocumentTranslator(
		client,
		extract.New(extract.Options{}, log),
		writer.New(writer.Options{FontPath: cfg.Output.FontPath}),
		cfg.PipelineOptions(),
		log,
	)

	var mu sync.Mutex
	res, err := dt.TranslateDocument(ctx, translator.Job{
		InputPath:  input,
		OutputPath: output,
		FileName:   filepath.Base(input),
		SourceLang: source,
		TargetLang: target,
		Format:     format,
		Provider:   client.Provider.GetName(),
	}, func(p float64) {
		mu.Lock()
		fmt.Fprintf(stderr, "\r翻译进度: %3.0f%%", p*100)
		mu.Unlock()
	}, nil)
	fmt.Fprintln(stderr)
	if err != nil {
		return err
	}

	report := res.Report
	fmt.Fprintf(stdout, "%s\n", res.OutputPath)
	fmt.Fprintf(stdout, "  pages: %d  fragments: %d  batches: %d  fallbacks: %d  kept original: %d  calls: %d\n",
		res.Document.Pages, len(res.Document.Fragments), report.Batches(), report.Fallbacks(), len(report.Failures()), report.Calls())
	if n := report.Count(pipeline.OutcomeSkipped); n > 0 {
		fmt.Fprintf(stdout, "  skipped batches: %d\n", n)
	}
	return nil
}

// openCache 打开命令行使用的缓存；noCache 时跳过读取，新结果照常写入
func openCache(cfg *config.Config, noCache bool, log *logging.Logger) *translator.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	cache, err := translator.NewCache(cfg.CacheDir())
	if err != nil {
		log.Warn("创建翻译缓存失败，不使用缓存", map[string]interface{}{"error": err.Error()})
		return nil
	}
	if noCache {
		cache.DisableCache()
	}
	return cache
}
