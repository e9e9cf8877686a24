// Lambda 入口：接收已提取的片段，分批翻译后返回
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"pdf-translator/config"
	"pdf-translator/logging"
	"pdf-translator/translator"
)

func main() {
	h, err := newHandler(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	lambda.Start(h.handleRequest)
}

func newHandler(ctx context.Context) (*handler, error) {
	cfg, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		return nil, err
	}
	cfg.Log.Format = "json"

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	client, err := cfg.NewClient(ctx, cfg.Provider, nil, "", log)
	if err != nil {
		return nil, err
	}

	return &handler{
		dt:  translator.NewDocumentTranslator(client, nil, nil, cfg.PipelineOptions(), log),
		log: log,
	}, nil
}
