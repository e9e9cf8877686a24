// pdf-translator 把 PDF 文本分批翻译并输出为 txt/html/md/pdf
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdf-translator/config"
)

// 版本信息（构建时通过 -ldflags 设置）
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdf-translator",
		Short: "PDF 文档翻译器",
		Long: `PDF 文档翻译器：提取 PDF 文本，按字符预算合并请求分批翻译，
并按字号还原标题层级输出为 txt、html、md、pdf 或双语对照 html。

Commands:
  serve       启动 Web 服务
  translate   在命令行翻译单个 PDF
  version     显示版本信息`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML 配置文件路径")

	root.AddCommand(
		newServeCmd(),
		newTranslateCmd(),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pdf-translator version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}
