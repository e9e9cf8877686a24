package writer

import (
	"html/template"
	"io"
)

const pageCSS = `
        body {
            font-family: Arial, sans-serif;
            margin: 20px;
            line-height: 1.6;
            background-color: #f5f5f5;
        }
        .container {
            max-width: 800px;
            margin: 0 auto;
            background-color: white;
            padding: 30px;
            border-radius: 8px;
            box-shadow: 0 2px 10px rgba(0,0,0,0.1);
        }
        .header {
            text-align: center;
            margin-bottom: 30px;
            border-bottom: 2px solid #3498db;
            padding-bottom: 20px;
        }
        .header h1 {
            color: #2c3e50;
            margin: 0;
        }
        .meta-info {
            background-color: #ecf0f1;
            padding: 15px;
            border-radius: 5px;
            margin-bottom: 30px;
        }
        h1, h2, h3 { color: #2c3e50; }
        p { color: #34495e; }
        .section {
            margin-bottom: 25px;
            border: 1px solid #e0e0e0;
            border-radius: 5px;
            overflow: hidden;
        }
        .original {
            background-color: #f8f9fa;
            padding: 15px;
            border-bottom: 1px solid #e0e0e0;
        }
        .translation {
            background-color: #e8f4f8;
            padding: 15px;
        }
        .label {
            font-weight: bold;
            color: #2c3e50;
            margin-bottom: 8px;
            font-size: 14px;
        }
        .content {
            color: #34495e;
            white-space: pre-wrap;
        }
`

const documentTemplate = `<!DOCTYPE html>
<html lang="{{.Meta.TargetLang}}">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>{{.CSS}}</style>
</head>
<body>
    <div class="container">
        <div class="meta-info">
            <strong>原文件 / Source:</strong> {{.Meta.FileName}}<br>
            <strong>语言 / Languages:</strong> {{.Source}} → {{.Target}}<br>
            <strong>翻译时间 / Translated:</strong> {{.Meta.CreatedAt.Format "2006-01-02 15:04:05"}}
        </div>
{{range .Blocks}}{{if eq .Level 1}}        <h1>{{.Text}}</h1>
{{else if eq .Level 2}}        <h2>{{.Text}}</h2>
{{else if eq .Level 3}}        <h3>{{.Text}}</h3>
{{else}}        <p>{{.Text}}</p>
{{end}}{{end}}    </div>
</body>
</html>
`

const bilingualTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>{{.CSS}}</style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <h2>PDF Translation Result</h2>
        </div>

        <div class="meta-info">
            <strong>原文件:</strong> {{.Meta.FileName}}<br>
            <strong>总页数:</strong> {{.Meta.Pages}}<br>
            <strong>翻译时间:</strong> {{.Meta.CreatedAt.Format "2006-01-02 15:04:05"}}
        </div>
{{range $i, $b := .Blocks}}
        <div class="section">
            <div class="original">
                <div class="label">原文 / Original ({{$.Source}})</div>
                <div class="content">{{$b.Original}}</div>
            </div>
            <div class="translation">
                <div class="label">译文 / Translation ({{$.Target}})</div>
                <div class="content">{{$b.Text}}</div>
            </div>
        </div>
{{end}}    </div>
</body>
</html>
`

var (
	documentTmpl  = template.Must(template.New("document").Parse(documentTemplate))
	bilingualTmpl = template.Must(template.New("bilingual").Parse(bilingualTemplate))
)

type htmlView struct {
	Title  string
	CSS    template.CSS
	Meta   Meta
	Source string
	Target string
	Blocks []Block
}

func newView(meta Meta, blocks []Block) htmlView {
	return htmlView{
		Title:  meta.displayTitle(),
		CSS:    template.CSS(pageCSS),
		Meta:   meta,
		Source: langLabel(meta.SourceLang),
		Target: langLabel(meta.TargetLang),
		Blocks: blocks,
	}
}

// writeHTML 结构化 HTML，标题映射为 h1-h3
func writeHTML(out io.Writer, meta Meta, blocks []Block) error {
	return documentTmpl.Execute(out, newView(meta, blocks))
}

// writeBilingual 原文与译文逐段对照
func writeBilingual(out io.Writer, meta Meta, blocks []Block) error {
	return bilingualTmpl.Execute(out, newView(meta, blocks))
}
