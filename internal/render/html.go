package render

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/raysh454/darklens/internal/auditor"
)

const pageCSS = `body{font-family:system-ui,sans-serif;max-width:960px;margin:2rem auto;padding:0 1rem;color:#222}
table{border-collapse:collapse;margin:1rem 0}th,td{border:1px solid #ccc;padding:.4rem .6rem;text-align:left}
th{background:#f3f3f3}h3{margin-top:1.5rem}`

// HTML renders report as a complete HTML page.
func HTML(report *auditor.Report) ([]byte, error) {
	md, err := Markdown(report)
	if err != nil {
		return nil, err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.CompletePage,
		Title: "Compliance report: " + report.Summary.TargetURL,
		Head:  []byte("<style>" + pageCSS + "</style>\n"),
	})
	return markdown.Render(doc, renderer), nil
}
