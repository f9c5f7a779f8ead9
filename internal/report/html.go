package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/gwlsn/encbench/internal/compare"
)

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Encoder comparison</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #999; padding: 4px 10px; text-align: right; }
th { background: #eee; }
td.name { text-align: left; }
td.nan { background: #fdd; }
</style>
</head>
<body>
<h1>Encoder comparison</h1>

<h2>Overall</h2>
<table>
<tr><th>Test</th><th>Anchor</th><th>Speedup</th><th>BD-rate (PSNR)</th><th>BD-rate (SSIM)</th><th>BD-rate (VMAF)</th></tr>
{{range .Overall}}<tr><td class="name">{{.Test}}</td><td class="name">{{.Anchor}}</td>{{cell .Speedup}}{{cell .BDPSNR}}{{cell .BDSSIM}}{{cell .BDVMAF}}</tr>
{{end}}</table>

<h2>Per class</h2>
<table>
<tr><th>Test</th><th>Anchor</th><th>Class</th><th>Speedup</th><th>BD-rate (PSNR)</th><th>BD-rate (SSIM)</th><th>BD-rate (VMAF)</th></tr>
{{range .Classes}}<tr><td class="name">{{.Test}}</td><td class="name">{{.Anchor}}</td><td class="name">{{.Class}}</td>{{cell .Speedup}}{{cell .BDPSNR}}{{cell .BDSSIM}}{{cell .BDVMAF}}</tr>
{{end}}</table>

<h2>Per sequence</h2>
<table>
<tr><th>Test</th><th>Anchor</th><th>Sequence</th><th>Class</th><th>Speedup</th><th>BD-rate (PSNR)</th><th>BD-rate (SSIM)</th><th>BD-rate (VMAF)</th></tr>
{{range .Sequences}}<tr><td class="name">{{.Test}}</td><td class="name">{{.Anchor}}</td><td class="name">{{.Sequence}}</td><td class="name">{{.Class}}</td>{{cell .Speedup}}{{cell .BDPSNR}}{{cell .BDSSIM}}{{cell .BDVMAF}}</tr>
{{end}}</table>
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	// cell flags unavailable figures so they stand out in the table.
	"cell": func(v string) template.HTML {
		if v == "-" {
			return template.HTML(`<td class="nan">-</td>`)
		}
		return template.HTML(fmt.Sprintf("<td>%s</td>", template.HTMLEscapeString(v)))
	},
}).Parse(htmlTemplate))

// htmlData regroups rendered rows by aggregation scope for the template.
type htmlData struct {
	Sequences []Row
	Classes   []Row
	Overall   []Row
}

// WriteHTML renders the report as a standalone HTML page.
func WriteHTML(w io.Writer, rep *compare.Report) error {
	var data htmlData
	for _, row := range Rows(rep) {
		switch row.Scope {
		case "class":
			data.Classes = append(data.Classes, row)
		case "overall":
			data.Overall = append(data.Overall, row)
		default:
			data.Sequences = append(data.Sequences, row)
		}
	}
	return htmlTmpl.Execute(w, data)
}
