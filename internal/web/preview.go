package web

import (
	"html/template"
	"io"

	"dsigen/internal/model"
	"dsigen/internal/report"
)

// The snapshot capture waits for data-ready before taking the screenshot.
var previewTmpl = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Calibri, Arial, sans-serif; font-size: 12pt; margin: 2cm; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
th, td { border: 1px solid #000; padding: 2px 4px; text-align: center; }
th { background: #d9d9d9; }
tr.special td { background: #ffe5e5; }
td.date.special { color: #c00000; }
ul.warnings { color: #7f6000; }
</style>
</head>
<body>
<main data-ready="true">
<h1>{{.Title}}</h1>
<p>(QTS nº {{.Number}} - SI: {{.WeekTag}} - FASE: {{.Phase}})</p>
{{if .Warnings}}<ul class="warnings">{{range .Warnings}}<li>{{.Scope}}: {{.Message}}</li>{{end}}</ul>{{end}}
<h2>1. OPERAÇÕES:</h2>
{{range .Operations}}<p>{{.}}</p>{{else}}<p>-</p>{{end}}
<h2>2. CURSOS E ESTÁGIOS</h2>
{{range .Courses}}<p>{{.}}</p>{{else}}<p>-</p>{{end}}
<h2>3. DATAS COMEMORATIVAS E FERIADOS</h2>
{{range .Dates}}<p>{{.}}</p>{{else}}<p>-</p>{{end}}
<h2>4. PERÍODO</h2>
<h3>a. Semana (S) - {{.PeriodS}}</h3>
{{template "grid" .WeekS}}
<h3>b. Semana (S+1) - {{.PeriodS1}}</h3>
{{template "grid" .WeekS1}}
</main>
</body>
</html>
{{define "grid"}}<table>
<tr>{{range $.Columns}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr{{if .Special}} class="special"{{end}}>
<td class="date{{if .Special}} special{{end}}">{{.Date}}</td><td>{{.Time}}</td><td>{{.Activity}}</td><td>{{.Location}}</td><td>{{.Uniform}}</td><td>{{.Responsible}}</td><td>{{.Observation}}</td>
</tr>
{{end}}</table>{{end}}`))

// gridView is the data of the "grid" template.
type gridView struct {
	Columns []string
	Rows    []model.TableRow
}

type previewView struct {
	*report.Directive
	WeekS  gridView
	WeekS1 gridView
}

func renderPreview(w io.Writer, d *report.Directive) error {
	cols := model.Columns[:]
	return previewTmpl.Execute(w, previewView{
		Directive: d,
		WeekS:     gridView{Columns: cols, Rows: d.WeekS},
		WeekS1:    gridView{Columns: cols, Rows: d.WeekS1},
	})
}
