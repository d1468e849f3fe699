package web

import (
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/sweeney/aquarium-ml/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"days": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"pct": func(v float64) string {
		return fmt.Sprintf("%.0f%%", v*100)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Aquarium ML</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.trained { color: green; font-weight: bold; }
.untrained { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.soon { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>Aquarium ML</h1>

<h2>Models</h2>
<table>
{{range .Models}}<tr><th>{{.Key}}</th><td class="{{if .State.Trained}}trained{{else}}untrained{{end}}">{{if .State.Trained}}trained ({{.State.Samples}} samples, score {{days .State.Score}}){{else}}waiting for data{{end}}</td></tr>
{{end}}<tr><th>water change</th><td class="{{if .CycleModel.Trained}}trained{{else}}untrained{{end}}">{{if .CycleModel.Trained}}trained ({{.CycleModel.Samples}} samples, score {{days .CycleModel.Score}}){{else}}waiting for data{{end}}</td></tr>
</table>

{{if .LastCycle}}<h2>Water Change Forecast</h2>
<table>
<tr><th>Days remaining</th><td{{if .LastCycle.NeedsChangeSoon}} class="soon"{{end}}>{{days .LastCycle.PredictedDaysRemaining}}</td></tr>
<tr><th>Full cycle</th><td>{{days .LastCycle.PredictedTotalCycleDays}} days</td></tr>
<tr><th>Confidence</th><td>{{pct .LastCycle.Confidence}}</td></tr>
</table>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic prefix</th><td>{{.Config.TopicPrefix}}</td></tr>
</table>

<h2>Ingest Counts</h2>
<table>
<tr><th>Sensor readings</th><td>{{.Counts.Sensor}}</td></tr>
<tr><th>Performance records</th><td>{{.Counts.Performance}}</td></tr>
<tr><th>Water changes</th><td>{{.Counts.WaterChange}}</td></tr>
<tr><th>Filter maintenance</th><td>{{.Counts.FilterMaintenance}}</td></tr>
<tr><th>Malformed (dropped)</th><td>{{.Counts.Malformed}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Database</th><td>{{.Config.DatabasePath}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type gainModelRow struct {
	Key   string
	State status.ModelState
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Template iteration over a map is unordered; flatten to sorted rows.
	models := make([]gainModelRow, 0, len(snap.GainModels))
	for key, st := range snap.GainModels {
		models = append(models, gainModelRow{Key: key, State: st})
	}
	sort.Slice(models, func(a, b int) bool { return models[a].Key < models[b].Key })

	data := struct {
		status.Snapshot
		Models []gainModelRow
		Uptime time.Duration
	}{
		Snapshot: snap,
		Models:   models,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
