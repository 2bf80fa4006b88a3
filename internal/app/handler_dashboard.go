package app

import (
	"net/http"

	"AirNode/internal/model"
)

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>AirNode</title></head>
<body>
<h1>AirNode</h1>
{{with .Latest}}
<table>
<tr><th>#</th><td>{{.ID}}</td></tr>
<tr><th>Time</th><td>{{.Timestamp}}</td></tr>
<tr><th>Temperature (°C)</th><td>{{value .Temp 2}}</td></tr>
<tr><th>CH2O (mg/m³)</th><td>{{value .CH2O 3}}</td></tr>
<tr><th>TVOC (mg/m³)</th><td>{{value .TVOC 3}}</td></tr>
<tr><th>CO2 (ppm)</th><td>{{value .CO2 3}}</td></tr>
</table>
{{else}}
<p>No readings yet.</p>
{{end}}
<p><a href="/api/readings">/api/readings</a> · <a href="/metrics">/metrics</a></p>
</body>
</html>
`

// handleIndex renders a status page with the latest reading.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := map[string]any{}
	if a.Store != nil {
		row, err := a.Store.Latest()
		if err != nil {
			a.log.WithError(err).Warn("read latest reading")
		}
		if row != nil {
			data["Latest"] = row
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := a.Tmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func formatValue(v *float64, prec int) string {
	return model.FormatValue(v, prec)
}
