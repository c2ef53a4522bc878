package api

import (
	"html/template"
	"net/http"
	"time"

	"github.com/podibleapp/podible-server/internal/domain"
	"github.com/podibleapp/podible-server/internal/http/response"
)

// statusData is everything the operator page shows, also served raw as
// /status.json.
type statusData struct {
	Roots      []string                      `json:"roots"`
	Books      int                           `json:"books"`
	QueueDepth int                           `json:"queue_depth"`
	Counts     map[domain.TranscodeState]int `json:"transcode_counts"`
	Active     *activeJob                    `json:"active_job,omitempty"`
	Failures   []probeFailure                `json:"probe_failures,omitempty"`
	Recent     []recentBook                  `json:"recent_books,omitempty"`
	Now        string                        `json:"generated_at"`
}

type activeJob struct {
	Source    string  `json:"source"`
	OutTimeMS int64   `json:"out_time_ms"`
	Speed     float64 `json:"speed"`
	Percent   float64 `json:"percent"`
}

type probeFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type recentBook struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Kind   string `json:"kind"`
}

const recentBookLimit = 15

func (s *Server) statusData() statusData {
	data := statusData{
		Roots:      s.cfg.Roots,
		Books:      s.index.Len(),
		QueueDepth: s.queue.Len(),
		Counts:     s.status.Counts(),
		Now:        time.Now().Format(time.RFC3339),
	}

	if active, ok := s.status.Active(); ok {
		job := &activeJob{
			Source:    active.Source,
			OutTimeMS: active.OutTimeMS,
			Speed:     active.Speed,
		}
		if active.DurationMS > 0 {
			job.Percent = 100 * float64(active.OutTimeMS) / float64(active.DurationMS)
		}
		data.Active = job
	}

	for _, rec := range s.probes.Failures() {
		data.Failures = append(data.Failures, probeFailure{File: rec.File, Error: rec.Error})
	}

	for _, book := range s.index.Sorted() {
		if len(data.Recent) == recentBookLimit {
			break
		}
		data.Recent = append(data.Recent, recentBook{
			ID:     book.ID,
			Title:  book.Title,
			Author: book.Author,
			Kind:   string(book.Kind),
		})
	}

	return data
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	response.Success(w, s.statusData(), s.log)
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, s.statusData()); err != nil {
		s.log.Error("status page rendering failed", "error", err)
	}
}

var statusTemplate = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>podible status</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 1.5rem; }
table { border-collapse: collapse; }
td, th { padding: 0.25rem 0.75rem; text-align: left; border-bottom: 1px solid #ddd; }
.err { color: #b00; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>podible</h1>
<p class="muted">generated {{.Now}}</p>

<h2>Library</h2>
<table>
<tr><th>Roots</th><td>{{range .Roots}}{{.}}<br>{{else}}<span class="err">none configured</span>{{end}}</td></tr>
<tr><th>Ready books</th><td>{{.Books}}</td></tr>
<tr><th>Queue depth</th><td>{{.QueueDepth}}</td></tr>
</table>

<h2>Transcodes</h2>
<table>
{{range $state, $n := .Counts}}<tr><th>{{$state}}</th><td>{{$n}}</td></tr>{{end}}
</table>
{{with .Active}}
<p>Converting <strong>{{.Source}}</strong>: {{printf "%.1f" .Percent}}% at {{printf "%.1f" .Speed}}x</p>
{{end}}

{{if .Failures}}
<h2>Probe failures</h2>
<table>
{{range .Failures}}<tr><td>{{.File}}</td><td class="err">{{.Error}}</td></tr>{{end}}
</table>
{{end}}

<h2>Recent books</h2>
<table>
<tr><th>Title</th><th>Author</th><th>Kind</th></tr>
{{range .Recent}}<tr><td>{{.Title}}</td><td>{{.Author}}</td><td>{{.Kind}}</td></tr>{{else}}<tr><td colspan="3" class="muted">no books yet</td></tr>{{end}}
</table>
</body>
</html>
`))
