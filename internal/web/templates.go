package web

import (
	"bytes"
	"html/template"

	"github.com/jaminalder/hotseat-tic-tac-toe/internal/app"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/domain"
)

type templates struct {
	index *template.Template
	match *template.Template
	board *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"cellSymbol": func(m domain.Mark) string { return m.String() },
		"isEmpty":    func(m domain.Mark) bool { return m == domain.Empty },
		"endRow":     func(i int) bool { return i%3 == 2 && i < domain.Size-1 },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Tic-Tac-Toe</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org@1.9.12/dist/ext/sse.js"></script>
</head><body>{{template "content" .}}</body></html>`))
	template.Must(base.New("board").Parse(boardTemplate))
	template.Must(base.New("names").Parse(namesTemplate))

	index := template.Must(base.Clone())
	template.Must(index.New("content").Parse(`<h1>Tic-Tac-Toe</h1>
<form action="/match" method="post">{{template "names" .}}<button type="submit" id="start-button">Start</button></form>`))
	match := template.Must(base.Clone())
	template.Must(match.New("content").Parse(`<h1>Tic-Tac-Toe</h1>
<div hx-ext="sse" sse-connect="/match/{{.ID}}/events">
  <div sse-swap="board" hx-swap="innerHTML">{{template "board" .}}</div>
</div>
<form hx-post="/match/{{.ID}}/start" hx-target="#board" hx-swap="outerHTML" method="post" action="/match/{{.ID}}/start">
  {{template "names" .}}<button type="submit" id="start-button">Start</button>
</form>
<form hx-post="/match/{{.ID}}/restart" hx-target="#board" hx-swap="outerHTML" method="post" action="/match/{{.ID}}/restart">
  <button type="submit" id="restart-button">Restart</button>
</form>`))
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{index: index, match: match, board: board}
}

func renderTemplate(t *template.Template, data any) []byte {
	var buf bytes.Buffer
	_ = t.Execute(&buf, data)
	return buf.Bytes()
}

const namesTemplate = `
<input type="text" id="player1" name="player1" placeholder="Player 1 (X)" value="{{.Player1}}">
<input type="text" id="player2" name="player2" placeholder="Player 2 (O)" value="{{.Player2}}">
`

const boardTemplate = `
<div id="board">
  {{if .Error}}<div class="alert">{{.Error}}</div>{{end}}
  <div id="message">{{.Message}}</div>
  {{if .Turn}}<div class="turn">{{.Turn}}</div>{{end}}
  <div class="grid">
  {{range $i, $m := .Board}}
    <form hx-post="/match/{{$.ID}}/select" hx-target="#board" hx-swap="outerHTML" method="post" action="/match/{{$.ID}}/select">
      <input type="hidden" name="index" value="{{$i}}">
      <button type="submit" class="square" id="square-{{$i}}"{{if or $.Frozen (not (isEmpty $m))}} disabled{{end}}>{{cellSymbol $m}}</button>
    </form>
    {{if endRow $i}}</div><div class="grid">{{end}}
  {{end}}
  </div>
</div>
`

// viewData feeds both the page and the board fragment.
type viewData struct {
	ID      string
	Board   [domain.Size]domain.Mark
	Message string
	Turn    string
	Error   string
	Frozen  bool
	Player1 string
	Player2 string
}

func newViewData(st app.MatchState, errMsg string) viewData {
	d := viewData{
		ID:      st.ID,
		Board:   st.Board,
		Message: st.Message,
		Error:   errMsg,
		Frozen:  st.State != domain.InProgress,
		Player1: st.Players[0].Name,
		Player2: st.Players[1].Name,
	}
	if st.State == domain.InProgress {
		d.Turn = st.Current.Name + "'s turn (" + st.Current.Mark.String() + ")"
	}
	return d
}
