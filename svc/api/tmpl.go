package api

import (
	"html/template"
	"net/http"
	"time"

	"pastrio/pkg/domain"
)

// Page rendering is deliberately thin: inline templates, no asset pipeline.
// html/template escapes paste content on output; the stored bytes are
// untouched.
var pageTmpl = template.Must(template.New("pages").Parse(`
{{define "layout_head"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<header><h1><a href="/">Pastrio</a></h1></header>
{{end}}

{{define "layout_foot"}}</body>
</html>
{{end}}

{{define "index"}}{{template "layout_head" .}}
<main>
<form id="paste-form" method="post" action="/api/paste/create">
<textarea name="content" rows="16" placeholder="Paste your text here" required></textarea>
<label>Expires after <input type="number" name="expirationTime" min="1"></label>
<select name="expirationUnit">
<option value="">never</option>
<option value="minutes">minutes</option>
<option value="hours">hours</option>
<option value="days">days</option>
</select>
<label>Max views <input type="number" name="maxViews" min="1"></label>
<button type="submit">Create paste</button>
</form>
</main>
{{template "layout_foot" .}}{{end}}

{{define "paste"}}{{template "layout_head" .}}
<main>
<p><code>/{{.Paste.Hash}}</code> &middot; {{.Paste.Views}} views &middot; created {{.Paste.CreatedAt.Format "2006-01-02 15:04 MST"}}</p>
<pre>{{.Paste.Content}}</pre>
</main>
{{template "layout_foot" .}}{{end}}

{{define "error"}}{{template "layout_head" .}}
<main>
<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
<p><a href="/">Create a new paste</a></p>
</main>
{{template "layout_foot" .}}{{end}}

{{define "register"}}{{template "layout_head" .}}
<main>
<h2>Register</h2>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/register">
<label>Username <input type="text" name="username" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Register</button>
</form>
<p>Already have an account? <a href="/login">Login</a></p>
</main>
{{template "layout_foot" .}}{{end}}

{{define "login"}}{{template "layout_head" .}}
<main>
<h2>Login</h2>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
<label>Username <input type="text" name="username" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Login</button>
</form>
<p>No account yet? <a href="/register">Register</a></p>
</main>
{{template "layout_foot" .}}{{end}}
`))

type pastePage struct {
	Title string
	Paste pasteView
}

type pasteView struct {
	Hash      string
	Content   string
	Views     int
	CreatedAt time.Time
}

func renderIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageTmpl.ExecuteTemplate(w, "index", struct{ Title string }{Title: "Pastrio - Share Snippets Securely"})
}

func renderPaste(w http.ResponseWriter, p *domain.Paste) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageTmpl.ExecuteTemplate(w, "paste", pastePage{
		Title: "View Paste",
		Paste: pasteView{
			Hash:      p.Hash,
			Content:   p.Content,
			Views:     p.Views,
			CreatedAt: p.CreatedAt,
		},
	})
}

func renderError(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTmpl.ExecuteTemplate(w, "error", struct {
		Title   string
		Message string
	}{Title: title, Message: message})
}

func renderRegister(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTmpl.ExecuteTemplate(w, "register", struct {
		Title string
		Error string
	}{Title: "Register", Error: errMsg})
}

func renderLogin(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTmpl.ExecuteTemplate(w, "login", struct {
		Title string
		Error string
	}{Title: "Login", Error: errMsg})
}
