package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/go-attendance-console/internal/utils"
	"github.com/jrsteele09/go-attendance-console/users"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	layoutTemplate  = "layout.html"
)

var pageNames = []string{"login.html", "logout.html", "dashboard.html", "section.html", "attendance.html", "notfound.html"}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// pages holds each page parsed together with the shared layout
type pages struct {
	byName map[string]*template.Template
}

func parsePages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.ParseFS(TemplateFilesFS(), layoutTemplate, name)
		if err != nil {
			return nil, err
		}
		p.byName[name] = t
	}
	return p, nil
}

// pageData is the view model shared by every page
type pageData struct {
	Title        string
	User         *users.User
	Photo        string
	Root         string
	Error        string
	Notice       string
	Next         string
	LinkHref     string
	LinkText     string
	RefreshTo    string
	CanAcademic  bool
	CanLecturer  bool
	Section      string
	Records      []attendanceRecord
	FetchFailure string
}

type attendanceRecord struct {
	Course  string `json:"course"`
	Meeting int    `json:"meeting"`
	Present int    `json:"present"`
	Total   int    `json:"total"`
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := s.pages.byName[name]
	if !ok {
		log.Error().Str("template", name).Msg("Unknown template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if data.Root == "" {
		data.Root = s.edge.Root()
	}
	if data.User != nil {
		data.Photo = utils.Value(data.User.Photo)
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := t.ExecuteTemplate(w, layoutTemplate, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
	}
}
