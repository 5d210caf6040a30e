package server

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/web"
)

// chatSuggestions are the example questions of the empty chat overlay.
var chatSuggestions = []string{
	"What is the tech stack for the Jarvis Voice Assistant?",
	"Does the developer know Python?",
	"Tell me about the internship at ANVL.",
}

type footerLink struct {
	Label string
	URL   string
}

type pageData struct {
	SiteName       string
	Owner          string
	CopyrightYear  string
	BasePath       string
	Profiles       []domain.Profile
	Profile        *domain.Profile
	Hero           *catalog.HeroView
	HeroVideos     []domain.HeroVideo
	About          *domain.Card
	Rows           []*domain.Row
	FooterLinks    []footerLink
	Suggestions    []string
	LoadingDelayMs int64
}

// rowData is what the "row" and "grid" templates receive.
type rowData struct {
	*domain.Row
	Skeletons     []int
	GridSkeletons []int
}

var pageFuncs = template.FuncMap{
	"stars":     catalog.StarCount,
	"progress":  catalog.ProgressPercent,
	"starSlots": starSlots,
	"first":     first,
	"rowView": func(row *domain.Row) rowData {
		return rowData{
			Row:           row,
			Skeletons:     make([]int, constants.UIConfig.RowSkeletonCount),
			GridSkeletons: make([]int, constants.UIConfig.GridSkeletonCount),
		}
	},
}

func parsePages() (*template.Template, error) {
	tmpl, err := template.New("pages").Funcs(pageFuncs).ParseFS(web.Templates(), "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return tmpl, nil
}

// starSlots returns MaxStars flags, the first StarCount(match) of them set.
func starSlots(match int) []bool {
	stars := catalog.StarCount(match)
	slots := make([]bool, constants.UIConfig.MaxStars)
	for i := range slots {
		slots[i] = i < stars
	}
	return slots
}

func first(n int, items []string) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

func (s *Server) basePage(c *catalog.Catalog) pageData {
	siteName := c.SiteName()
	if siteName == "" {
		siteName = "Netfolio"
	}
	return pageData{
		SiteName:       siteName,
		Owner:          c.Owner(),
		CopyrightYear:  c.CopyrightYear(),
		BasePath:       s.cfg.BasePath,
		Profiles:       c.Profiles(),
		LoadingDelayMs: s.cfg.LoadingDelay.Milliseconds(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c := s.catalog.Current()
	s.render(w, "index.html", s.basePage(c))
}

// handleBrowse renders the main page for a selected profile. Without a valid
// profile the visitor is sent back to the gate.
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	c := s.catalog.Current()

	profile, err := c.ProfileByID(r.URL.Query().Get("profile"))
	if err != nil {
		http.Redirect(w, r, s.cfg.BasePath+"/", http.StatusSeeOther)
		return
	}

	hero, err := c.Hero(r.URL.Query().Get("video"))
	if err != nil {
		hero, err = c.Hero("")
	}
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	data := s.basePage(c)
	data.Profile = profile
	data.Hero = hero
	data.HeroVideos = c.HeroVideos()
	data.About = c.AboutMe()
	data.Rows = c.Rows()
	data.FooterLinks = footerLinks(c.Cards(catalog.RowContact))
	data.Suggestions = chatSuggestions

	s.render(w, "browse.html", data)
}

// footerLinks lists the web links of the contact row; mailto links stay in the row.
func footerLinks(contacts []*domain.Card) []footerLink {
	var links []footerLink
	for _, card := range contacts {
		if card.Link == "" || strings.HasPrefix(card.Link, "mailto:") {
			continue
		}
		links = append(links, footerLink{Label: card.Title, URL: card.Link})
	}
	return links
}

func (s *Server) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Failed to render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", constants.UIConfig.ResumeFilename))
	http.ServeContent(w, r, constants.UIConfig.ResumeFilename, s.started.Truncate(time.Second), bytes.NewReader(s.resume))
}
