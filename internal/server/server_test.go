package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/pkg/errors"
)

type fakeAssistant struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeAssistant) Ask(_ context.Context, query string) (*domain.ChatReply, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.NewValidationError("query must not be empty", "query", query)
	}
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	return &domain.ChatReply{Reply: "echo: " + query, Provider: "fake"}, nil
}

func newTestServer(t *testing.T, cfg Config, checks ...ReadinessCheck) (*httptest.Server, *fakeAssistant) {
	t.Helper()

	assistant := &fakeAssistant{}
	srv, err := New(cfg, Dependencies{
		Catalog:   catalog.NewStore(catalog.Default(), zap.NewNop()),
		Assistant: assistant,
		Checks:    checks,
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, assistant
}

func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dest != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	}
	return resp.StatusCode
}

func TestIndexListsProfiles(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "Who's watching?", strings.TrimSpace(doc.Find("h1").Text()))
	link := doc.Find("a.profile")
	require.Equal(t, 1, link.Length())
	href, _ := link.Attr("href")
	assert.Equal(t, "/browse?profile=1", href)
	assert.Equal(t, "Recruiter", strings.TrimSpace(link.Find("span").Text()))
}

func TestBrowseRendersRowsInOrder(t *testing.T) {
	ts, _ := newTestServer(t, Config{LoadingDelay: 1500 * time.Millisecond})

	resp, err := http.Get(ts.URL + "/browse?profile=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)

	var rows []string
	doc.Find("[data-row]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-row")
		rows = append(rows, id)
	})
	assert.Equal(t, []string{
		catalog.RowExperience, catalog.RowEducation, catalog.RowCertifications, catalog.RowOngoing,
		catalog.RowSkills, catalog.RowSoftware, catalog.RowHardware, catalog.RowContact,
	}, rows)

	for _, anchor := range []string{"skills-section", "projects-section", "contact-section"} {
		assert.Equal(t, 1, doc.Find("#"+anchor).Length(), anchor)
	}

	delay, _ := doc.Find("body").Attr("data-loading-delay")
	assert.Equal(t, "1500", delay)

	// six skeletons per row, seven in the skills grid
	assert.Equal(t, constants.UIConfig.RowSkeletonCount, doc.Find(`[data-row="experience"] .skeleton`).Length())
	assert.Equal(t, constants.UIConfig.GridSkeletonCount, doc.Find(`[data-row="skills"] .skeleton`).Length())

	assert.Equal(t, 7, doc.Find(".skill").Length())
	assert.Equal(t, 2, doc.Find(`[data-row="ongoing"] .progress-bar`).Length())

	python := doc.Find(`.skill[data-card="skill-python"]`)
	assert.Equal(t, 5, python.Find(".star-on").Length())
	assert.Equal(t, 5, python.Find(".star").Length())

	assert.Equal(t, 4, doc.Find(".hero-video").Length())
	assert.Equal(t, 1, doc.Find(".hero-video.selected").Length())
	src, _ := doc.Find("#hero-video source").Attr("src")
	assert.NotEmpty(t, src)

	footer := doc.Find("footer .copyright").Text()
	assert.Contains(t, footer, "2024 Vedant Nikumbh")
}

func TestBrowseHeroVideoSelection(t *testing.T) {
	ts, _ := newTestServer(t, Config{})
	videos := catalog.Default().HeroVideos()

	cases := []struct {
		name  string
		video string
		want  domain.HeroVideo
	}{
		{"preset", videos[2].ID, videos[2]},
		{"unknown falls back to first", "v9", videos[0]},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/browse?profile=1&video=" + tc.video)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			doc, err := goquery.NewDocumentFromReader(resp.Body)
			require.NoError(t, err)

			selected := doc.Find(".hero-video.selected")
			require.Equal(t, 1, selected.Length())
			id, _ := selected.Attr("data-video-id")
			assert.Equal(t, tc.want.ID, id)

			src, _ := doc.Find("#hero-video source").Attr("src")
			assert.Equal(t, tc.want.URL, src)
		})
	}
}

func TestBrowseWithoutProfileRedirectsToGate(t *testing.T) {
	ts, _ := newTestServer(t, Config{BasePath: "/netfolio"})
	client := &http.Client{CheckRedirect: noRedirect}

	for _, path := range []string{"/netfolio/browse", "/netfolio/browse?profile=42"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/netfolio/", resp.Header.Get("Location"), path)
	}
}

func TestBasePathMountsEverything(t *testing.T) {
	ts, _ := newTestServer(t, Config{BasePath: "/netfolio"})

	var health map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/netfolio/api/health", &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(ts.URL + "/netfolio/static/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	client := &http.Client{CheckRedirect: noRedirect}
	resp, err = client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/netfolio/", resp.Header.Get("Location"))
}

func TestResumeDownload(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/resume.pdf")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Netfolio_Resume.pdf")
}

func TestMissingResumeFileFailsStartup(t *testing.T) {
	_, err := New(Config{ResumeFile: "/does/not/exist.pdf"}, Dependencies{
		Catalog:   catalog.NewStore(catalog.Default(), nil),
		Assistant: &fakeAssistant{},
	})
	assert.Error(t, err)
}

func TestCatalogAPI(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	var profiles []domain.Profile
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/profiles", &profiles))
	assert.Len(t, profiles, 1)

	var videos []domain.HeroVideo
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/hero/videos", &videos))
	assert.Len(t, videos, 4)

	var hero catalog.HeroView
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/hero?video=v2", &hero))
	assert.Equal(t, "v2", hero.Video.ID)
	assert.Equal(t, hero.Video.URL, hero.Card.VideoURL)

	var apiErr map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/hero?video=v9", &apiErr))
	assert.Equal(t, "hero video not found", apiErr["error"])

	var about domain.Card
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/about", &about))
	assert.Equal(t, domain.CategoryProfile, about.Category)

	var rows []domain.Row
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/rows", &rows))
	assert.Len(t, rows, 8)

	var row domain.Row
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/rows/contact", &row))
	assert.Len(t, row.Cards, 3)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/rows/movies", nil))

	var skills []domain.RatedSkill
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/skills", &skills))
	require.Len(t, skills, 7)
	for _, skill := range skills {
		assert.Equal(t, catalog.StarCount(skill.Match), skill.Stars, skill.ID)
	}
}

func TestCardDetailAPI(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	var detail domain.CardDetail
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/cards/contact1", &detail))
	assert.Equal(t, "Connect", detail.PrimaryLabel)
	assert.False(t, detail.ShowMoreInfo)
	assert.Equal(t, "U/A 13+", detail.MaturityRating)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/cards/unknown", nil))
}

func TestSearchAPI(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	var res searchResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/search?q=python", &res))
	assert.Equal(t, "python", res.Query)
	assert.NotEmpty(t, res.Results)

	// An empty query returns an empty list, never null.
	resp, err := http.Get(ts.URL + "/api/search?q=")
	require.NoError(t, err)
	defer resp.Body.Close()
	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	assert.JSONEq(t, "[]", string(raw["results"]))
}

func TestChatAPI(t *testing.T) {
	ts, assistant := newTestServer(t, Config{})

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"query":"Does he know Java?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var reply domain.ChatReply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "echo: Does he know Java?", reply.Reply)
	assert.Equal(t, []string{"Does he know Java?"}, assistant.queries)
}

func TestChatAPIRejectsBadInput(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"not json", `query=hello`, http.StatusBadRequest},
		{"empty query", `{"query":"   "}`, http.StatusBadRequest},
		{"too large", fmt.Sprintf(`{"query":%q}`, strings.Repeat("a", int(constants.ServerConfig.MaxChatBodyBytes))), http.StatusRequestEntityTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestChatRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, Config{ChatRateLimit: 2})

	post := func() int {
		resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"query":"hi"}`))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	// Catalog endpoints are not limited.
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/rows", nil))
}

func TestChatWebSocket(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Chat-Session"))

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Query: "What did he build?"}))
	var frame chatFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, domain.ChatRoleAssistant, frame.Role)
	assert.Equal(t, "echo: What did he build?", frame.Content)

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Query: ""}))
	frame = chatFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Empty(t, frame.Content)
	assert.Equal(t, "query must not be empty", frame.Error)
}

func TestChatWebSocketRateLimit(t *testing.T) {
	ts, assistant := newTestServer(t, Config{ChatRateLimit: 1})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Query: "first"}))
	var frame chatFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "echo: first", frame.Content)
	assert.Empty(t, frame.Error)

	require.NoError(t, conn.WriteJSON(domain.ChatRequest{Query: "second"}))
	frame = chatFrame{}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Empty(t, frame.Content)
	assert.Empty(t, frame.Role)
	assert.Contains(t, frame.Error, "Too many questions")

	assistant.mu.Lock()
	defer assistant.mu.Unlock()
	assert.Equal(t, []string{"first"}, assistant.queries)
}

func TestReadiness(t *testing.T) {
	ok := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }}
	ts, _ := newTestServer(t, Config{}, ok)

	var ready readinessResponse
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/ready", &ready))
	assert.Equal(t, "ready", ready.Status)
	require.Len(t, ready.Checks, 1)
	assert.True(t, ready.Checks[0].OK)

	failing := ReadinessCheck{Name: "database", Check: func(context.Context) error {
		return fmt.Errorf("dial tcp: connection refused")
	}}
	ts, _ = newTestServer(t, Config{}, ok, failing)

	ready = readinessResponse{}
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+"/api/ready", &ready))
	assert.Equal(t, "degraded", ready.Status)
	require.Len(t, ready.Checks, 2)
	assert.Equal(t, "redis", ready.Checks[0].Name)
	assert.Equal(t, "database", ready.Checks[1].Name)
	assert.False(t, ready.Checks[1].OK)
	assert.NotEmpty(t, ready.Checks[1].Error)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	getJSON(t, ts.URL+"/api/rows", nil)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `netfolio_http_requests_total{method="GET",route="/api/rows",status="200"}`)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	ts, _ := newTestServer(t, Config{})

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/nothing-here", &body))
	assert.Equal(t, "not found", body["error"])
}
