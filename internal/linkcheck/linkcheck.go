// Package linkcheck verifies that the external URLs referenced by a catalog respond.
package linkcheck

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/pkg/errors"
)

// Target is a URL and where the catalog uses it, e.g. "card jarvis imageUrl".
type Target struct {
	URL   string
	Where string
}

type Result struct {
	Target
	Status int
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Checker struct {
	concurrency int
	timeout     time.Duration
	logger      *zap.Logger
}

func NewChecker(concurrency int, timeout time.Duration, logger *zap.Logger) *Checker {
	if concurrency <= 0 {
		concurrency = constants.LinkCheckConfig.Concurrency
	}
	if timeout <= 0 {
		timeout = constants.LinkCheckConfig.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{concurrency: concurrency, timeout: timeout, logger: logger}
}

// Targets collects every http(s) URL of c. mailto and empty links are skipped.
func Targets(c *catalog.Catalog) []Target {
	var targets []Target
	add := func(raw, where string) {
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			return
		}
		targets = append(targets, Target{URL: raw, Where: where})
	}
	addCard := func(card *domain.Card) {
		if card == nil {
			return
		}
		add(card.ImageURL, "card "+card.ID+" imageUrl")
		add(card.VideoURL, "card "+card.ID+" videoUrl")
		add(card.Link, "card "+card.ID+" link")
		add(card.Icon, "card "+card.ID+" icon")
	}

	for _, p := range c.Profiles() {
		add(p.Avatar, "profile "+p.ID+" avatar")
	}
	for _, v := range c.HeroVideos() {
		add(v.URL, "hero video "+v.ID+" url")
		add(v.Thumbnail, "hero video "+v.ID+" thumbnail")
	}
	doc := c.Document()
	addCard(doc.Hero)
	addCard(doc.About)
	for _, row := range c.AllRows() {
		for _, card := range row.Cards {
			addCard(card)
		}
	}
	return targets
}

// Check requests every target through a bounded pool. Results keep the order of targets.
func (ch *Checker) Check(ctx context.Context, targets []Target) []Result {
	results := make([]Result, len(targets))
	p := pool.New().WithMaxGoroutines(ch.concurrency)

	for idx, target := range targets {
		idx, target := idx, target
		p.Go(func() {
			results[idx] = ch.checkOne(ctx, target)
		})
	}

	p.Wait()
	return results
}

func (ch *Checker) checkOne(ctx context.Context, target Target) Result {
	res := Result{Target: target}

	u, err := url.Parse(target.URL)
	if err != nil {
		res.Err = fmt.Errorf("parse url: %w", err)
		return res
	}

	client := fastshot.NewClient(u.Scheme + "://" + u.Host).
		Config().SetTimeout(ch.timeout).
		Config().SetFollowRedirects(true).
		Header().Add("User-Agent", "netfolio-catalogctl").
		Build()

	// The path is joined onto the base URL, so the query has to travel separately.
	resp, err := client.GET(u.EscapedPath()).
		Context().Set(ctx).
		Query().SetRawString(u.RawQuery).
		Send()
	if err != nil {
		res.Err = err
		ch.logger.Debug("Link check failed", zap.String("url", target.URL), zap.Error(err))
		return res
	}
	defer resp.Body().Close()

	res.Status = resp.Status().Code()
	if resp.Status().IsError() {
		res.Err = errors.NewAPIError(fmt.Sprintf("HTTP %d", res.Status), res.Status, map[string]any{"url": target.URL})
	}
	return res
}

// Failures returns the results that errored or answered 4xx/5xx, sorted by URL.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].URL < failed[j].URL })
	return failed
}
