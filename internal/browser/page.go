package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/crawler"
)

// sessionPage adapts a rod page to the crawler.Page capability
// interface. Stealth JS, headers and the hijack router must all be
// installed before the first navigation to take effect.
type sessionPage struct {
	page      *rod.Page
	router    *rod.HijackRouter
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger

	closeOnce sync.Once
}

// configurePage applies identity, viewport, evasion settings and
// resource filtering to a freshly created page.
func (m *Manager) configurePage(ctx context.Context, page *rod.Page) (*sessionPage, error) {
	p := page.Context(ctx)

	ua := m.cfg.UserAgent
	if ua == "" {
		ua = randomUserAgent()
	}
	if err := p.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      ua,
		AcceptLanguage: "ko-KR",
	}); err != nil {
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.ViewportWidth,
		Height:            m.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	if _, err := p.EvalOnNewDocument(stealth.JS); err != nil {
		m.logger.Warn("stealth injection failed, proceeding without it", zap.Error(err))
	}

	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(organicHeaders),
	}).Call(p); err != nil {
		m.logger.Warn("extra headers rejected", zap.Error(err))
	}

	router := m.mountHijack(page)

	return &sessionPage{
		page:      page,
		router:    router,
		userAgent: ua,
		timeout:   m.cfg.DefaultTimeout,
		logger:    m.logger,
	}, nil
}

// mountHijack installs a request interceptor aborting the configured
// resource types. Returns nil when nothing is blocked.
func (m *Manager) mountHijack(page *rod.Page) *rod.HijackRouter {
	blocked := resolveBlockedTypes(m.cfg.BlockedResourceTypes)
	if len(blocked) == 0 {
		return nil
	}
	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, abort := blocked[ctx.Request.Type()]; abort {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	// Run blocks until the router is stopped.
	go router.Run()
	return router
}

func (sp *sessionPage) close() {
	sp.closeOnce.Do(func() {
		if sp.router != nil {
			if err := sp.router.Stop(); err != nil {
				sp.logger.Debug("hijack router stop failed", zap.Error(err))
			}
		}
		if err := sp.page.Close(); err != nil {
			sp.logger.Debug("page close failed", zap.Error(err))
		}
	})
}

// Navigate loads rawURL and reads the document status code. The
// status is collected via the performance API because the hijack
// router conflicts with network-event interception on current
// Chromium builds.
func (sp *sessionPage) Navigate(ctx context.Context, rawURL string, timeout time.Duration) (crawler.NavigationResult, error) {
	if timeout <= 0 {
		timeout = sp.timeout
	}
	p := sp.page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(rawURL); err != nil {
		return crawler.NavigationResult{}, fmt.Errorf("navigate: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		sp.logger.Debug("load event not observed, continuing", zap.Error(err))
	}

	result := crawler.NavigationResult{FinalURL: rawURL}
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		result.StatusCode = res.Value.Int()
	}
	if res, err := p.Eval(`() => window.location.href`); err == nil {
		if href := res.Value.Str(); href != "" {
			result.FinalURL = href
		}
	}
	return result, nil
}

// WaitReady blocks until the document body exists.
func (sp *sessionPage) WaitReady(ctx context.Context) error {
	if _, err := sp.page.Context(ctx).Element("body"); err != nil {
		return fmt.Errorf("wait for body: %w", err)
	}
	return nil
}

// WaitStable waits for the rendered DOM to stop changing for the
// settle window. Non-convergence is reported so the caller can decide
// to extract from the current DOM anyway.
func (sp *sessionPage) WaitStable(ctx context.Context, settle time.Duration) error {
	if err := sp.page.Context(ctx).WaitDOMStable(settle, 0.1); err != nil {
		return fmt.Errorf("wait dom stable: %w", err)
	}
	return nil
}

// Text returns the trimmed text of the first match without waiting;
// an absent element yields "".
func (sp *sessionPage) Text(selector string) (string, error) {
	has, el, err := sp.page.Has(selector)
	if err != nil {
		return "", fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return "", nil
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text %q: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// Attribute returns the named attribute of the first match, or "".
func (sp *sessionPage) Attribute(selector, name string) (string, error) {
	has, el, err := sp.page.Has(selector)
	if err != nil {
		return "", fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return "", nil
	}
	value, err := el.Attribute(name)
	if err != nil {
		return "", fmt.Errorf("read attribute %q of %q: %w", name, selector, err)
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

// Visible reports whether the first match exists and is visible.
func (sp *sessionPage) Visible(selector string) (bool, error) {
	has, el, err := sp.page.Has(selector)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", selector, err)
	}
	if !has {
		return false, nil
	}
	visible, err := el.Visible()
	if err != nil {
		return false, fmt.Errorf("visibility of %q: %w", selector, err)
	}
	return visible, nil
}

// BodyText returns the visible text of the document body.
func (sp *sessionPage) BodyText() (string, error) {
	return sp.Text("body")
}

func (sp *sessionPage) UserAgent() string {
	return sp.userAgent
}
