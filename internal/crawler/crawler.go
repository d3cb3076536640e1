package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/retry"
)

// Config holds the settings for single-target crawl attempts. It is
// decoupled from Viper so the crawler stays testable on its own.
type Config struct {
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	// MinPreNavDelay/MaxPreNavDelay bound the randomized pacing delay
	// applied before each navigation. Unrelated to retry backoff.
	MinPreNavDelay time.Duration
	MaxPreNavDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 10 * time.Second
	}
}

// Crawler executes one full attempt at one target: navigate, detect
// soft blocks, extract, classify. Retryable failures restart the
// attempt from navigation with a fresh page.
type Crawler struct {
	sessions  SessionManager
	extractor Extractor
	governor  *retry.Governor
	clock     Clock
	cfg       Config
	logger    *zap.Logger

	// injectable for tests
	sleep func(context.Context, time.Duration) error
	rnd   func() float64
}

// attemptResult carries what a successful attempt learned.
type attemptResult struct {
	product   Product
	userAgent string
}

// New constructs a Crawler. The retry policy's classifier is composed
// from the terminal error codes and the governor's deterministic
// failure patterns.
func New(sessions SessionManager, extractor Extractor, policy retry.Policy, clock Clock, cfg Config, logger *zap.Logger) *Crawler {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	nonRetryable := func(err error) bool {
		return IsTerminal(err) || retry.DefaultNonRetryable(err)
	}
	return &Crawler{
		sessions:  sessions,
		extractor: extractor,
		governor:  retry.NewGovernor(policy, nonRetryable, logger.Named("retry")),
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		sleep:     sleepCtx,
		rnd:       rand.Float64,
	}
}

// Crawl runs the full state machine for one target and always returns
// an Outcome, success or failure.
func (c *Crawler) Crawl(ctx context.Context, target Target) Outcome {
	start := c.clock.Now()
	outcome := Outcome{
		TargetID:  target.ID,
		CheckedAt: start,
	}
	attempts := 0
	lastUA := ""

	result, err := retry.Execute(ctx, c.governor, fmt.Sprintf("crawl target %d", target.ID),
		func(ctx context.Context) (attemptResult, error) {
			attempts++
			TotalAttempts.Inc()
			res, attemptErr := c.attempt(ctx, target)
			if res.userAgent != "" {
				lastUA = res.userAgent
			}
			return res, attemptErr
		})

	outcome.Duration = c.clock.Now().Sub(start)
	outcome.Retries = attempts - 1
	outcome.UserAgent = lastUA

	if err != nil {
		outcome.Success = false
		outcome.ErrorCode = Classify(err)
		outcome.ErrorMessage = err.Error()
		c.logger.Warn("crawl failed",
			zap.Int64("target_id", target.ID),
			zap.String("code", string(outcome.ErrorCode)),
			zap.Int("retries", outcome.Retries),
			zap.Error(err),
		)
	} else {
		product := result.product
		outcome.Success = true
		outcome.Product = &product
		c.logger.Info("crawl succeeded",
			zap.Int64("target_id", target.ID),
			zap.Int64p("price", product.Price),
			zap.Bool("available", product.Available),
			zap.Int("retries", outcome.Retries),
		)
	}
	observeOutcome(outcome)
	return outcome
}

// attempt runs one pass of the state machine. The page is released on
// every exit path so repeated attempts never leak handles.
func (c *Crawler) attempt(ctx context.Context, target Target) (attemptResult, error) {
	if err := ValidateTargetURL(target.URL); err != nil {
		return attemptResult{}, err
	}

	page, err := c.sessions.AcquirePage(ctx)
	if err != nil {
		return attemptResult{}, fmt.Errorf("acquire page: %w", err)
	}
	defer func() {
		if relErr := c.sessions.ReleasePage(page); relErr != nil {
			c.logger.Warn("release page failed", zap.Error(relErr))
		}
	}()
	result := attemptResult{userAgent: page.UserAgent()}

	if err := c.preNavDelay(ctx); err != nil {
		return result, err
	}

	nav, err := page.Navigate(ctx, target.URL, c.cfg.NavigationTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return result, NewError(ErrCodeTimeout, "navigation timeout", err)
		}
		return result, fmt.Errorf("navigate %s: %w", target.URL, err)
	}
	if err := c.checkResponse(nav, target.URL); err != nil {
		return result, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	if err := page.WaitReady(readyCtx); err != nil {
		return result, NewError(ErrCodeTimeout, "page body never became ready", err)
	}

	bodyText, err := page.BodyText()
	if err != nil {
		return result, fmt.Errorf("read page text: %w", err)
	}
	if detectCaptcha(page, bodyText) {
		return result, NewError(ErrCodeCaptcha, "captcha detected, crawling blocked", nil)
	}
	if phrase, blocked := detectSoftBlock(bodyText); blocked {
		return result, NewError(ErrCodeBlocked, fmt.Sprintf("access blocked by website (matched %q)", phrase), nil)
	}

	product, err := c.extractor.Extract(ctx, page, target.URL)
	if err != nil {
		return result, err
	}
	result.product = product
	return result, nil
}

// checkResponse maps the navigation response to the failure taxonomy:
// 404 and 403 are terminal, other >=400 and missing responses retry.
func (c *Crawler) checkResponse(nav NavigationResult, rawURL string) error {
	switch {
	case nav.StatusCode == 0:
		return NewError(ErrCodeTimeout, "no response received before timeout", nil)
	case nav.StatusCode == 404:
		return NewError(ErrCodeNotFound, fmt.Sprintf("product not found (404): %s", rawURL), nil)
	case nav.StatusCode == 403:
		return NewError(ErrCodeBlocked, fmt.Sprintf("access forbidden (403), possibly blocked: %s", rawURL), nil)
	case nav.StatusCode >= 400:
		return NewError(ErrCodeNetwork, fmt.Sprintf("http error %d: %s", nav.StatusCode, rawURL), nil)
	default:
		return nil
	}
}

// preNavDelay applies the randomized pacing delay before navigation.
func (c *Crawler) preNavDelay(ctx context.Context) error {
	if c.cfg.MaxPreNavDelay <= 0 {
		return nil
	}
	minD := c.cfg.MinPreNavDelay
	span := c.cfg.MaxPreNavDelay - minD
	delay := minD
	if span > 0 {
		delay += time.Duration(c.rnd() * float64(span))
	}
	return c.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
