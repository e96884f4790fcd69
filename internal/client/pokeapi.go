package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pokedex/catalog/internal/config"
	"pokedex/catalog/internal/domain"
	"pokedex/catalog/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// PokeAPIClient resolves single catalog entries from the remote service.
type PokeAPIClient interface {
	FetchEntry(ctx context.Context, position int) (domain.Entry, error)
	FetchCatalogSize(ctx context.Context) (int, error)
}

type pokeAPIClient struct {
	rl            ratelimit.Limiter
	baseURL       string
	httpClient    *resty.Client
	proxySupplier proxy.Supplier

	// Circuit breaker for 429 responses
	circuitBreakerMutex sync.RWMutex
	throttledUntil      time.Time
	circuitBreakerDelay time.Duration
}

func NewPokeAPIClient(cfg config.PokeAPIConfig, proxySupplier proxy.Supplier) PokeAPIClient {
	// Retries are owned by the loader so that every attempt is rate limited.
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "pokedex-catalog/1.0")

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 Using initial proxy: %s", proxyURL)
		}
	}

	return &pokeAPIClient{
		rl:                  ratelimit.New(cfg.MaxRequestsPerSecond),
		baseURL:             cfg.BaseURL,
		httpClient:          client,
		proxySupplier:       proxySupplier,
		circuitBreakerDelay: cfg.CircuitBreakerDelay,
	}
}

func (c *pokeAPIClient) FetchEntry(ctx context.Context, position int) (domain.Entry, error) {
	if position < 0 {
		return domain.Entry{}, &domain.NotFoundError{Position: position}
	}

	url := fmt.Sprintf("%s/pokemon/%d", c.baseURL, position+1)

	var record pokemonRecord
	status, err := c.getJSON(ctx, url, &record)
	if err != nil {
		return domain.Entry{}, c.classify(position, status, err)
	}

	entry, err := record.toEntry(position)
	if err != nil {
		// A malformed record is indistinguishable from a flaky upstream.
		return domain.Entry{}, &domain.TransientError{Position: position, Err: err}
	}

	log.Debugf("Fetched %s at position %d", entry.Name, position)
	return entry, nil
}

func (c *pokeAPIClient) FetchCatalogSize(ctx context.Context) (int, error) {
	url := fmt.Sprintf("%s/pokemon?limit=1", c.baseURL)

	var list pokemonList
	if _, err := c.getJSON(ctx, url, &list); err != nil {
		return 0, fmt.Errorf("failed to fetch catalog size: %w", err)
	}

	if list.Count <= 0 {
		return 0, fmt.Errorf("remote reported non-positive catalog size %d", list.Count)
	}

	return list.Count, nil
}

var errThrottled = errors.New("remote throttled the request")

func (c *pokeAPIClient) classify(position, status int, err error) error {
	switch {
	case status == http.StatusNotFound:
		return &domain.NotFoundError{Position: position}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &domain.TransientError{Position: position, Err: err}
	}
}

func (c *pokeAPIClient) getJSON(ctx context.Context, url string, result any) (int, error) {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		log.Debugf("🚫 Request blocked by circuit breaker. Remaining time: %v", remaining.Round(time.Second))
		return 0, fmt.Errorf("circuit breaker is open - requests disabled for %v more", remaining.Round(time.Second))
	}

	c.rl.Take()

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		log.Warnf("🚫 Rate limit exceeded for URL: %s", url)
		if newProxy := c.nextProxy(); newProxy != "" {
			log.Infof("🔄 Switching to new proxy: %s", newProxy)
			c.httpClient.SetProxy(newProxy)
		} else {
			c.triggerCircuitBreaker()
		}
		return resp.StatusCode(), errThrottled
	}

	if resp.IsError() {
		return resp.StatusCode(), fmt.Errorf("HTTP error: %s", resp.Status())
	}

	return resp.StatusCode(), nil
}

func (c *pokeAPIClient) nextProxy() string {
	if c.proxySupplier == nil || c.proxySupplier.Len() < 2 {
		return ""
	}
	return c.proxySupplier.Get()
}

func (c *pokeAPIClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	open := now.Before(c.throttledUntil)
	triggered := !c.throttledUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !open && triggered {
		c.circuitBreakerMutex.Lock()
		if !c.throttledUntil.IsZero() && now.After(c.throttledUntil) {
			c.throttledUntil = time.Time{}
			log.Infof("✅ Circuit breaker closed - requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return open
}

func (c *pokeAPIClient) triggerCircuitBreaker() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.throttledUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Circuit breaker activated! Requests disabled until %v",
		c.throttledUntil.Format("15:04:05"))
}

func (c *pokeAPIClient) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.throttledUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}
