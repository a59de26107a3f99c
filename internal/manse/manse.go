// Package manse resolves a birth tuple to its four pillars. The external
// manse (만세력) HTTP service is the primary source because it applies
// true solar-term month boundaries; the in-process calculator in
// internal/saju is the authoritative fallback when the service is down.
// Either path lands in the same immutable cache keyed by birth tuple.
package manse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/metrics"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const (
	requestTimeout = 8 * time.Second
	maxRetries     = 2
	retryBackoff   = 400 * time.Millisecond
)

// Cache is the durable pillar cache. Entries are immutable per key, so
// concurrent writers racing on the same tuple write identical rows.
type Cache interface {
	GetPillars(ctx context.Context, key string) (*saju.Pillars, error)
	PutPillars(ctx context.Context, key string, p saju.Pillars) error
}

// Resolver computes pillars through the external service with a local
// fallback, caching results by birth tuple.
type Resolver struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	cache      Cache
}

// NewResolver builds a resolver. An empty baseURL disables the external
// path entirely; the local calculator then serves every request.
func NewResolver(baseURL string, cache Cache) *Resolver {
	return &Resolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "manse",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Resolve returns the pillars for a birth tuple, from cache when
// available. Cache write failures are logged and swallowed; the computed
// chart is still returned.
func (r *Resolver) Resolve(ctx context.Context, birth models.BirthInput) (saju.Pillars, error) {
	key := birth.CacheKey()
	if r.cache != nil {
		if cached, err := r.cache.GetPillars(ctx, key); err == nil && cached != nil {
			return *cached, nil
		}
	}

	pillars, err := r.compute(ctx, birth)
	if err != nil {
		return saju.Pillars{}, err
	}

	if r.cache != nil {
		if err := r.cache.PutPillars(ctx, key, pillars); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("pillar cache write failed")
		}
	}
	return pillars, nil
}

func (r *Resolver) compute(ctx context.Context, birth models.BirthInput) (saju.Pillars, error) {
	if r.baseURL != "" {
		pillars, err := r.fetchRemote(ctx, birth)
		if err == nil {
			return pillars, nil
		}
		// Parse errors mean the service answered garbage; report them so
		// the table drift gets noticed. Transport failures fall back.
		if apperr.Is(err, apperr.KindPillarParse) {
			return saju.Pillars{}, err
		}
		log.Warn().Err(err).Msg("manse service unavailable, using local calculator")
		metrics.ManseFallbacks.Inc()
	}
	return saju.Compute(birth.Year, birth.Month, birth.Day, birth.Hour)
}

type manseResponse struct {
	Pillars struct {
		Year  string `json:"year"`
		Month string `json:"month"`
		Day   string `json:"day"`
		Hour  string `json:"hour"`
	} `json:"pillars"`
}

// fetchRemote calls the manse service with bounded retry behind the
// breaker and normalizes whatever script the service answers in.
func (r *Resolver) fetchRemote(ctx context.Context, birth models.BirthInput) (saju.Pillars, error) {
	gender := "남"
	if birth.Gender == models.GenderFemale {
		gender = "여"
	}
	q := url.Values{}
	q.Set("y", fmt.Sprint(birth.Year))
	q.Set("m", fmt.Sprint(birth.Month))
	q.Set("d", fmt.Sprint(birth.Day))
	q.Set("hh", fmt.Sprint(birth.Hour))
	q.Set("mm", fmt.Sprint(birth.Minute))
	q.Set("calendar", "solar")
	q.Set("gender", gender)
	endpoint := r.baseURL + "/api/saju?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return saju.Pillars{}, apperr.Wrap(apperr.KindUpstreamTimeout, "manse request cancelled", ctx.Err())
			case <-time.After(retryBackoff << (attempt - 1)):
			}
		}

		result, err := r.breaker.Execute(func() (any, error) {
			return r.doFetch(ctx, endpoint)
		})
		if err == nil {
			return result.(saju.Pillars), nil
		}
		lastErr = err
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindPillarParse {
			return saju.Pillars{}, err
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			break
		}
	}
	if errors.Is(lastErr, context.DeadlineExceeded) {
		return saju.Pillars{}, apperr.Wrap(apperr.KindUpstreamTimeout, "manse request timed out", lastErr)
	}
	return saju.Pillars{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "manse request failed", lastErr)
}

func (r *Resolver) doFetch(ctx context.Context, endpoint string) (saju.Pillars, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return saju.Pillars{}, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return saju.Pillars{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return saju.Pillars{}, fmt.Errorf("manse status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return saju.Pillars{}, err
	}

	var body manseResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return saju.Pillars{}, fmt.Errorf("decode manse response: %w", err)
	}
	return parsePillars(body)
}

func parsePillars(body manseResponse) (saju.Pillars, error) {
	var p saju.Pillars
	for _, f := range []struct {
		token string
		out   *saju.Pillar
	}{
		{body.Pillars.Year, &p.Year},
		{body.Pillars.Month, &p.Month},
		{body.Pillars.Day, &p.Day},
		{body.Pillars.Hour, &p.Hour},
	} {
		pillar, err := saju.ParsePillarToken(f.token)
		if err != nil {
			return saju.Pillars{}, err
		}
		*f.out = pillar
	}
	return p, nil
}
