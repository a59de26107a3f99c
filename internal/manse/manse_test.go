package manse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

type memCache struct {
	mu sync.Mutex
	m  map[string]saju.Pillars
}

func newMemCache() *memCache { return &memCache{m: make(map[string]saju.Pillars)} }

func (c *memCache) GetPillars(_ context.Context, key string) (*saju.Pillars, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.m[key]; ok {
		return &p, nil
	}
	return nil, nil
}

func (c *memCache) PutPillars(_ context.Context, key string, p saju.Pillars) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = p
	return nil
}

var birth = models.BirthInput{Year: 1994, Month: 10, Day: 3, Hour: 19, Minute: 30, Gender: models.GenderFemale}

func TestResolveParsesHanjaResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "solar", r.URL.Query().Get("calendar"))
		assert.Equal(t, "여", r.URL.Query().Get("gender"))
		w.Write([]byte(`{"pillars":{"year":"甲戌","month":"癸酉","day":"丙午","hour":"戊戌"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, newMemCache())
	p, err := r.Resolve(context.Background(), birth)
	require.NoError(t, err)
	assert.Equal(t, "갑술", p.Year.Hangul())
	assert.Equal(t, "병오", p.Day.Hangul())
}

func TestResolveFallsBackToLocalCalculator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, newMemCache())
	got, err := r.Resolve(context.Background(), birth)
	require.NoError(t, err)

	want, err := saju.Compute(birth.Year, birth.Month, birth.Day, birth.Hour)
	require.NoError(t, err)
	assert.Equal(t, want, got, "fallback must match the local calculator")
}

func TestResolveCachesAcrossCalls(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"pillars":{"year":"갑술","month":"계유","day":"병오","hour":"무술"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, newMemCache())
	first, err := r.Resolve(context.Background(), birth)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), birth)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second resolve must be served from cache")
}

func TestResolveSurfacesParseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pillars":{"year":"??","month":"계유","day":"병오","hour":"무술"}}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, newMemCache())
	_, err := r.Resolve(context.Background(), birth)
	require.Error(t, err)
	assert.Equal(t, apperr.KindPillarParse, apperr.KindOf(err))
}

func TestResolveWithoutServiceUsesLocal(t *testing.T) {
	r := NewResolver("", newMemCache())
	got, err := r.Resolve(context.Background(), birth)
	require.NoError(t, err)

	want, _ := saju.Compute(birth.Year, birth.Month, birth.Day, birth.Hour)
	assert.Equal(t, want, got)
}
