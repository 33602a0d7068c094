package pricelist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/repair-orders/internal/cache"
	"github.com/joseph-ayodele/repair-orders/internal/common"
	"github.com/joseph-ayodele/repair-orders/internal/entity"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	items []entity.PriceItem
	err   error
}

func (s *countingSource) FetchCatalog(context.Context) ([]entity.PriceItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestCache_RefreshesOnlyAfterExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	src := &countingSource{items: []entity.PriceItem{{Name: "Замена масла", Price: 1200}}}
	c := NewCache(cache.NewMemoryStore(clk.now), src, time.Hour, nil, WithClock(clk.now))

	items, err := c.Items(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, src.calls)

	clk.t = clk.t.Add(59 * time.Minute)
	_, err = c.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	clk.t = clk.t.Add(time.Minute)
	_, err = c.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCache_ServesStaleOnFailure(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	src := &countingSource{items: []entity.PriceItem{{Name: "Мойка", Price: 500}}}
	c := NewCache(cache.NewMemoryStore(clk.now), src, time.Hour, nil, WithClock(clk.now))

	_, err := c.Items(ctx)
	require.NoError(t, err)

	src.err = errors.New("sheet down")
	clk.t = clk.t.Add(2 * time.Hour)
	items, err := c.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Мойка", items[0].Name)
}

func TestCache_NoSnapshotAndSourceDown(t *testing.T) {
	src := &countingSource{err: errors.New("timeout")}
	c := NewCache(cache.NewMemoryStore(nil), src, time.Hour, nil)

	_, err := c.Items(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPriceSourceUnavailable))
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{items: []entity.PriceItem{{Name: "x"}}}
	c := NewCache(cache.NewMemoryStore(nil), src, time.Hour, nil)

	_, _ = c.Items(ctx)
	require.NoError(t, c.Invalidate(ctx))
	_, _ = c.Items(ctx)
	assert.Equal(t, 2, src.calls)
}

func TestHTTPSource_FetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("code,name,price,unit\nA1,Замена масла,\"1200,00\",усл\n"))
	}))
	defer srv.Close()

	items, err := NewHTTPSource(srv.URL, time.Second, nil).FetchCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1200.0, items[0].Price)
}

func TestHTTPSource_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, time.Second, nil).FetchCatalog(context.Background())
	assert.Error(t, err)
}
