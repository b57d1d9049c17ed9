package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/upsell-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_BuildsRequestAndParses(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(sectionHTML))
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{}, srv.Client())
	recs, err := src.Fetch(context.Background(), srv.URL+"/recommendations/products?locale=en", "p1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	assert.Equal(t, []string{"cart-drawer"}, gotQuery["section_id"])
	assert.Equal(t, []string{"p1"}, gotQuery["product_id"])
	assert.Equal(t, []string{"10"}, gotQuery["limit"])
	assert.Equal(t, []string{"en"}, gotQuery["locale"])
}

func TestFetch_CustomSectionID(t *testing.T) {
	var section string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		section = r.URL.Query().Get("section_id")
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{SectionID: "upsell"}, srv.Client())
	recs, err := src.Fetch(context.Background(), srv.URL, "p1", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, "upsell", section)
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{}, srv.Client())
	_, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	src := NewHTTPSource(Config{Timeout: time.Second}, nil)
	_, err := src.Fetch(context.Background(), addr, "p1", 10)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestFetch_InvalidURL(t *testing.T) {
	src := NewHTTPSource(Config{}, nil)
	_, err := src.Fetch(context.Background(), "://bad", "p1", 10)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestFetch_MalformedItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<li class="cart-drawer-upsell__item"><p>no card</p></li>`))
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{}, srv.Client())
	_, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetch_BodyOverLimitIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sectionHTML))
	}))
	defer srv.Close()

	// the cut lands right after the first item, which would still parse
	src := NewHTTPSource(Config{MaxBodyBytes: 319}, srv.Client())
	recs, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.Nil(t, recs)
}

func TestFetch_BodyAtLimitParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sectionHTML))
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{MaxBodyBytes: int64(len(sectionHTML))}, srv.Client())
	recs, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

// switchTransport fails every request without a response while down is set.
type switchTransport struct {
	down  atomic.Bool
	calls atomic.Int32
	next  http.RoundTripper
}

func (s *switchTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	s.calls.Add(1)
	if s.down.Load() {
		return nil, errors.New("connection refused")
	}
	return s.next.RoundTrip(r)
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	transport := &switchTransport{next: http.DefaultTransport}
	transport.down.Store(true)

	src := NewHTTPSource(Config{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute}, &http.Client{Transport: transport})
	for i := 0; i < 4; i++ {
		_, err := src.Fetch(context.Background(), "http://shop.invalid/recommendations/products", "p1", 10)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	}
	assert.Equal(t, int32(2), transport.calls.Load(), "open breaker must not reach the source")
}

func TestFetch_ErrorStatusDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("product_id") == "bad" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(sectionHTML))
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{BreakerMaxFailures: 2, BreakerOpenTimeout: time.Minute}, srv.Client())
	for i := 0; i < 3; i++ {
		_, err := src.Fetch(context.Background(), srv.URL, "bad", 10)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	}

	for _, key := range []domain.CartItemID{"a", "b", "c"} {
		recs, err := src.Fetch(context.Background(), srv.URL, key, 10)
		require.NoError(t, err, "product %s", key)
		assert.Len(t, recs, 3)
	}
}

func TestFetch_HalfOpenLetsWholeFanOutThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(sectionHTML))
	}))
	defer srv.Close()

	transport := &switchTransport{next: srv.Client().Transport}
	transport.down.Store(true)
	src := NewHTTPSource(Config{BreakerMaxFailures: 2, BreakerOpenTimeout: 50 * time.Millisecond}, &http.Client{Transport: transport})

	for i := 0; i < 2; i++ {
		_, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
		require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	}
	_, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
	require.ErrorIs(t, err, domain.ErrSourceUnavailable, "breaker is open")

	transport.down.Store(false)
	time.Sleep(100 * time.Millisecond)

	keys := []domain.CartItemID{"a", "b", "c"}
	errs := make([]error, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = src.Fetch(context.Background(), srv.URL, key, 10)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "product %s", keys[i])
	}
}

func TestFetch_MalformedDoesNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<li class="cart-drawer-upsell__item"></li>`))
	}))
	defer srv.Close()

	src := NewHTTPSource(Config{BreakerMaxFailures: 1, BreakerOpenTimeout: time.Minute}, srv.Client())
	for i := 0; i < 3; i++ {
		_, err := src.Fetch(context.Background(), srv.URL, "p1", 10)
		assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	}
	assert.Equal(t, int32(3), hits.Load())
}
