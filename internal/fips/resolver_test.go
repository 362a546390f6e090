package fips

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incore-data/internal/fetcher"
)

const illinoisCounties = `[["NAME","state","county"],
["Cook County, Illinois","17","031"],
["Champaign County, Illinois","17","019"],
["Adams County, Illinois","17","001"]]`

func newCensusServer(t *testing.T, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestResolver(srv *httptest.Server, apiKey string) *Resolver {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxRetries:  1,
		RatePerSec:  1000,
		BackoffBase: time.Millisecond,
	})
	return NewResolver(f, srv.URL+"/data/", "2010", apiKey)
}

func TestCounties(t *testing.T) {
	srv := newCensusServer(t, illinoisCounties, func(r *http.Request) {
		assert.Equal(t, "/data/2010/dec/sf1", r.URL.Path)
		assert.Equal(t, "NAME", r.URL.Query().Get("get"))
		assert.Equal(t, "county:*", r.URL.Query().Get("for"))
		assert.Equal(t, "state:17", r.URL.Query().Get("in"))
		assert.Equal(t, "k1", r.URL.Query().Get("key"))
	})

	counties, err := newTestResolver(srv, "k1").Counties(t.Context(), "Illinois")
	require.NoError(t, err)
	require.Len(t, counties, 3)
	assert.Equal(t, County{Name: "Adams County", StateFIPS: "17", CountyFIPS: "001", GEOID: "17001"}, counties[0])
	assert.Equal(t, "17019", counties[1].GEOID)
	assert.Equal(t, "Cook County", counties[2].Name)
}

func TestCountyFIPS(t *testing.T) {
	srv := newCensusServer(t, illinoisCounties, nil)
	r := newTestResolver(srv, "")

	for _, name := range []string{"champaign", "Champaign County", "CHAMPAIGN  county"} {
		got, err := r.CountyFIPS(t.Context(), "illinois", name)
		require.NoError(t, err, name)
		assert.Equal(t, "17019", got, name)
	}
}

func TestCountyFIPS_PrefersExactName(t *testing.T) {
	srv := newCensusServer(t, `[["NAME","state","county"],
["Baltimore County, Maryland","24","005"],
["Baltimore city, Maryland","24","510"]]`, nil)
	r := newTestResolver(srv, "")

	got, err := r.CountyFIPS(t.Context(), "MD", "baltimore city")
	require.NoError(t, err)
	assert.Equal(t, "24510", got)

	got, err = r.CountyFIPS(t.Context(), "MD", "baltimore")
	require.NoError(t, err)
	assert.Equal(t, "24005", got)
}

func TestCountyFIPS_Unknown(t *testing.T) {
	srv := newCensusServer(t, illinoisCounties, nil)

	_, err := newTestResolver(srv, "").CountyFIPS(t.Context(), "illinois", "gotham")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownCounty))
}

func TestCountyFIPSList(t *testing.T) {
	srv := newCensusServer(t, illinoisCounties, nil)

	got, err := newTestResolver(srv, "").CountyFIPSList(t.Context(), "17")
	require.NoError(t, err)
	assert.Equal(t, []string{"17001", "17019", "17031"}, got)
}

func TestCounties_UnknownStateSkipsRequest(t *testing.T) {
	called := false
	srv := newCensusServer(t, illinoisCounties, func(*http.Request) { called = true })

	_, err := newTestResolver(srv, "").Counties(t.Context(), "atlantis")
	require.Error(t, err)
	assert.False(t, called)
}

func TestCounties_MissingColumns(t *testing.T) {
	srv := newCensusServer(t, `[["NAME","state"],["Cook County, Illinois","17"]]`, nil)

	_, err := newTestResolver(srv, "").Counties(t.Context(), "IL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing columns")
}

func TestCounties_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestResolver(srv, "").Counties(t.Context(), "IL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list counties for Illinois")
}
