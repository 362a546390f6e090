package census

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/incore-data/internal/fetcher"
	"github.com/sells-group/incore-data/internal/monitoring"
)

const countyTable = `[["GEO_ID","NAME","P005001","P005003","P005004","P005010","state","county","tract","block group"],
["1500000US%[1]s0001001","BG 1","100","50","25","10","%[2]s","%[3]s","000100","1"],
["1500000US%[1]s0001002","BG 2","200","20","40","100","%[2]s","%[3]s","000100","2"]]`

func newTestFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxRetries:  1,
		RatePerSec:  1000,
		BackoffBase: time.Millisecond,
	})
}

func TestClient_BlockGroupsURL(t *testing.T) {
	c := NewClient(newTestFetcher(), "https://api.census.gov/data/", "", nil)
	assert.Equal(t,
		"https://api.census.gov/data/2010/dec/sf1?get=GEO_ID,NAME,P005001,P005003,P005004,P005010&in=state:17&in=county:019&for=block%20group:*",
		c.BlockGroupsURL("2010", "dec/sf1", "17", "019"))

	c = NewClient(newTestFetcher(), "https://api.census.gov/data", "k y", nil)
	assert.Contains(t, c.BlockGroupsURL("2010", "dec/sf1", "17", "019"), "&key=k+y")
}

func TestClient_BlockGroups_AllCounties(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2010/dec/sf1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "block group:*", q.Get("for"))
		in := q["in"]
		if !assert.Len(t, in, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		state, county := in[0][len("state:"):], in[1][len("county:"):]
		mu.Lock()
		seen = append(seen, state+county)
		mu.Unlock()
		w.Write([]byte(sprintfTable(state, county)))
	}))
	defer srv.Close()

	m := monitoring.NewMetrics("test")
	c := NewClient(newTestFetcher(), srv.URL+"/data", "", m)
	got, err := c.BlockGroups(t.Context(), []string{"17019", "17031"}, "2010", "dec/sf1")
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, []string{"17019", "17031"}, seen)
	mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, "170190001001", got[0].BGID)
	assert.Equal(t, "170310001002", got[3].BGID)
	assert.InDelta(t, 4.0, testutil.ToFloat64(m.BlockGroupsFetched), 0.001)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.FetchRequests.WithLabelValues("census", "ok")), 0.001)
}

func TestClient_FetchCounty_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(newTestFetcher(), srv.URL, "", nil)
	_, err := c.FetchCounty(t.Context(), "17019", "2010", "dec/sf1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to download the data from Census API")
}

func TestClient_FetchCounty_InvalidCode(t *testing.T) {
	c := NewClient(newTestFetcher(), "http://unused", "", nil)
	_, err := c.FetchCounty(t.Context(), "1701", "2010", "dec/sf1")
	require.Error(t, err)
}
