package handlers

import (
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gewnthar/coviddash/models"
	"github.com/gewnthar/coviddash/services"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testDataset() *models.Dataset {
	return &models.Dataset{
		Dates:     []time.Time{day(2020, 3, 1), day(2020, 3, 2), day(2020, 3, 3)},
		Countries: []string{"Albania", "Korea, South", "Spain"},
		Series: map[string][]models.DailyCounts{
			"Albania": {
				models.NewDailyCounts(1, 0, 0),
				models.NewDailyCounts(2, 0, 0),
				models.NewDailyCounts(22, 1, 3),
			},
			"Korea, South": {
				models.NewDailyCounts(4000, 20, 100),
				models.NewDailyCounts(4500, 25, 120),
				models.NewDailyCounts(5000, 30, 150),
			},
			"Spain": {
				models.NewDailyCounts(100, 1, 0),
				models.NewDailyCounts(1500, 20, 10),
				models.NewDailyCounts(12345, 400, 500),
			},
		},
		LastRefreshed: day(2020, 3, 4),
	}
}

type fakeStore struct {
	ds         *models.Dataset
	currentErr error
	refreshErr error
	currents   atomic.Int32
	refreshes  atomic.Int32
}

func (f *fakeStore) Current(context.Context) (*models.Dataset, error) {
	f.currents.Add(1)
	if f.currentErr != nil {
		return nil, f.currentErr
	}
	return f.ds, nil
}

func (f *fakeStore) Snapshot() *models.Dataset { return f.ds }

func (f *fakeStore) Refresh(_ context.Context, trigger models.RefreshTrigger) error {
	f.refreshes.Add(1)
	return f.refreshErr
}

type fakeChecker struct {
	info *models.SourcePageInfo
	err  error
}

func (f *fakeChecker) CheckSourcePage(_ context.Context, pageURL, _ string) (*models.SourcePageInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	info.PageURL = pageURL
	return &info, nil
}

func newTestServer(store *fakeStore, history services.RefreshHistory, checker SourceChecker) *httptest.Server {
	h := New(store, history, checker, Options{
		DefaultCountry: "Spain",
		DaysShown:      2,
		SourcePageURL:  "https://example.org/dataset",
	})
	return httptest.NewServer(h.Routes())
}

// client has no cookie jar, so tests pass cookies explicitly.
func client() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func getDoc(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return doc
}

func TestDashboardDefaultCountry(t *testing.T) {
	store := &fakeStore{ds: testDataset()}
	srv := newTestServer(store, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	doc := getDoc(t, resp)
	assert.Equal(t, "Spain", strings.TrimSpace(doc.Find("select[name=SelectedCountry] option[selected]").Text()))
	assert.Equal(t, 3, doc.Find("select[name=SelectedCountry] option").Length())

	rows := doc.Find("#country-data tbody tr")
	require.Equal(t, 2, rows.Length())
	var last []string
	rows.Last().Find("td").Each(func(_ int, s *goquery.Selection) {
		last = append(last, strings.TrimSpace(s.Text()))
	})
	assert.Equal(t, []string{"2020-03-03", "12,345", "400", "500", "11,445"}, last)

	src, ok := doc.Find("img").Attr("src")
	require.True(t, ok)
	assert.Equal(t, "/getCountryChart/Spain", src)
	assert.EqualValues(t, 1, store.currents.Load())
}

func TestDashboardPostSelectsCountryAndRemembersIt(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().PostForm(srv.URL+"/", url.Values{"SelectedCountry": {"Korea, South"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var remembered *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == selectedCountryCookie {
			remembered = c
		}
	}
	require.NotNil(t, remembered)

	doc := getDoc(t, resp)
	assert.Equal(t, "Korea, South", strings.TrimSpace(doc.Find("option[selected]").Text()))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: remembered.Name, Value: remembered.Value})
	resp, err = client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	doc = getDoc(t, resp)
	assert.Equal(t, "Korea, South", strings.TrimSpace(doc.Find("option[selected]").Text()))
}

func TestDashboardStaleCookieFallsBackToDefault(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: selectedCountryCookie, Value: "Atlantis"})
	resp, err := client().Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	doc := getDoc(t, resp)
	assert.Equal(t, "Spain", strings.TrimSpace(doc.Find("option[selected]").Text()))
}

func TestDashboardUnknownCountry(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().PostForm(srv.URL+"/", url.Values{"SelectedCountry": {"Atlantis"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, resp.Cookies())

	doc := getDoc(t, resp)
	assert.Contains(t, doc.Find("p.error").Text(), "Atlantis")
	assert.Equal(t, 0, doc.Find("#country-data").Length())
}

func TestDashboardDays(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().PostForm(srv.URL+"/", url.Values{"SelectedCountry": {"Albania"}, "days": {"28"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	doc := getDoc(t, resp)
	assert.Equal(t, 3, doc.Find("#country-data tbody tr").Length())

	for _, bad := range []string{"0", "-3", "many"} {
		resp, err := client().Get(srv.URL + "/?days=" + url.QueryEscape(bad))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		resp.Body.Close()
	}
}

func TestDashboardDatasetUnavailable(t *testing.T) {
	srv := newTestServer(&fakeStore{currentErr: models.ErrNoDataset}, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDashboardRejectsOtherPaths(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/nothing-here")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCountryChart(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/getCountryChart/Korea%2C%20South")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestCountryChartErrors(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/getCountryChart/Atlantis", http.StatusNotFound},
		{"/getCountryChart/Spain?days=0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, err := client().Get(srv.URL + tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, resp.StatusCode, tt.path)
		resp.Body.Close()
	}

	resp, err := client().Post(srv.URL+"/getCountryChart/Spain", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	store := &fakeStore{ds: testDataset()}
	srv := newTestServer(store, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health models.HealthResponse
	decodeJSON(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 3, health.Countries)
	assert.Zero(t, store.currents.Load())

	empty := newTestServer(&fakeStore{}, nil, nil)
	defer empty.Close()
	resp, err = client().Get(empty.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	decodeJSON(t, resp, &health)
	assert.Equal(t, "error", health.Status)
}

func TestListCountries(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/api/countries")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body models.CountryListResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, []string{"Albania", "Korea, South", "Spain"}, body.Countries)
	assert.True(t, body.LastRefreshed.Equal(day(2020, 3, 4)))
}

func TestCountrySeriesAPI(t *testing.T) {
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/api/countries/Albania/series?days=28")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body models.CountrySeriesResponse
	decodeJSON(t, resp, &body)
	assert.Equal(t, "Albania", body.Country)
	assert.Equal(t, 3, body.Days)
	require.Len(t, body.Records, 3)
	assert.True(t, body.Records[0].Date.Equal(day(2020, 3, 1)))
	assert.Equal(t, int64(18), body.Records[2].Active)

	resp, err = client().Get(srv.URL + "/api/countries/Albania/series")
	require.NoError(t, err)
	decodeJSON(t, resp, &body)
	assert.Equal(t, 2, body.Days)

	for path, want := range map[string]int{
		"/api/countries/Atlantis/series":      http.StatusNotFound,
		"/api/countries/Albania/series?days=0": http.StatusBadRequest,
	} {
		resp, err := client().Get(srv.URL + path)
		require.NoError(t, err)
		assert.Equal(t, want, resp.StatusCode, path)
		var e map[string]string
		decodeJSON(t, resp, &e)
		assert.NotEmpty(t, e["error"])
	}
}

func TestForceRefresh(t *testing.T) {
	store := &fakeStore{ds: testDataset()}
	srv := newTestServer(store, nil, nil)
	defer srv.Close()

	resp, err := client().Post(srv.URL+"/api/admin/refresh", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decodeJSON(t, resp, &body)
	assert.EqualValues(t, 3, body["countries"])
	assert.EqualValues(t, 1, store.refreshes.Load())

	store.refreshErr = errors.New("upstream down")
	resp, err = client().Post(srv.URL+"/api/admin/refresh", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var e map[string]string
	decodeJSON(t, resp, &e)
	assert.Contains(t, e["error"], "upstream down")

	resp, err = client().Get(srv.URL + "/api/admin/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestListRefreshRuns(t *testing.T) {
	history := services.NewMemoryRefreshLog(5)
	for i, status := range []models.RefreshStatus{models.RefreshSucceeded, models.RefreshFailed} {
		require.NoError(t, history.RecordRefresh(context.Background(), models.RefreshRun{
			ID:        string(rune('a' + i)),
			Trigger:   models.TriggerDaily,
			Status:    status,
			StartedAt: day(2020, 3, 1+i),
		}))
	}
	srv := newTestServer(&fakeStore{ds: testDataset()}, history, nil)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/api/admin/refresh-runs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []models.RefreshRun
	decodeJSON(t, resp, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)

	resp, err = client().Get(srv.URL + "/api/admin/refresh-runs?limit=1")
	require.NoError(t, err)
	decodeJSON(t, resp, &runs)
	assert.Len(t, runs, 1)

	resp, err = client().Get(srv.URL + "/api/admin/refresh-runs?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	noHistory := newTestServer(&fakeStore{ds: testDataset()}, nil, nil)
	defer noHistory.Close()
	resp, err = client().Get(noHistory.URL + "/api/admin/refresh-runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSourceStatus(t *testing.T) {
	updated := day(2020, 3, 3)
	checker := &fakeChecker{info: &models.SourcePageInfo{UpdatedText: "March 3, 2020", Updated: &updated}}
	srv := newTestServer(&fakeStore{ds: testDataset()}, nil, checker)
	defer srv.Close()

	resp, err := client().Get(srv.URL + "/api/admin/source-status")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var info models.SourcePageInfo
	decodeJSON(t, resp, &info)
	assert.Equal(t, "https://example.org/dataset", info.PageURL)
	require.NotNil(t, info.Updated)
	assert.True(t, info.Updated.Equal(updated))

	checker.err = errors.New("page gone")
	resp, err = client().Get(srv.URL + "/api/admin/source-status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestParseDays(t *testing.T) {
	n, err := parseDays("", 28)
	require.NoError(t, err)
	assert.Equal(t, 28, n)

	n, err = parseDays("7", 28)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	for _, raw := range []string{"0", "-1", "1.5", "x"} {
		_, err := parseDays(raw, 28)
		assert.ErrorIs(t, err, models.ErrInvalidDays, raw)
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusForError(models.ErrCountryNotFound))
	assert.Equal(t, http.StatusBadRequest, statusForError(models.ErrInvalidDays))
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("boom")))
}
