package eastmoney

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/earnings-cli/internal/resilience"
)

const pageBody = `{
  "success": true,
  "message": "ok",
  "code": 0,
  "result": {
    "count": 3,
    "pages": 2,
    "data": [
      {"SECURITY_CODE": "600519", "SECURITY_NAME_ABBR": "贵州茅台", "BASIC_EPS": 68.64, "ASSIGNDSCRPT": null},
      {"SECURITY_CODE": "000001", "SECURITY_NAME_ABBR": "平安银行", "BASIC_EPS": 2.25, "ASSIGNDSCRPT": "10派7.19元"}
    ]
  }
}`

func TestFetchPage_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "UPDATE_DATE,SECURITY_CODE", q.Get("sortColumns"))
		assert.Equal(t, "-1,-1", q.Get("sortTypes"))
		assert.Equal(t, "50", q.Get("pageSize"))
		assert.Equal(t, "1", q.Get("pageNumber"))
		assert.Equal(t, "RPT_LICO_FN_CPD", q.Get("reportName"))
		assert.Equal(t, "ALL", q.Get("columns"))
		assert.Equal(t, "(REPORTDATE='2024-12-31')", q.Get("filter"))
		assert.Equal(t, "WEB", q.Get("source"))
		assert.Equal(t, "WEB", q.Get("client"))
		assert.Equal(t, "https://data.eastmoney.com/", r.Header.Get("Referer"))
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pageBody))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	res, err := c.FetchPage(context.Background(), Query{ReportDate: "2024-12-31", Page: 1})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Data, 2)

	first := res.Data[0]
	assert.Equal(t, []string{"SECURITY_CODE", "SECURITY_NAME_ABBR", "BASIC_EPS", "ASSIGNDSCRPT"}, first.Fields())
	assert.Equal(t, "68.64", first.Cell("BASIC_EPS"))
	assert.Equal(t, "", first.Cell("ASSIGNDSCRPT"))
	key, ok := first.Key(KeyField)
	assert.True(t, ok)
	assert.Equal(t, "600519", key)
}

func TestFetchPage_CustomOptions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RPT_CUSTOM", r.URL.Query().Get("reportName"))
		assert.Equal(t, "10", r.URL.Query().Get("pageSize"))
		assert.Equal(t, "3", r.URL.Query().Get("pageNumber"))
		assert.Equal(t, "tester", r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("Referer"))
		_, _ = w.Write([]byte(`{"success":true,"result":{"count":0,"pages":0,"data":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(
		WithBaseURL(srv.URL),
		WithReportName("RPT_CUSTOM"),
		WithHeaders(map[string]string{"User-Agent": "tester"}),
		WithTimeout(5*time.Second),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	res, err := c.FetchPage(context.Background(), Query{ReportDate: "2023-06-30", Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.Empty(t, res.Data)
}

func TestFetchPage_ServerReportedFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"返回数据为空","code":9201}`))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).FetchPage(context.Background(), Query{ReportDate: "2030-03-31", Page: 1})
	require.Error(t, err)

	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "返回数据为空", se.Message)
	assert.False(t, resilience.IsTransient(err))
}

func TestFetchPage_MalformedBody(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":       `<html>busy</html>`,
		"missing result": `{"success":true}`,
		"bad record":     `{"success":true,"result":{"count":1,"pages":1,"data":[42]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := NewClient(WithBaseURL(srv.URL)).FetchPage(context.Background(), Query{ReportDate: "2024-03-31", Page: 1})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse), err.Error())
		})
	}
}

func TestFetchPage_HTTPStatusIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).FetchPage(context.Background(), Query{ReportDate: "2024-03-31", Page: 2})
	require.Error(t, err)

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
}

func TestFetchPage_TransportErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(WithBaseURL(url)).FetchPage(context.Background(), Query{ReportDate: "2024-03-31", Page: 1})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestFetchPage_InvalidPage(t *testing.T) {
	t.Parallel()

	_, err := NewClient().FetchPage(context.Background(), Query{ReportDate: "2024-03-31", Page: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page number")
}

func TestServerError_Message(t *testing.T) {
	assert.Equal(t, "eastmoney: api error: unknown error", (&ServerError{}).Error())
	assert.Equal(t, "eastmoney: api error: boom", (&ServerError{Message: "boom"}).Error())
}

func TestFilter(t *testing.T) {
	assert.Equal(t, "(REPORTDATE='2024-09-30')", Filter("2024-09-30"))
}
