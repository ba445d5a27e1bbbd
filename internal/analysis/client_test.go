package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/fishscroll/internal/errors"
)

const recordJSON = `{"fishName":"참돔","fishNameEn":"Red Seabream","fishNameJp":"マダイ","confidence":82,
"characteristics":["붉은 껍질","흰 살","단단한 결"],"taste":"담백함","texture":"쫄깃함","season":"봄",
"price":"고급","recommendations":["간장","소금"],"nutrition":"고단백"}`

const testImage = "data:image/jpeg;base64,/9j/AAAA"

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, AnalyzePath, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req map[string]any
		require.NoError(t, json.Unmarshal(data, &req))
		require.Equal(t, map[string]any{"image": testImage}, req)

		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAnalyze_Success(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, recordJSON)
	c := NewClient(Config{BaseURL: srv.URL + "/"})

	a, err := c.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	require.Equal(t, "Red Seabream", a.FishNameEn)
	require.Equal(t, 82, a.Confidence)
	require.Empty(t, a.Alternatives)
	require.Equal(t, int32(1), calls.Load())
}

func TestAnalyze_FencedBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "```json\n"+recordJSON+"\n```")
	c := NewClient(Config{BaseURL: srv.URL})

	a, err := c.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	require.Equal(t, "참돔", a.FishName)
}

func TestAnalyze_MissingInput(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, recordJSON)
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), "  ")
	require.True(t, errors.Is(err, errors.ErrMissingInput))
	require.Equal(t, int32(0), calls.Load())
}

func TestAnalyze_MalformedResponse(t *testing.T) {
	body := "I think this is a salmon."
	srv, _ := newServer(t, http.StatusOK, body)
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), testImage)
	require.True(t, errors.Is(err, errors.ErrMalformedResponse))
	require.Equal(t, body, errors.RawResponse(err))
}

func TestAnalyze_BackendError(t *testing.T) {
	srv, calls := newServer(t, http.StatusInternalServerError,
		`{"error":"Failed to parse AI response","rawResponse":"not json"}`)
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), testImage)
	require.True(t, errors.Is(err, errors.ErrBackend))

	fErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, "Failed to parse AI response", fErr.Message)
	require.Equal(t, http.StatusInternalServerError, fErr.Details["status"])
	require.Equal(t, "not json", errors.RawResponse(err))
	require.Equal(t, int32(1), calls.Load(), "no retry")
}

func TestAnalyze_BackendErrorPlainBody(t *testing.T) {
	srv, _ := newServer(t, http.StatusTooManyRequests, "slow down")
	c := NewClient(Config{BaseURL: srv.URL})

	_, err := c.Analyze(context.Background(), testImage)
	fErr, ok := errors.As(err)
	require.True(t, ok)
	require.Equal(t, errors.ErrBackend, fErr.Code)
	require.Equal(t, http.StatusTooManyRequests, fErr.Details["status"])
	require.Equal(t, "slow down", errors.RawResponse(err))
}

func TestAnalyze_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url})
	_, err := c.Analyze(context.Background(), testImage)
	require.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestAnalyze_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL}, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	_, err := c.Analyze(context.Background(), testImage)
	require.True(t, errors.Is(err, errors.ErrNetwork))
}

func TestNewClient_Timeout(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://x", TimeoutSeconds: 30})
	require.Equal(t, 30*time.Second, c.httpClient.Timeout)

	c = NewClient(Config{BaseURL: "http://x"})
	require.Zero(t, c.httpClient.Timeout)
}
