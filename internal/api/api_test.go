package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListSchools(ctx context.Context) ([]store.SchoolSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.SchoolSummary), args.Error(1)
}

func (m *mockStore) SchoolReviews(ctx context.Context, schoolID int, start, end time.Time) (json.RawMessage, error) {
	args := m.Called(ctx, schoolID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func serve(t *testing.T, st Store, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	NewRouter(st, nil).ServeHTTP(rr, httptest.NewRequest(method, target, nil))
	return rr
}

func TestRoot(t *testing.T) {
	rr := serve(t, &mockStore{}, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Schools API","version":"1.0.0"}`, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestHealth(t *testing.T) {
	st := &mockStore{}
	st.On("Ping", mock.Anything).Return(nil).Once()
	st.On("Ping", mock.Anything).Return(errors.New("down")).Once()

	rr := serve(t, st, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = serve(t, st, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	st.AssertExpectations(t)
}

func TestSchools(t *testing.T) {
	name := "Школа №3"
	st := &mockStore{}
	st.On("ListSchools", mock.Anything).Return([]store.SchoolSummary{
		{SchoolID: 3, Name2GIS: &name, ReviewsCount: 4},
	}, nil)

	rr := serve(t, st, http.MethodGet, "/schools")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Schools []store.SchoolSummary `json:"schools"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Schools, 1)
	assert.Equal(t, 3, body.Schools[0].SchoolID)
	assert.Equal(t, "Школа №3", *body.Schools[0].Name2GIS)
	assert.Equal(t, int64(4), body.Schools[0].ReviewsCount)
}

func TestSchools_StoreError(t *testing.T) {
	st := &mockStore{}
	st.On("ListSchools", mock.Anything).Return(nil, errors.New("db gone"))

	rr := serve(t, st, http.MethodGet, "/schools")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "db gone")
}

func TestReviews_DefaultRange(t *testing.T) {
	st := &mockStore{}
	st.On("SchoolReviews", mock.Anything, 12, defaultStart, defaultEnd).
		Return(json.RawMessage(`[{"review_id":1}]`), nil)

	rr := serve(t, st, http.MethodGet, "/schools/12/reviews")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"reviews":[{"review_id":1}]}`, rr.Body.String())
	st.AssertExpectations(t)
}

func TestReviews_ExplicitRange(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	st := &mockStore{}
	st.On("SchoolReviews", mock.Anything, 5, start, end).Return(json.RawMessage(nil), nil)

	rr := serve(t, st, http.MethodGet, "/schools/5/reviews?date_start=2023-01-01&date_end=2023-06-30")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"reviews":[]}`, rr.Body.String())
	st.AssertExpectations(t)
}

func TestReviews_BadRequest(t *testing.T) {
	for _, target := range []string{
		"/schools/abc/reviews",
		"/schools/0/reviews",
		"/schools/1/reviews?date_start=01.01.2023",
		"/schools/1/reviews?date_end=2023-13-01",
	} {
		t.Run(target, func(t *testing.T) {
			st := &mockStore{}
			rr := serve(t, st, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			st.AssertNotCalled(t, "SchoolReviews", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestReviews_StoreError(t *testing.T) {
	st := &mockStore{}
	st.On("SchoolReviews", mock.Anything, 1, defaultStart, defaultEnd).Return(nil, errors.New("timeout"))

	rr := serve(t, st, http.MethodGet, "/schools/1/reviews")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestCORS(t *testing.T) {
	h := NewRouter(&mockStore{}, []string{"http://app.example"})

	req := httptest.NewRequest(http.MethodOptions, "/schools", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "http://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- ListenAndServe(ctx, NewRouter(&mockStore{}, nil), port)
	}()

	var ready bool
	for i := 0; i < 50; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", port))
		if err == nil {
			_ = resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not start")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
