package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"moderation-service/internal/handler"
	"moderation-service/internal/models"
	"moderation-service/internal/repository"
	"moderation-service/internal/service"
)

type fakeSubmissions struct {
	created []*models.Submission
	byID    map[string]*models.Submission
	listErr error
	limit   int
	offset  int
}

func (f *fakeSubmissions) Create(_ context.Context, sub *models.Submission) error {
	sub.ID = "new-id"
	sub.Status = models.StatusPending
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubmissions) GetByID(_ context.Context, id string) (*models.Submission, error) {
	sub, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubmissions) List(_ context.Context, limit, offset int) ([]*models.Submission, error) {
	f.limit, f.offset = limit, offset
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Submission, 0, len(f.byID))
	for _, sub := range f.byID {
		out = append(out, sub)
	}
	return out, nil
}

type fakeModerator struct {
	result   *models.ModerationResult
	err      error
	asyncErr error
	queued   []string
}

func (f *fakeModerator) RunModeration(context.Context, string) (*models.ModerationResult, error) {
	return f.result, f.err
}

func (f *fakeModerator) RunModerationAsync(_ context.Context, id string) error {
	if f.asyncErr != nil {
		return f.asyncErr
	}
	f.queued = append(f.queued, id)
	return nil
}

func newRouter(subs *fakeSubmissions, mod *fakeModerator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.CORS())

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moderation_runs_total 1\n"))
	})
	providers := func() []map[string]interface{} {
		return []map[string]interface{}{{"provider": "groq", "is_current": true}}
	}

	handler.NewHandler(subs, mod, providers, metrics, zap.NewNop()).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSubmission(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		status   int
		wantType models.SubmissionType
	}{
		{name: "text only", body: `{"text_content":"hello"}`, status: http.StatusCreated, wantType: models.SubmissionText},
		{name: "image inferred", body: `{"text_content":"cat","image_url":"https://x/cat.png"}`, status: http.StatusCreated, wantType: models.SubmissionImage},
		{name: "both empty", body: `{"text_content":"  "}`, status: http.StatusBadRequest},
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			subs := &fakeSubmissions{}
			w := do(newRouter(subs, &fakeModerator{}), http.MethodPost, "/api/v1/submissions", tc.body)

			require.Equal(t, tc.status, w.Code)
			if tc.status != http.StatusCreated {
				assert.Empty(t, subs.created)
				return
			}

			var got models.Submission
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "new-id", got.ID)
			assert.Equal(t, tc.wantType, got.Type)
			assert.Equal(t, models.StatusPending, got.Status)
		})
	}
}

func TestGetSubmission(t *testing.T) {
	subs := &fakeSubmissions{byID: map[string]*models.Submission{
		"s1": {ID: "s1", Type: models.SubmissionText, Status: models.StatusFlagged, Stage: models.Ptr(models.StageCompleted)},
	}}
	r := newRouter(subs, &fakeModerator{})

	w := do(r, http.MethodGet, "/api/v1/submissions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stage":"completed"`)

	w = do(r, http.MethodGet, "/api/v1/submissions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubmissions(t *testing.T) {
	subs := &fakeSubmissions{byID: map[string]*models.Submission{"s1": {ID: "s1"}}}
	r := newRouter(subs, &fakeModerator{})

	w := do(r, http.MethodGet, "/api/v1/submissions?limit=10&offset=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, subs.limit)
	assert.Equal(t, 5, subs.offset)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do(r, http.MethodGet, "/api/v1/submissions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	subs.listErr = errors.New("db closed")
	w = do(r, http.MethodGet, "/api/v1/submissions", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestModerate(t *testing.T) {
	testCases := []struct {
		name   string
		mod    *fakeModerator
		status int
	}{
		{
			name:   "result",
			mod:    &fakeModerator{result: &models.ModerationResult{SubmissionID: "s1", Status: models.StatusApproved}},
			status: http.StatusOK,
		},
		{name: "not found", mod: &fakeModerator{err: service.ErrSubmissionNotFound}, status: http.StatusNotFound},
		{name: "failure", mod: &fakeModerator{err: errors.New("boom")}, status: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newRouter(&fakeSubmissions{}, tc.mod), http.MethodPost, "/api/v1/submissions/s1/moderate", "")
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"status":"approved"`)
			}
		})
	}
}

func TestModerateAsync(t *testing.T) {
	mod := &fakeModerator{}
	r := newRouter(&fakeSubmissions{}, mod)

	w := do(r, http.MethodPost, "/api/v1/submissions/s1/moderate/async", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "s1", body["id"])
	assert.Equal(t, "queued", body["stage"])
	assert.Equal(t, []string{"s1"}, mod.queued)

	mod.asyncErr = service.ErrSubmissionNotFound
	w = do(r, http.MethodPost, "/api/v1/submissions/s1/moderate/async", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	mod.asyncErr = service.ErrShuttingDown
	w = do(r, http.MethodPost, "/api/v1/submissions/s1/moderate/async", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := newRouter(&fakeSubmissions{}, &fakeModerator{})

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"provider":"groq"`)

	w = do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "moderation_runs_total")
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(&fakeSubmissions{}, &fakeModerator{})

	w := do(r, http.MethodOptions, "/api/v1/submissions", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
