package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structprep/quizd/internal/api"
	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/event"
	"github.com/structprep/quizd/internal/quiz"
)

const testSecret = "test-secret"

type fakeDrawer struct {
	ws  []domain.Question
	err error
}

func (f fakeDrawer) Draw(context.Context, domain.Predicate, int) ([]domain.Question, error) {
	return f.ws, f.err
}

type fakeCatalog struct{}

func (fakeCatalog) Categories(context.Context) []string {
	return []string{"Concrete", "Steel", "Wood"}
}

type fakeStats struct {
	stats    domain.CommunityStats
	ownCount int

	gotCategory string
	gotIdentity domain.Identity
}

func (f *fakeStats) Compare(_ context.Context, category string) domain.CommunityStats {
	f.gotCategory = category
	return f.stats
}

func (f *fakeStats) OwnHistoryCount(_ context.Context, id domain.Identity, _ string) int {
	f.gotIdentity = id
	return f.ownCount
}

func workingSet(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			QuestionID:  fmt.Sprintf("q%d", i),
			Category:    "Steel",
			CodeSource:  "AISC",
			Difficulty:  "hard",
			Explanation: "because steel",
			Options: []domain.Option{
				{OptionText: "wrong"},
				{OptionText: "right", IsCorrect: true},
			},
		}
	}
	return qs
}

func makeRouter(t *testing.T, drawer quiz.Drawer, st *fakeStats) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eb := event.NewBus()
	m := quiz.NewManager(quiz.Config{
		EventBus: eb,
		Sampler:  drawer,
	})
	t.Cleanup(m.Close)

	e := gin.New()
	api.New(api.Config{
		Router:     e,
		Quiz:       m,
		Catalog:    fakeCatalog{},
		Stats:      st,
		AuthSecret: testSecret,
	})

	return e
}

func doJSON(t *testing.T, e *gin.Engine, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}

	return w, resp
}

func TestAPI_QuizFlow(t *testing.T) {
	st := &fakeStats{
		stats:    domain.CommunityStats{AverageScore: 85, ParticipantCount: 2},
		ownCount: 3,
	}
	e := makeRouter(t, fakeDrawer{ws: workingSet(2)}, st)

	// Start a run.
	w, resp := doJSON(t, e, http.MethodPost, "/v1/runs", map[string]any{
		"category":       "Steel",
		"question_count": 5,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	runID, _ := resp["run_id"].(string)
	require.NotEmpty(t, runID)
	assert.Equal(t, float64(2), resp["total_questions"])
	assert.Equal(t, false, resp["revealed"])

	// The unrevealed question must not leak correctness or explanation.
	q := resp["question"].(map[string]any)
	assert.NotContains(t, q, "correct_option")
	assert.NotContains(t, q, "explanation")

	// Answer q0 correctly: the reveal carries the correct option.
	w, resp = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/answer", map[string]any{"option_index": 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["revealed"])
	q = resp["question"].(map[string]any)
	assert.Equal(t, float64(1), q["correct_option"])
	assert.Equal(t, "because steel", q["explanation"])
	answer := resp["answer"].(map[string]any)
	assert.Equal(t, true, answer["is_correct"])

	// Flag, then flag again: the second call is informational.
	w, resp = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/flags", map[string]any{"question_id": "q0"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["flagged"])

	w, resp = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/flags", map[string]any{"question_id": "q0"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["already_flagged"])

	// Results are not available mid-run.
	w, _ = doJSON(t, e, http.MethodGet, "/v1/runs/"+runID+"/results", nil, nil)
	require.Equal(t, http.StatusConflict, w.Code)

	// Advance, skip q1, advance: run completes.
	w, _ = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/skip", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/advance", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", resp["state"])

	// Results: 1 of 2 correct scores 50, with the community comparison.
	w, resp = doJSON(t, e, http.MethodGet, "/v1/runs/"+runID+"/results", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(50), resp["score"])
	assert.Equal(t, float64(1), resp["correct_answers"])
	assert.Equal(t, float64(1), resp["incorrect_answers"])

	community := resp["community"].(map[string]any)
	assert.Equal(t, float64(85), community["average_score"])
	assert.Equal(t, float64(2), community["participant_count"])
	assert.Equal(t, "Steel", st.gotCategory)
}

func TestAPI_StartRun_InvalidFilter(t *testing.T) {
	e := makeRouter(t, fakeDrawer{ws: workingSet(2)}, &fakeStats{})

	w, resp := doJSON(t, e, http.MethodPost, "/v1/runs", map[string]any{
		"difficulty": "bogus",
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, string(errors.ReasonInvalidFilterValue), errObj["reason"])
}

func TestAPI_StartRun_EntryParamsOverrideDefaults(t *testing.T) {
	drawer := &recordingDrawer{ws: workingSet(1)}
	e := makeRouter(t, drawer, &fakeStats{})

	w, _ := doJSON(t, e, http.MethodPost, "/v1/runs?difficulty=hard&category=Wood", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, domain.Predicate{Category: "Wood", Difficulty: "hard"}, drawer.gotPredicate)
}

func TestAPI_StartRun_NoMatches(t *testing.T) {
	e := makeRouter(t, fakeDrawer{err: errors.New(errors.CodeNotFound,
		errors.WithReason(errors.ReasonNoMatchingQuestions))}, &fakeStats{})

	w, resp := doJSON(t, e, http.MethodPost, "/v1/runs", map[string]any{}, nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, string(errors.ReasonNoMatchingQuestions), errObj["reason"])
}

func TestAPI_AbortRun(t *testing.T) {
	e := makeRouter(t, fakeDrawer{ws: workingSet(2)}, &fakeStats{})

	w, resp := doJSON(t, e, http.MethodPost, "/v1/runs", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	runID := resp["run_id"].(string)

	w, _ = doJSON(t, e, http.MethodDelete, "/v1/runs/"+runID, nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, e, http.MethodGet, "/v1/runs/"+runID, nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_Identity(t *testing.T) {
	st := &fakeStats{}
	e := makeRouter(t, fakeDrawer{ws: workingSet(1)}, st)

	w, resp := doJSON(t, e, http.MethodPost, "/v1/runs", map[string]any{}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	runID := resp["run_id"].(string)

	doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/answer", map[string]any{"option_index": 1}, nil)
	doJSON(t, e, http.MethodPost, "/v1/runs/"+runID+"/advance", nil, nil)

	// A signed bearer token scopes the caller's own statistics.
	headers := map[string]string{"Authorization": "Bearer " + signToken(t, testSecret, "eng@x.com", "user")}
	w, _ = doJSON(t, e, http.MethodGet, "/v1/runs/"+runID+"/results", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "eng@x.com", st.gotIdentity.Email)

	// A token signed with the wrong key degrades to anonymous.
	headers["Authorization"] = "Bearer " + signToken(t, "wrong-secret", "eng@x.com", "user")
	w, _ = doJSON(t, e, http.MethodGet, "/v1/runs/"+runID+"/results", nil, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, st.gotIdentity.IsAnonymous())
}

type recordingDrawer struct {
	ws           []domain.Question
	gotPredicate domain.Predicate
}

func (r *recordingDrawer) Draw(_ context.Context, p domain.Predicate, _ int) ([]domain.Question, error) {
	r.gotPredicate = p
	return r.ws, nil
}

func signToken(t *testing.T, secret, email, role string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": email,
		"role":  role,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	return signed
}
