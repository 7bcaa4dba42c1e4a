package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abhisek/lingua/internal/clock"
	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/exstore"
	"github.com/abhisek/lingua/internal/gateway"
	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/llm"
	"github.com/abhisek/lingua/internal/session"
)

const listeningJSON = `{
  "title": "At the bakery",
  "instructions": "Listen and answer.",
  "transcript": "Good morning! Two croissants, please. That will be three euros.",
  "questions": [
    {"question": "What does the customer buy?", "options": ["bread", "croissants", "cake"], "correct_index": 1, "explanation": "Two croissants."},
    {"question": "How much does it cost?", "options": ["two euros", "three euros"], "correct_index": 1, "explanation": "Three euros."},
    {"question": "What time of day is it?", "options": ["morning", "evening"], "correct_index": 0, "explanation": "Good morning."}
  ]
}`

const translationJSON = `{
  "title": "Travel phrases",
  "instructions": "Translate into English.",
  "questions": [
    {"question": "Tôi muốn đặt phòng.", "answer": "I want to book a room.", "explanation": ""},
    {"question": "Nhà ga ở đâu?", "answer": "Where is the station?", "explanation": ""},
    {"question": "Cảm ơn bạn rất nhiều.", "answer": "Thank you very much.", "explanation": ""}
  ]
}`

const speakingJSON = `{
  "title": "Hotel check-in",
  "instructions": "Answer aloud.",
  "speaking_prompt": "You arrive at a hotel late at night.",
  "questions": [
    {"question": "Greet the receptionist", "answer": "Good evening.", "explanation": ""},
    {"question": "Ask for your room key", "answer": "Could I have my key?", "explanation": ""},
    {"question": "Ask about breakfast", "answer": "When is breakfast?", "explanation": ""}
  ]
}`

var t0 = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	clock   *clock.Fake
	mock    *llm.MockProvider
}

func newEnv(t *testing.T, gwCfg gateway.Config, responses ...llm.MockResponse) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	clk := clock.NewFake(t0)
	mock := llm.NewMockProvider(responses...)

	gwCfg.DefaultModel = llm.ModelMock
	gw := gateway.New(map[llm.Model]llm.Provider{llm.ModelMock: mock}, gwCfg, log)
	store := exstore.NewMemory(nil, clk)
	gen := exercise.NewGenerator(gw, store, exercise.DefaultConfig(), log)
	ctl := session.NewController(store, clk, session.DefaultConfig(), nil, log)
	t.Cleanup(ctl.Close)

	srv := New(gen, ctl, gw, log)
	srv.clock = clk.Now
	return &testEnv{handler: srv.Handler(), clock: clk, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type apiError struct {
	Error errorBody `json:"error"`
}

func generate(t *testing.T, e *testEnv, kind exercise.Kind) exercise.Handle {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/exercises", map[string]any{
		"owner": "u1", "kind": kind, "topic": "travel", "level": "a2", "question_count": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[exercise.Handle](t, rec)
}

func startSession(t *testing.T, e *testEnv, exerciseID string, seconds int) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/sessions", map[string]any{"owner": "u1", "exercise_id": exerciseID, "duration_seconds": seconds})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[startResponse](t, rec).SessionID
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, gateway.Config{})
	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerateExercise(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(listeningJSON)})

	rec := e.do(t, http.MethodPost, "/v1/exercises", map[string]any{
		"owner": "u1", "kind": "listening", "topic": "food", "level": "a2", "question_count": 3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "correct_index")
	assert.NotContains(t, rec.Body.String(), "canonical_answer")

	h := decode[exercise.Handle](t, rec)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, exercise.KindListening, h.Kind)
	assert.Equal(t, "A2", h.Level)
	assert.Equal(t, t0.Add(45*time.Minute), h.ExpiresAt.UTC())
	assert.Len(t, h.Questions, 3)

	got := e.do(t, http.MethodGet, "/v1/exercises/"+h.ID, nil)
	assert.Equal(t, http.StatusOK, got.Code)

	list := e.do(t, http.MethodGet, "/v1/exercises?owner=u1&limit=5", nil)
	require.Equal(t, http.StatusOK, list.Code)
	body := decode[map[string][]exercise.Summary](t, list)
	require.Len(t, body["exercises"], 1)
	assert.Equal(t, "At the bakery", body["exercises"][0].Title)

	empty := e.do(t, http.MethodGet, "/v1/exercises?owner=nobody", nil)
	assert.JSONEq(t, `{"exercises":[]}`, empty.Body.String())
}

func TestGenerateExercise_Errors(t *testing.T) {
	badKey := `{"title": "t", "instructions": "i", "questions": [
		{"question": "q1", "options": ["a", "b"], "correct_index": 5, "explanation": ""},
		{"question": "q2", "options": ["a", "b"], "correct_index": 0, "explanation": ""},
		{"question": "q3", "options": ["a", "b"], "correct_index": 0, "explanation": ""}]}`

	e := newEnv(t, gateway.Config{Timeout: 20 * time.Millisecond, DefaultRetryAfter: 45 * time.Second},
		llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}},
		llm.MockResponse{Content: json.RawMessage(listeningJSON), Delay: time.Second},
		llm.MockResponse{Content: json.RawMessage(badKey)},
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{}},
	)
	req := map[string]any{"owner": "u1", "kind": "multiple_choice_set", "topic": "verbs", "question_count": 3}

	rec := e.do(t, http.MethodPost, "/v1/exercises", req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "45", rec.Header().Get("Retry-After"))
	body := decode[apiError](t, rec)
	assert.Equal(t, 45, body.Error.RetryAfterSeconds)
	assert.Contains(t, body.Error.Message, "try again in 45 seconds")

	rec = e.do(t, http.MethodPost, "/v1/exercises", req)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/exercises", req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "invalid_generated_content", decode[apiError](t, rec).Error.Code)

	rec = e.do(t, http.MethodPost, "/v1/exercises", req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.Equal(t, 4, e.mock.CallCount())

	for name, bad := range map[string]map[string]any{
		"count":   {"owner": "u1", "kind": "listening", "topic": "x", "question_count": 1},
		"kind":    {"owner": "u1", "kind": "poetry", "topic": "x", "question_count": 3},
		"model":   {"owner": "u1", "kind": "listening", "topic": "x", "question_count": 3, "model": "gpt-9"},
		"backend": {"owner": "u1", "kind": "listening", "topic": "x", "question_count": 3, "model": "claude-sonnet"},
		"owner":   {"kind": "listening", "topic": "x", "question_count": 3},
		"field":   {"owner": "u1", "kind": "listening", "topic": "x", "question_count": 3, "colour": "red"},
	} {
		rec := e.do(t, http.MethodPost, "/v1/exercises", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	assert.Equal(t, 4, e.mock.CallCount(), "invalid requests never reach the provider")
}

func TestExpiredExercise(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(listeningJSON)})
	h := generate(t, e, exercise.KindListening)

	e.clock.Advance(46 * time.Minute)

	rec := e.do(t, http.MethodGet, "/v1/exercises/"+h.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "exercise_expired", body.Error.Code)
	assert.Contains(t, body.Error.Message, "generate a new one")

	rec = e.do(t, http.MethodPost, "/v1/sessions", map[string]any{"owner": "u1", "exercise_id": h.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionFlow(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(listeningJSON)})
	h := generate(t, e, exercise.KindListening)
	id := startSession(t, e, h.ID, 300)

	rec := e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/0", map[string]any{"choice": 1})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/9", map[string]any{"choice": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_question", decode[apiError](t, rec).Error.Code)

	e.clock.Advance(time.Minute)
	rec = e.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "active", view["state"])
	assert.EqualValues(t, 240, view["remaining_seconds"])

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{
		"answers": []map[string]any{{"index": 1, "choice": 0}, {"index": 2, "choice": 0}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[grading.Result](t, rec)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 67, res.Score)
	assert.Equal(t, "croissants", res.Questions[0].CorrectAnswer)

	again := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{"answers": []any{}})
	require.Equal(t, http.StatusOK, again.Code)
	assert.JSONEq(t, rec.Body.String(), again.Body.String())

	rec = e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/1", map[string]any{"choice": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionAutoSubmit(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(listeningJSON)})
	h := generate(t, e, exercise.KindListening)
	id := startSession(t, e, h.ID, 60)

	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/0", map[string]any{"choice": 1}).Code)
	e.clock.Advance(time.Minute)

	rec := e.do(t, http.MethodGet, "/v1/sessions/"+id, nil)
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "expired", view["state"])
	assert.EqualValues(t, 0, view["remaining_seconds"])

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 33, decode[grading.Result](t, rec).Score)
}

func TestCancelSession(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(listeningJSON)})
	h := generate(t, e, exercise.KindListening)
	id := startSession(t, e, h.ID, 0)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/v1/sessions/"+id+"/cancel", nil).Code)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodPost, "/v1/sessions/"+id+"/cancel", nil).Code)

	rec := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_closed", decode[apiError](t, rec).Error.Code)
}

func TestTranslationWordMinimum(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(translationJSON)})
	h := generate(t, e, exercise.KindSentenceTranslation)
	id := startSession(t, e, h.ID, 0)

	rec := e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/0", map[string]any{"text": "book room"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/0", map[string]any{"text": "I want to book a room"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{
		"answers": []map[string]any{{"index": 1, "text": "  where IS the   station? "}, {"index": 2, "text": "Thanks a lot, friend"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[grading.Result](t, rec)
	assert.True(t, res.Questions[0].IsCorrect, "trailing period is ignored")
	assert.True(t, res.Questions[1].IsCorrect)
	assert.False(t, res.Questions[2].IsCorrect)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 67, res.Score)
}

func TestSpokenAnswersAreAnalysed(t *testing.T) {
	e := newEnv(t, gateway.Config{},
		llm.MockResponse{Content: json.RawMessage(speakingJSON)},
		llm.MockResponse{Content: json.RawMessage(`{"pronunciation": 80, "grammar": 70, "vocabulary": 60, "fluency": 90}`)},
	)
	h := generate(t, e, exercise.KindSpeaking)
	id := startSession(t, e, h.ID, 0)

	rec := e.do(t, http.MethodPut, "/v1/sessions/"+id+"/answers/0", map[string]any{"transcript": "Good evening, I have a booking"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	req := e.mock.Calls()[1]
	assert.Equal(t, "speech-analysis", req.Schema.Name)
	assert.Contains(t, req.Messages[0].Content, "You arrive at a hotel late at night.")
	assert.Contains(t, req.Messages[0].Content, "Greet the receptionist")

	rec = e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[grading.Result](t, rec)
	require.NotNil(t, res.Questions[0].OverallScore)
	assert.Equal(t, 76.0, *res.Questions[0].OverallScore)
	assert.True(t, res.Questions[0].IsCorrect)
	require.NotNil(t, res.Axes)
	assert.Equal(t, 1, res.CorrectCount)
}

func TestSubmitSpokenAnswerTwice(t *testing.T) {
	e := newEnv(t, gateway.Config{},
		llm.MockResponse{Content: json.RawMessage(speakingJSON)},
		llm.MockResponse{Content: json.RawMessage(`{"pronunciation": 80, "grammar": 70, "vocabulary": 60, "fluency": 90}`)},
	)
	h := generate(t, e, exercise.KindSpeaking)
	id := startSession(t, e, h.ID, 0)

	body := map[string]any{
		"answers": []map[string]any{{"index": 0, "transcript": "Good evening, I have a booking"}},
	}
	first := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, 2, e.mock.CallCount())

	// The mock has no responses left; another analysis would fail with 503.
	second := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", body)
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 2, e.mock.CallCount(), "a graded session is not analysed again")
}

func TestLateSpokenSubmitReturnsExpiredResult(t *testing.T) {
	e := newEnv(t, gateway.Config{}, llm.MockResponse{Content: json.RawMessage(speakingJSON)})
	h := generate(t, e, exercise.KindSpeaking)
	id := startSession(t, e, h.ID, 60)

	e.clock.Advance(2 * time.Minute)
	rec := e.do(t, http.MethodPost, "/v1/sessions/"+id+"/submit", map[string]any{
		"answers": []map[string]any{{"index": 0, "transcript": "Good evening"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[grading.Result](t, rec)
	assert.Equal(t, 0, res.CorrectCount)
	assert.False(t, res.Questions[0].Answered)
	assert.Equal(t, 1, e.mock.CallCount(), "late answers are not analysed")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&llm.ErrRateLimit{RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{&llm.ErrTimeout{}, http.StatusGatewayTimeout},
		{&llm.ErrMaxTokensExceeded{}, http.StatusBadGateway},
		{&exercise.InvalidContentError{Message: "x"}, http.StatusBadGateway},
		{exercise.ErrNotFound, http.StatusNotFound},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrDeadlinePassed, http.StatusConflict},
		{session.ErrInvalidStateTransition, http.StatusConflict},
		{errAnswerTooShort, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, c := range cases {
		got, _ := classify(c.err)
		assert.Equal(t, c.want, got, c.err.Error())
	}

	_, body := classify(&llm.ErrRateLimit{RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, 2, body.RetryAfterSeconds)
}
