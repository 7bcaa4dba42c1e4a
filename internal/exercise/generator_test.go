package exercise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abhisek/lingua/internal/llm"
)

type fakeGateway struct {
	content json.RawMessage
	err     error
	calls   int
	kind    Kind
	model   llm.Model
}

func (f *fakeGateway) Generate(_ context.Context, kind Kind, _ Params, model llm.Model) (*RawContent, error) {
	f.calls++
	f.kind = kind
	f.model = model
	if f.err != nil {
		return nil, f.err
	}
	return &RawContent{Content: f.content, Model: "gpt-4o-mini"}, nil
}

// mapStore is a minimal Store; the real backends are tested in exstore.
type mapStore struct {
	mu    sync.Mutex
	items map[string]*Exercise
	seq   int
}

func newMapStore() *mapStore { return &mapStore{items: map[string]*Exercise{}} }

func (s *mapStore) Put(_ context.Context, ex *Exercise) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ex.ID = fmt.Sprintf("ex-%d", s.seq)
	ex.CreatedAt = time.Date(2026, 1, 1, 10, 0, s.seq, 0, time.UTC)
	ex.ExpiresAt = ex.CreatedAt.Add(45 * time.Minute)
	s.items[ex.ID] = ex.Clone()
	return ex.ID, nil
}

func (s *mapStore) Get(_ context.Context, id string) (*Exercise, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.items[id]
	if !ok {
		return nil, false, nil
	}
	return ex.Clone(), true, nil
}

func (s *mapStore) MarkGraded(_ context.Context, id string) error { return nil }

func (s *mapStore) ListRecent(_ context.Context, owner string, limit int) ([]*Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Exercise
	for _, ex := range s.items {
		if ex.Owner == owner {
			out = append(out, ex.Clone())
		}
	}
	return out, nil
}

func (s *mapStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }

func listeningJSON() json.RawMessage {
	return json.RawMessage(`{
		"title": "Buying fruit",
		"transcript": "A: How much are the mangoes? B: Twenty thousand dong a kilo.",
		"questions": [
			{"question": "What is being bought?", "options": ["mangoes", "rice", "fish"], "correct_index": 0, "explanation": "A asks about mangoes."},
			{"question": "What is the unit?", "options": ["a bag", "a kilo", "a box"], "correct_index": 1, "explanation": "Twenty thousand dong a kilo."},
			{"question": "What currency is used?", "options": ["dollars", "euros", "dong"], "correct_index": 2, "explanation": "The price is in dong."}
		]
	}`)
}

func translationJSON() json.RawMessage {
	return json.RawMessage(`{
		"title": "Daily routine",
		"instructions": "Translate into English.",
		"questions": [
			{"question": "Tôi dậy lúc sáu giờ.", "answer": "I get up at six o'clock.", "explanation": ""},
			{"question": "Cô ấy đi làm bằng xe buýt.", "answer": "She goes to work by bus.", "explanation": ""},
			{"question": "Chúng tôi ăn tối cùng nhau.", "answer": "We have dinner together.", "explanation": ""}
		]
	}`)
}

func params3() Params {
	return Params{Topic: "shopping", Level: "A2", QuestionCount: 3}
}

func TestGenerateExercise_Listening(t *testing.T) {
	gw := &fakeGateway{content: listeningJSON()}
	store := newMapStore()
	gen := NewGenerator(gw, store, DefaultConfig(), zaptest.NewLogger(t))

	h, err := gen.GenerateExercise(context.Background(), "learner-1", KindListening, params3(), "")
	require.NoError(t, err)

	assert.Empty(t, gw.model, "an empty model is left to the gateway")
	assert.Equal(t, KindListening, h.Kind)
	assert.Equal(t, "gpt-4o-mini", h.Model)
	assert.NotEmpty(t, h.Prompt.Transcript)
	require.Len(t, h.Questions, 3)
	assert.Equal(t, []string{"a bag", "a kilo", "a box"}, h.Questions[1].Options)

	stored, found, err := store.Get(context.Background(), h.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "learner-1", stored.Owner)
	assert.Equal(t, 1, stored.Questions[1].CorrectIndex)
	assert.Equal(t, stored.ExpiresAt, h.ExpiresAt)
}

func TestGenerateExercise_PublicViewHasNoAnswerKey(t *testing.T) {
	gen := NewGenerator(&fakeGateway{content: translationJSON()}, newMapStore(), DefaultConfig(), nil)

	h, err := gen.GenerateExercise(context.Background(), "learner-1", KindSentenceTranslation, params3(), llm.ModelGPT4oMini)
	require.NoError(t, err)

	b, err := json.Marshal(h)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "I get up at six")
	assert.NotContains(t, string(b), "correct_index")
	assert.Len(t, h.Prompt.SourceSentences, 3)
	assert.Equal(t, QuestionFreeText, h.Questions[0].Type)
}

func TestGenerateExercise_MissingCorrectIndexRejected(t *testing.T) {
	content := json.RawMessage(`{
		"title": "Colours",
		"questions": [
			{"question": "Màu đỏ?", "options": ["red", "blue"], "correct_index": 0},
			{"question": "Màu xanh lá?", "options": ["green", "yellow"]},
			{"question": "Màu trắng?", "options": ["white", "black"], "correct_index": 0}
		]
	}`)
	store := newMapStore()
	gen := NewGenerator(&fakeGateway{content: content}, store, DefaultConfig(), nil)

	_, err := gen.GenerateExercise(context.Background(), "learner-1", KindMultipleChoiceSet, params3(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGeneratedContent)

	var ice *InvalidContentError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "answer-key", ice.Validator)
	assert.Empty(t, store.items, "rejected content must not be stored")
}

func TestGenerateExercise_WrongQuestionCount(t *testing.T) {
	store := newMapStore()
	gen := NewGenerator(&fakeGateway{content: listeningJSON()}, store, DefaultConfig(), nil)

	p := params3()
	p.QuestionCount = 5
	_, err := gen.GenerateExercise(context.Background(), "learner-1", KindListening, p, "")

	var ice *InvalidContentError
	require.ErrorAs(t, err, &ice)
	assert.Equal(t, "question-count", ice.Validator)
	assert.Empty(t, store.items)
}

func TestGenerateExercise_ProviderErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "rate limit propagates with delay",
			err:  &llm.ErrRateLimit{RetryAfter: 30 * time.Second},
			check: func(t *testing.T, err error) {
				d, ok := RetryAfter(err)
				require.True(t, ok)
				assert.Equal(t, 30*time.Second, d)
				assert.Equal(t, "The exercise service is busy. Please try again in 30 seconds.", UserMessage(err))
			},
		},
		{
			name: "schema violation is invalid content",
			err:  &llm.ErrInvalidResponse{Err: errors.New("missing correct_index")},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidGeneratedContent)
				var inv *llm.ErrInvalidResponse
				assert.ErrorAs(t, err, &inv)
			},
		},
		{
			name: "timeout",
			err:  &llm.ErrTimeout{After: 30 * time.Second},
			check: func(t *testing.T, err error) {
				var timeout *llm.ErrTimeout
				assert.ErrorAs(t, err, &timeout)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMapStore()
			gen := NewGenerator(&fakeGateway{err: tt.err}, store, DefaultConfig(), nil)

			_, err := gen.GenerateExercise(context.Background(), "learner-1", KindListening, params3(), "")
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, store.items)
		})
	}
}

func TestGenerateExercise_InvalidParamsSkipGateway(t *testing.T) {
	gw := &fakeGateway{content: listeningJSON()}
	gen := NewGenerator(gw, newMapStore(), DefaultConfig(), nil)

	_, err := gen.GenerateExercise(context.Background(), "learner-1", KindListening, Params{Topic: "x", QuestionCount: 2}, "")
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = gen.GenerateExercise(context.Background(), "learner-1", Kind("essay"), params3(), "")
	assert.ErrorIs(t, err, ErrInvalidParams)

	assert.Zero(t, gw.calls)
}

func TestGenerator_LookupAndList(t *testing.T) {
	gen := NewGenerator(&fakeGateway{content: listeningJSON()}, newMapStore(), DefaultConfig(), nil)

	h, err := gen.GenerateExercise(context.Background(), "learner-1", KindListening, params3(), "")
	require.NoError(t, err)

	got, err := gen.Lookup(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, got.ID)

	_, err = gen.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := gen.ListRecent(context.Background(), "learner-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Buying fruit", list[0].Title)
	assert.Equal(t, "shopping", list[0].Topic)
	assert.Equal(t, 3, list[0].QuestionCount)
}
