package exercise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/llm"
)

// Generator orchestrates exercise creation: validate params, ask the
// gateway, validate the content, store it and hand back the public view.
type Generator struct {
	gateway ContentGateway
	store   Store
	config  Config
	log     *zap.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(gw ContentGateway, store Store, cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{gateway: gw, store: store, config: cfg, log: log}
}

// generatedOutput is the provider JSON shared by every kind.
type generatedOutput struct {
	Title          string              `json:"title"`
	Instructions   string              `json:"instructions"`
	Transcript     string              `json:"transcript"`
	SpeakingPrompt string              `json:"speaking_prompt"`
	Questions      []generatedQuestion `json:"questions"`
}

type generatedQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Answer       string   `json:"answer"`
	Explanation  string   `json:"explanation"`
}

// GenerateExercise produces, validates and stores one exercise for owner.
// An empty model leaves the choice to the gateway. Nothing is stored when
// any step fails.
func (g *Generator) GenerateExercise(ctx context.Context, owner string, kind Kind, params Params, model llm.Model) (*Handle, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	raw, err := g.gateway.Generate(ctx, kind, params, model)
	if err != nil {
		var inv *llm.ErrInvalidResponse
		if errors.As(err, &inv) {
			return nil, &InvalidContentError{Message: inv.Error(), Err: err}
		}
		return nil, fmt.Errorf("generate %s exercise: %w", kind, err)
	}

	ex, err := parseExercise(raw.Content, kind)
	if err != nil {
		return nil, &InvalidContentError{Message: err.Error(), Err: err}
	}
	ex.Owner = owner
	ex.Topic = params.Topic
	ex.Level = params.Level
	ex.ProviderModel = raw.Model
	if ex.ProviderModel == "" {
		ex.ProviderModel = string(model)
	}

	for _, v := range g.config.Validators {
		if verr := v.Validate(ex, params); verr != nil {
			g.log.Warn("generated exercise rejected",
				zap.String("kind", string(kind)),
				zap.String("model", ex.ProviderModel),
				zap.String("validator", verr.Validator),
				zap.String("reason", verr.Message))
			return nil, &InvalidContentError{Validator: verr.Validator, Message: verr.Message, Err: verr}
		}
	}

	if _, err := g.store.Put(ctx, ex); err != nil {
		return nil, fmt.Errorf("store exercise: %w", err)
	}

	g.log.Info("exercise generated",
		zap.String("exercise_id", ex.ID),
		zap.String("owner", owner),
		zap.String("kind", string(kind)),
		zap.String("model", ex.ProviderModel),
		zap.Int("questions", len(ex.Questions)),
		zap.Time("expires_at", ex.ExpiresAt))

	return ex.Public(), nil
}

// Lookup returns the public view of a live exercise.
func (g *Generator) Lookup(ctx context.Context, id string) (*Handle, error) {
	ex, found, err := g.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get exercise %s: %w", id, err)
	}
	if !found {
		return nil, ErrNotFound
	}
	return ex.Public(), nil
}

// ListRecent returns owner's live exercises, newest first.
func (g *Generator) ListRecent(ctx context.Context, owner string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = g.config.RecentLimit
	}
	exs, err := g.store.ListRecent(ctx, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	out := make([]Summary, len(exs))
	for i, ex := range exs {
		out[i] = ex.Summarize()
	}
	return out, nil
}

func parseExercise(content json.RawMessage, kind Kind) (*Exercise, error) {
	var out generatedOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("parse provider output: %w", err)
	}

	qtype := QuestionTypeFor(kind)
	ex := &Exercise{
		Kind: kind,
		Prompt: PromptPayload{
			Title:        out.Title,
			Instructions: out.Instructions,
		},
		Questions: make([]Question, len(out.Questions)),
	}

	for i, gq := range out.Questions {
		q := Question{
			Type:         qtype,
			Text:         gq.Question,
			CorrectIndex: -1,
			Explanation:  gq.Explanation,
		}
		switch qtype {
		case QuestionMultipleChoice:
			q.Options = gq.Options
			if gq.CorrectIndex != nil {
				q.CorrectIndex = *gq.CorrectIndex
			}
		case QuestionFreeText, QuestionSpoken:
			q.CanonicalAnswer = gq.Answer
		}
		ex.Questions[i] = q
	}

	switch kind {
	case KindListening:
		ex.Prompt.Transcript = out.Transcript
	case KindSpeaking:
		ex.Prompt.SpeakingPrompt = out.SpeakingPrompt
	case KindSentenceTranslation:
		for _, q := range ex.Questions {
			ex.Prompt.SourceSentences = append(ex.Prompt.SourceSentences, q.Text)
		}
	}
	return ex, nil
}
