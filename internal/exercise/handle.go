package exercise

import "time"

// PublicQuestion is a question as shown to the learner: no answer key.
type PublicQuestion struct {
	Index   int          `json:"index"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []string     `json:"options,omitempty"`
}

// Handle is what the orchestrator returns to callers.
type Handle struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Level     string           `json:"level,omitempty"`
	Model     string           `json:"model"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Prompt    PromptPayload    `json:"prompt"`
	Questions []PublicQuestion `json:"questions"`
}

// Summary is a compact listing entry.
type Summary struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	Topic         string    `json:"topic"`
	Model         string    `json:"model"`
	QuestionCount int       `json:"question_count"`
	Graded        bool      `json:"graded"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Public strips the answer key from ex.
func (e *Exercise) Public() *Handle {
	h := &Handle{
		ID:        e.ID,
		Kind:      e.Kind,
		Level:     e.Level,
		Model:     e.ProviderModel,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		Prompt:    e.Prompt,
		Questions: make([]PublicQuestion, len(e.Questions)),
	}
	h.Prompt.SourceSentences = append([]string(nil), e.Prompt.SourceSentences...)
	for i, q := range e.Questions {
		h.Questions[i] = PublicQuestion{
			Index:   i,
			Type:    q.Type,
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		}
	}
	return h
}

// Summarize returns the listing entry for ex.
func (e *Exercise) Summarize() Summary {
	return Summary{
		ID:            e.ID,
		Kind:          e.Kind,
		Title:         e.Prompt.Title,
		Topic:         e.Topic,
		Model:         e.ProviderModel,
		QuestionCount: len(e.Questions),
		Graded:        e.Graded,
		CreatedAt:     e.CreatedAt,
		ExpiresAt:     e.ExpiresAt,
	}
}
