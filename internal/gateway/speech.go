package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/llm"
)

// AnalyzeSpeech scores a transcribed spoken answer on the four speaking
// axes. A blank transcript scores zero without calling the provider.
func (g *Gateway) AnalyzeSpeech(ctx context.Context, in SpeechInput, model llm.Model) (grading.AxisScores, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return grading.AxisScores{}, nil
	}

	p, model, err := g.provider(model)
	if err != nil {
		return grading.AxisScores{}, err
	}

	req := llm.Request{
		System:      speechPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildSpeechMessage(in)}},
		Schema:      SpeechSchema,
		MaxTokens:   512,
		Temperature: 0,
	}

	resp, err := g.call(llm.WithPurpose(ctx, "speech-analysis"), p, req)
	if err != nil {
		g.log.Warn("speech analysis failed", zap.String("model", string(model)), zap.Error(err))
		return grading.AxisScores{}, err
	}

	var axes grading.AxisScores
	if err := json.Unmarshal(resp.Content, &axes); err != nil {
		return grading.AxisScores{}, &llm.ErrInvalidResponse{Content: resp.Content, Err: err}
	}
	return axes.Clamp(), nil
}
