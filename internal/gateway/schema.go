package gateway

import (
	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/llm"
)

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	req := make([]any, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             req,
		"additionalProperties": false,
	}
}

var choiceQuestion = object(map[string]any{
	"question": stringProp("The question shown to the learner"),
	"options": map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string"},
		"minItems":    2,
		"maxItems":    6,
		"description": "Answer options in display order",
	},
	"correct_index": map[string]any{
		"type":        "integer",
		"minimum":     0,
		"description": "Zero-based index of the correct option",
	},
	"explanation": stringProp("Why the correct option is right"),
}, "question", "options", "correct_index", "explanation")

var textQuestion = object(map[string]any{
	"question":    stringProp("The sentence or task shown to the learner"),
	"answer":      stringProp("The reference answer"),
	"explanation": stringProp("Notes on the reference answer"),
}, "question", "answer", "explanation")

func questions(item map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": item, "minItems": 1}
}

var schemas = map[exercise.Kind]*llm.Schema{
	exercise.KindListening: {
		Name:        "listening-exercise",
		Description: "A listening transcript with comprehension questions",
		Definition: object(map[string]any{
			"title":        stringProp("Short exercise title"),
			"instructions": stringProp("One sentence telling the learner what to do"),
			"transcript":   stringProp("The passage the learner listens to"),
			"questions":    questions(choiceQuestion),
		}, "title", "instructions", "transcript", "questions"),
	},
	exercise.KindSpeaking: {
		Name:        "speaking-exercise",
		Description: "A speaking situation with spoken tasks",
		Definition: object(map[string]any{
			"title":           stringProp("Short exercise title"),
			"instructions":    stringProp("One sentence telling the learner what to do"),
			"speaking_prompt": stringProp("The situation the learner responds to"),
			"questions":       questions(textQuestion),
		}, "title", "instructions", "speaking_prompt", "questions"),
	},
	exercise.KindSentenceTranslation: {
		Name:        "translation-exercise",
		Description: "Sentences to translate with reference translations",
		Definition: object(map[string]any{
			"title":        stringProp("Short exercise title"),
			"instructions": stringProp("One sentence telling the learner what to do"),
			"questions":    questions(textQuestion),
		}, "title", "instructions", "questions"),
	},
	exercise.KindMultipleChoiceSet: {
		Name:        "multiple-choice-exercise",
		Description: "A set of multiple choice questions",
		Definition: object(map[string]any{
			"title":        stringProp("Short exercise title"),
			"instructions": stringProp("One sentence telling the learner what to do"),
			"questions":    questions(choiceQuestion),
		}, "title", "instructions", "questions"),
	},
}

func schemaFor(kind exercise.Kind) *llm.Schema {
	return schemas[kind]
}

func axis(desc string) map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 100, "description": desc}
}

// SpeechSchema is the response shape for speech analysis.
var SpeechSchema = &llm.Schema{
	Name:        "speech-analysis",
	Description: "Scores for one spoken answer",
	Definition: object(map[string]any{
		"pronunciation": axis("Pronunciation score"),
		"grammar":       axis("Grammar score"),
		"vocabulary":    axis("Vocabulary score"),
		"fluency":       axis("Fluency score"),
	}, "pronunciation", "grammar", "vocabulary", "fluency"),
}
