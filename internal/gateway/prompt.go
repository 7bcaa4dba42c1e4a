package gateway

import (
	"fmt"
	"strings"

	"github.com/abhisek/lingua/internal/exercise"
)

const basePrompt = `You are a language teacher writing practice exercises for adult learners.

Rules:
- Write natural, idiomatic sentences about the given topic at the given CEFR level.
- Produce exactly the requested number of questions.
- Keep every question under 500 characters and every explanation under 1000 characters.
- Explanations should say briefly why the answer is right, in plain language.
- Do not number the questions or options yourself.`

var kindPrompts = map[exercise.Kind]string{
	exercise.KindListening: `Exercise: listening comprehension.
- Write a transcript of a short spoken passage (dialogue or monologue, 80 to 200 words) in "transcript".
- Each question checks understanding of the transcript and has 3 or 4 options in "options".
- Exactly one option is correct; its zero-based position goes in "correct_index".
- Distractors must be plausible but clearly wrong to someone who understood the passage.`,

	exercise.KindSpeaking: `Exercise: speaking practice.
- Write the situation the learner will respond to in "speaking_prompt".
- Each question is one spoken task the learner answers aloud, for example "Describe your last holiday".
- Put a short model answer in "answer".`,

	exercise.KindSentenceTranslation: `Exercise: sentence translation.
- Each question is one source sentence the learner translates.
- Put the single best translation in "answer". Keep it at least three words long.
- Avoid sentences with several equally good translations.`,

	exercise.KindMultipleChoiceSet: `Exercise: multiple choice vocabulary and grammar.
- Each question tests one word, phrase or grammar point.
- Give 3 or 4 options in "options", all distinct.
- Exactly one option is correct; its zero-based position goes in "correct_index".`,
}

func systemPrompt(kind exercise.Kind) string {
	return basePrompt + "\n\n" + kindPrompts[kind]
}

// buildUserMessage describes the requested exercise.
func buildUserMessage(kind exercise.Kind, params exercise.Params) string {
	level := params.Level
	if level == "" {
		level = "B1"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Kind: %s\n", kind)
	fmt.Fprintf(&b, "Topic: %s\n", params.Topic)
	fmt.Fprintf(&b, "Level: %s\n", level)
	fmt.Fprintf(&b, "Questions: %d\n", params.QuestionCount)

	if p := strings.TrimSpace(params.CustomPrompt); p != "" {
		b.WriteString("\nAdditional instructions from the learner:\n")
		b.WriteString(p)
	}
	return b.String()
}

const speechPrompt = `You assess spoken answers from language learners.

You receive the speaking task and a transcript of what the learner said.
Score four axes from 0 to 100:
- pronunciation: judged from transcription artefacts such as misheard words.
- grammar: correctness of the sentences.
- vocabulary: range and fit of the words used.
- fluency: coherence and how completely the task was addressed.
An empty or off-topic answer scores 0 on every axis.`

// SpeechInput is one spoken answer to analyse.
type SpeechInput struct {
	Prompt     string
	Task       string
	Transcript string
	Level      string
}

func buildSpeechMessage(in SpeechInput) string {
	var b strings.Builder
	if in.Level != "" {
		fmt.Fprintf(&b, "Level: %s\n", in.Level)
	}
	if in.Prompt != "" {
		fmt.Fprintf(&b, "Situation: %s\n", in.Prompt)
	}
	fmt.Fprintf(&b, "Task: %s\n", in.Task)
	fmt.Fprintf(&b, "\nTranscript:\n%s", in.Transcript)
	return b.String()
}
