package cmd

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/store"
	"github.com/abhisek/lingua/internal/ui/theme"
)

const timeLayout = "2006-01-02 15:04:05"

// renderExercise prints the learner view of h. When ex is non-nil the answer
// key is shown under each question.
func renderExercise(h *exercise.Handle, ex *exercise.Exercise) string {
	var b strings.Builder

	title := h.Prompt.Title
	if title == "" {
		title = string(h.Kind)
	}
	b.WriteString(theme.Title.Render(title) + "\n")
	b.WriteString(theme.Subtitle.Render(fmt.Sprintf("%s · %s · %s · expires %s",
		h.Kind, orDash(h.Level), h.Model, h.ExpiresAt.Local().Format(timeLayout))) + "\n")
	b.WriteString(theme.Hint.Render("id "+h.ID) + "\n")

	p := h.Prompt
	if p.Instructions != "" {
		b.WriteString("\n" + theme.Body.Render(p.Instructions) + "\n")
	}
	if p.Transcript != "" {
		b.WriteString("\n" + theme.Label.Render("Transcript") + "\n")
		b.WriteString(theme.Card.Render(p.Transcript) + "\n")
	}
	if p.SpeakingPrompt != "" {
		b.WriteString("\n" + theme.Label.Render("Speak about") + "\n")
		b.WriteString(theme.Card.Render(p.SpeakingPrompt) + "\n")
	}
	if len(p.SourceSentences) > 0 {
		b.WriteString("\n" + theme.Label.Render("Translate") + "\n")
		for i, s := range p.SourceSentences {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
		}
	}

	b.WriteString("\n")
	for _, q := range h.Questions {
		b.WriteString(theme.Body.Bold(true).Render(fmt.Sprintf("%d. %s", q.Index+1, q.Text)) + "\n")
		for j, opt := range q.Options {
			line := fmt.Sprintf("   %c) %s", 'a'+j, opt)
			if ex != nil && ex.Questions[q.Index].CorrectIndex == j {
				line = theme.Correct.Render(line)
			}
			b.WriteString(line + "\n")
		}
		if ex != nil {
			key := ex.Questions[q.Index]
			if key.CanonicalAnswer != "" {
				b.WriteString(theme.Correct.Render("   → "+key.CanonicalAnswer) + "\n")
			}
			if key.Explanation != "" {
				b.WriteString(theme.Hint.Render("   "+key.Explanation) + "\n")
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderResults(results []store.SessionResult) string {
	rows := []string{
		theme.Label.Render(fmt.Sprintf("%-19s  %-20s  %-9s  %7s  %6s  %s",
			"Finished", "Kind", "State", "Correct", "Score", "Session")),
		theme.Subtitle.Render(strings.Repeat("─", 101)),
	}
	pass := int(grading.SpokenPassMark)
	for _, r := range results {
		state := r.State
		if state == "expired" {
			state = theme.Expired.Render(fmt.Sprintf("%-9s", state))
		} else {
			state = fmt.Sprintf("%-9s", state)
		}
		score := theme.Score(r.Score, pass).Render(fmt.Sprintf("%6d", r.Score))
		rows = append(rows, fmt.Sprintf("%-19s  %-20s  %s  %3d/%-3d  %s  %s",
			r.FinishedAt.Local().Format(timeLayout), r.Kind, state,
			r.CorrectCount, r.TotalCount, score, r.SessionID))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderStats(stats []store.KindStats) string {
	rows := []string{
		theme.Label.Render(fmt.Sprintf("%-20s  %8s  %8s  %8s  %8s", "Kind", "Sessions", "Expired", "Average", "Best")),
		theme.Subtitle.Render(strings.Repeat("─", 61)),
	}
	for _, st := range stats {
		rows = append(rows, fmt.Sprintf("%-20s  %8d  %8d  %8.1f  %8d",
			st.Kind, st.Sessions, st.Expired, st.AvgScore, st.BestScore))
	}
	return theme.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
