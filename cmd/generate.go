package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/lingua/internal/exercise"
)

var generateCmd = &cobra.Command{
	Use:   "generate <kind>",
	Short: "Generate one exercise and print it",
	Long: "Generate one exercise with the configured LLM and print it. " +
		"Kinds: listening, speaking, sentence_translation, multiple_choice_set.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := exercise.ParseKind(args[0])
		if err != nil {
			return err
		}

		topic, _ := cmd.Flags().GetString("topic")
		level, _ := cmd.Flags().GetString("level")
		count, _ := cmd.Flags().GetInt("questions")
		custom, _ := cmd.Flags().GetString("custom-prompt")
		owner, _ := cmd.Flags().GetString("owner")
		showKey, _ := cmd.Flags().GetBool("answers")
		asJSON, _ := cmd.Flags().GetBool("json")

		params := exercise.Params{
			Topic:         topic,
			Level:         strings.ToUpper(level),
			QuestionCount: count,
			CustomPrompt:  custom,
		}
		if err := params.Validate(); err != nil {
			return err
		}

		st, cfg, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		ctx := cmd.Context()
		gw, err := newGateway(ctx, cfg, st, log)
		if err != nil {
			return err
		}
		exercises, closeExercises, err := newExerciseStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeExercises()

		gen := exercise.NewGenerator(gw, exercises, exercise.DefaultConfig(), log)

		h, err := gen.GenerateExercise(ctx, owner, kind, params, "")
		if err != nil {
			if wait, ok := exercise.RetryAfter(err); ok {
				return fmt.Errorf("%w (retry in %s)", err, wait)
			}
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}

		var ex *exercise.Exercise
		if showKey {
			full, found, err := exercises.Get(ctx, h.ID)
			if err != nil {
				return err
			}
			if found {
				ex = full
			}
		}
		fmt.Println(renderExercise(h, ex))
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringP("topic", "t", "", "Topic of the exercise (required)")
	f.StringP("level", "l", "", "CEFR level (A1-C2, default B1)")
	f.IntP("questions", "q", 5, fmt.Sprintf("Number of questions (%d-%d)", exercise.MinQuestions, exercise.MaxQuestions))
	f.String("custom-prompt", "", "Extra instructions for the generator")
	f.String("owner", "cli", "Owner recorded on the exercise")
	f.Bool("answers", false, "Print the answer key")
	f.Bool("json", false, "Print the learner view as JSON")
	_ = generateCmd.MarkFlagRequired("topic")
}
