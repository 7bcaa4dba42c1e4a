package exercise

// Config controls the Generator.
type Config struct {
	// Validators run in order; the first failure rejects the exercise.
	Validators []Validator

	// RecentLimit caps ListRecent when the caller passes limit <= 0.
	RecentLimit int
}

// DefaultConfig returns the standard validator chain.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&StructuralValidator{},
			&QuestionCountValidator{},
			&AnswerKeyValidator{},
		},
		RecentLimit: 25,
	}
}
