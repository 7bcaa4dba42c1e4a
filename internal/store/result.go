package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lingua/internal/exercise"
	"github.com/abhisek/lingua/internal/grading"
	"github.com/abhisek/lingua/internal/session"
)

var _ session.ResultSink = (*Store)(nil)

// SessionResult is a finished session as stored in the history.
type SessionResult struct {
	ID           int
	Sequence     int64
	SessionID    string
	ExerciseID   string
	Owner        string
	Kind         exercise.Kind
	State        string
	StartedAt    time.Time
	FinishedAt   time.Time
	Score        int
	CorrectCount int
	TotalCount   int
	OverallScore *float64
	Result       *grading.Result
}

// KindStats summarizes an owner's results for one exercise kind.
type KindStats struct {
	Kind      exercise.Kind
	Sessions  int
	Expired   int
	AvgScore  float64
	BestScore int
}

// RecordResult appends a graded or expired session. A second record for the
// same session is ignored.
func (s *Store) RecordResult(ctx context.Context, rec session.Record) error {
	if rec.Result == nil {
		return fmt.Errorf("record session %s: missing result", rec.SessionID)
	}
	body, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	seqNum, err := s.seq.Next(ctx)
	if err != nil {
		return err
	}

	var overall sql.NullFloat64
	if rec.Result.OverallScore != nil {
		overall = sql.NullFloat64{Float64: *rec.Result.OverallScore, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_results (sequence, session_id, exercise_id, owner, kind, state,
			started_at, finished_at, score, correct_count, total_count, overall_score, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seqNum, rec.SessionID, rec.ExerciseID, rec.Owner, string(rec.Kind), rec.State.String(),
		toMillis(rec.StartedAt), toMillis(rec.FinishedAt), rec.Result.Score,
		rec.Result.CorrectCount, rec.Result.TotalCount, overall, string(body),
	)
	if err != nil {
		return fmt.Errorf("save session result: %w", err)
	}
	return nil
}

// QueryResults returns finished sessions, most recent first.
func (s *Store) QueryResults(ctx context.Context, opts QueryOpts) ([]SessionResult, error) {
	var (
		where []string
		args  []any
	)
	if opts.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, opts.Owner)
	}
	if !opts.From.IsZero() {
		where = append(where, "finished_at >= ?")
		args = append(args, toMillis(opts.From))
	}
	if !opts.To.IsZero() {
		where = append(where, "finished_at <= ?")
		args = append(args, toMillis(opts.To))
	}

	q := `SELECT id, sequence, session_id, exercise_id, owner, kind, state, started_at, finished_at,
		score, correct_count, total_count, overall_score, result FROM session_results`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY finished_at DESC, sequence DESC"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	defer rows.Close()

	var out []SessionResult
	for rows.Next() {
		var (
			r                 SessionResult
			kind, body        string
			started, finished int64
			overall           sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Sequence, &r.SessionID, &r.ExerciseID, &r.Owner, &kind, &r.State,
			&started, &finished, &r.Score, &r.CorrectCount, &r.TotalCount, &overall, &body); err != nil {
			return nil, fmt.Errorf("scan session result: %w", err)
		}
		r.Kind = exercise.Kind(kind)
		r.StartedAt = fromMillis(started)
		r.FinishedAt = fromMillis(finished)
		if overall.Valid {
			v := overall.Float64
			r.OverallScore = &v
		}
		r.Result = &grading.Result{}
		if err := json.Unmarshal([]byte(body), r.Result); err != nil {
			return nil, fmt.Errorf("decode result of session %s: %w", r.SessionID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ResultStats groups an owner's history by kind. An empty owner covers
// everyone.
func (s *Store) ResultStats(ctx context.Context, owner string) ([]KindStats, error) {
	q := `SELECT kind, COUNT(*), SUM(CASE WHEN state = 'expired' THEN 1 ELSE 0 END),
		AVG(score), MAX(score) FROM session_results`
	var args []any
	if owner != "" {
		q += " WHERE owner = ?"
		args = append(args, owner)
	}
	q += " GROUP BY kind ORDER BY kind"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query result stats: %w", err)
	}
	defer rows.Close()

	var out []KindStats
	for rows.Next() {
		var (
			st   KindStats
			kind string
		)
		if err := rows.Scan(&kind, &st.Sessions, &st.Expired, &st.AvgScore, &st.BestScore); err != nil {
			return nil, fmt.Errorf("scan result stats: %w", err)
		}
		st.Kind = exercise.Kind(kind)
		out = append(out, st)
	}
	return out, rows.Err()
}
