// Package store keeps the outcome history in SQLite so the agent can look
// back over previous shots.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store closed")

// Store persists analysed turns.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens (or creates) the database at path. An empty path keeps the
// history in memory for the lifetime of the process.
func Open(path string) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("access sql interface: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := db.AutoMigrate(&OutcomeRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, logger: slog.Default().With("component", "store")}
	s.logger.Info("outcome store ready", "path", dsn)
	return s, nil
}

// Record stores one turn. It implements pipeline.Recorder.
func (s *Store) Record(ctx context.Context, res pipeline.TurnResult) error {
	if s.closed.Load() {
		return ErrClosed
	}
	rec := newRecord(res)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	s.logger.Debug("outcome recorded", "id", rec.ID, "session", rec.SessionID, "turn", rec.Turn, "verdict", rec.Verdict)
	return nil
}

// Recent returns up to n records, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]OutcomeRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var recs []OutcomeRecord
	err := s.db.WithContext(ctx).Order("seq DESC").Limit(n).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	return recs, nil
}

// Session returns the records of one session in turn order.
func (s *Store) Session(ctx context.Context, id uuid.UUID) ([]OutcomeRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var recs []OutcomeRecord
	err := s.db.WithContext(ctx).Where("session_id = ?", id).Order("turn ASC, seq ASC").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return recs, nil
}

// History returns the last n outcomes oldest first, the order an agent
// reads them in when planning the next shot.
func (s *Store) History(ctx context.Context, n int) ([]outcome.MoveOutcome, error) {
	recs, err := s.Recent(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]outcome.MoveOutcome, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r.Outcome()
	}
	return out, nil
}

// Stats summarises stored outcomes.
type Stats struct {
	Total     int            `json:"total"`
	Hits      int            `json:"hits"`
	HitRate   float64        `json:"hit_rate"`
	ByVerdict map[string]int `json:"by_verdict"`

	// MeanAbsError averages |distance_error| over turns with a usable
	// target line.
	MeanAbsError float64 `json:"mean_abs_error"`
}

// Stats aggregates all stored outcomes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if s.closed.Load() {
		return Stats{}, ErrClosed
	}

	var rows []struct {
		Verdict string
		Count   int
		AbsErr  float64
	}
	err := s.db.WithContext(ctx).Model(&OutcomeRecord{}).
		Select("verdict, COUNT(*) AS count, COALESCE(SUM(ABS(distance_error)), 0) AS abs_err").
		Group("verdict").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	st := Stats{ByVerdict: make(map[string]int, len(rows))}
	measured, sumErr := 0, 0.0
	for _, r := range rows {
		st.ByVerdict[r.Verdict] = r.Count
		st.Total += r.Count
		switch outcome.Verdict(r.Verdict) {
		case outcome.VerdictHit:
			st.Hits += r.Count
		case outcome.VerdictNoSignal, outcome.VerdictUnknown:
			continue
		}
		measured += r.Count
		sumErr += r.AbsErr
	}
	if st.Total > 0 {
		st.HitRate = float64(st.Hits) / float64(st.Total)
	}
	if measured > 0 {
		st.MeanAbsError = sumErr / float64(measured)
	}
	return st, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
