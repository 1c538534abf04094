package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// Compile-time interface check
var _ pipeline.Recorder = (*Store)(nil)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func turnResult(session uuid.UUID, n int, verdict outcome.Verdict, errPx float64) pipeline.TurnResult {
	return pipeline.TurnResult{
		Session: session,
		Turn:    n,
		Frames:  12,
		Tanks: tanks.Result{
			Player:   vision.Position{X: 100, Y: 500, Confidence: 1},
			Opponent: vision.Position{X: 700, Y: 480, Confidence: 0.8},
		},
		Outcome: outcome.MoveOutcome{
			HitDetected:       verdict == outcome.VerdictHit,
			ImpactLocation:    vision.Position{X: 700 + errPx, Y: 480, Confidence: 0.6},
			DistanceError:     errPx,
			TerrainChangeArea: 900,
			Confidence:        0.6,
			Verdict:           verdict,
			Units:             outcome.UnitsPixels,
		},
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	session := uuid.New()

	require.NoError(t, s.Record(ctx, turnResult(session, 1, outcome.VerdictUndershoot, -120)))
	require.NoError(t, s.Record(ctx, turnResult(session, 2, outcome.VerdictOvershoot, 80)))
	require.NoError(t, s.Record(ctx, turnResult(session, 3, outcome.VerdictHit, 4)))

	recs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 3, recs[0].Turn, "newest first")
	assert.Equal(t, 2, recs[1].Turn)
	assert.Equal(t, session, recs[0].SessionID)
	assert.NotEqual(t, uuid.Nil, recs[0].ID)
	assert.True(t, recs[0].Hit)
	assert.Equal(t, 0.8, recs[0].OpponentConfidence)
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestOutcomeRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	lateral := 12.5
	res := turnResult(uuid.New(), 1, outcome.VerdictNearMiss, 30)
	res.Outcome.LateralOffset = &lateral
	require.NoError(t, s.Record(ctx, res))

	recs, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.Outcome, recs[0].Outcome())
}

func TestHistoryIsOldestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	session := uuid.New()
	for i, e := range []float64{-200, -90, 40, 150, -10, 60} {
		require.NoError(t, s.Record(ctx, turnResult(session, i+1, outcome.VerdictUndershoot, e)))
	}

	hist, err := s.History(ctx, 5)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	got := make([]float64, len(hist))
	for i, o := range hist {
		got[i] = o.DistanceError
	}
	assert.Equal(t, []float64{-90, 40, 150, -10, 60}, got)
}

func TestSession(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.Record(ctx, turnResult(a, 2, outcome.VerdictHit, 0)))
	require.NoError(t, s.Record(ctx, turnResult(b, 1, outcome.VerdictHit, 0)))
	require.NoError(t, s.Record(ctx, turnResult(a, 1, outcome.VerdictOvershoot, 70)))

	recs, err := s.Session(ctx, a)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].Turn)
	assert.Equal(t, 2, recs[1].Turn)
}

func TestStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	session := uuid.New()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Zero(t, st.HitRate)

	for _, r := range []pipeline.TurnResult{
		turnResult(session, 1, outcome.VerdictHit, 10),
		turnResult(session, 2, outcome.VerdictOvershoot, 90),
		turnResult(session, 3, outcome.VerdictUndershoot, -110),
		turnResult(session, 4, outcome.VerdictNoSignal, 0),
	} {
		require.NoError(t, s.Record(ctx, r))
	}

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Hits)
	assert.InDelta(t, 0.25, st.HitRate, 1e-9)
	assert.Equal(t, map[string]int{"hit": 1, "overshoot": 1, "undershoot": 1, "no_signal": 1}, st.ByVerdict)
	// No-signal turns carry no distance and are left out of the mean.
	assert.InDelta(t, 70, st.MeanAbsError, 1e-9)
}

func TestInMemory(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, turnResult(uuid.New(), 1, outcome.VerdictHit, 0)))
	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestClosed(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	ctx := context.Background()
	assert.ErrorIs(t, s.Record(ctx, pipeline.TurnResult{}), ErrClosed)
	_, err = s.Recent(ctx, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseWhileReading(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// Reads racing Close may fail; they must not race on state.
				_, _ = s.Recent(ctx, 5)
				_, _ = s.Stats(ctx)
			}
		}()
	}
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()

	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}
