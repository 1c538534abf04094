package pipeline

import (
	"context"

	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
	"golang.org/x/sync/errgroup"
)

// Job is a recorded pre/post screenshot pair.
type Job struct {
	Name string
	Pre  vision.Frame
	Post vision.Frame
}

// BatchResult is the analysis of one Job. Err is set for pairs that could
// not be compared, such as mismatched dimensions.
type BatchResult struct {
	Name    string              `json:"name"`
	Tanks   tanks.Result        `json:"tanks"`
	Outcome outcome.MoveOutcome `json:"outcome"`
	Err     error               `json:"-"`
}

// AnalyzeBatch analyses independent pairs with at most parallelism workers.
// Results keep the order of jobs. Only cancellation aborts the batch;
// per-pair failures are reported in BatchResult.Err.
func AnalyzeBatch(ctx context.Context, loc *tanks.Locator, an *outcome.Analyzer, jobs []Job, parallelism int) ([]BatchResult, error) {
	results := make([]BatchResult, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = analyzePair(loc, an, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func analyzePair(loc *tanks.Locator, an *outcome.Analyzer, job Job) BatchResult {
	res := BatchResult{Name: job.Name}
	located, err := loc.Locate(job.Pre)
	if err != nil {
		res.Err = err
		return res
	}
	res.Tanks = located
	res.Outcome, res.Err = an.AnalyzeSized(job.Pre, job.Post, located.Player, located.Opponent, located.OpponentArea)
	return res
}
