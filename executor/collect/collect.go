// Package collect runs many self-play games in parallel and gathers their
// samples into one dataset.
//
// Every worker plays its games sequentially with its own random source,
// its own evaluator and fresh agents per game. A game's samples enter the
// dataset in one piece once the game is over.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brensch/othello0/executor/agent"
	"github.com/brensch/othello0/executor/inference"
	"github.com/brensch/othello0/executor/mcts"
	"github.com/brensch/othello0/executor/selfplay"
	"github.com/brensch/othello0/game"
	"github.com/brensch/othello0/store"
)

const (
	DefaultWorkers        = 20
	DefaultGamesPerWorker = 10
	// seedStride separates the worker random streams.
	seedStride = 1000003
)

// Config configures a collection run.
type Config struct {
	Workers        int
	GamesPerWorker int
	// Seed is the base seed. Worker i uses Seed + i*1000003.
	Seed int64
	// Players are the two agent templates. Their Seed and, for PUCT, a
	// nil Evaluator are filled per game. Each game randomly decides which
	// template plays white.
	Players [2]agent.Config
	// NewEvaluator builds the evaluator owned by one worker. Evaluators
	// implementing io.Closer are closed when the worker exits. Defaults to
	// inference.Uniform.
	NewEvaluator func(workerID int) (mcts.Evaluator, error)
	Logger       zerolog.Logger
	// OnGame is called after each finished game, serialized with logging.
	OnGame func(GameUpdate)
}

func (c Config) withDefaults() (Config, error) {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.GamesPerWorker <= 0 {
		c.GamesPerWorker = DefaultGamesPerWorker
	}
	if c.NewEvaluator == nil {
		c.NewEvaluator = func(int) (mcts.Evaluator, error) { return inference.Uniform{}, nil }
	}
	for i, p := range c.Players {
		if p.Kind == agent.Human {
			return c, fmt.Errorf("player %d: human agents cannot collect data", i)
		}
	}
	return c, nil
}

// Stats summarizes a finished run.
type Stats struct {
	Games    int64
	Failed   int64
	Plies    int64
	Samples  int64
	Duration time.Duration
}

// Run plays Workers*GamesPerWorker games into ds and blocks until every
// worker is done. A worker whose game fails stops; the errors of all
// stopped workers are joined. Cancelling ctx stops the workers without
// error, and the game in flight is discarded.
func Run(ctx context.Context, cfg Config, ds *store.Dataset) (Stats, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return Stats{}, err
	}
	if ds == nil {
		return Stats{}, fmt.Errorf("collect: nil dataset")
	}

	shared := &Shared{Dataset: ds, Progress: newProgress(cfg.Logger, cfg.OnGame)}
	start := time.Now()

	cfg.Logger.Info().
		Int("workers", cfg.Workers).
		Int("games_per_worker", cfg.GamesPerWorker).
		Int("capacity", ds.Cap()).
		Str("white_template", cfg.Players[0].Kind.String()).
		Str("black_template", cfg.Players[1].Kind.String()).
		Msg("collection started")

	errs := make([]error, cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			errs[workerID] = runWorker(ctx, workerID, cfg, shared)
		}(i)
	}
	wg.Wait()

	stats := Stats{
		Games:    shared.Progress.Games(),
		Failed:   shared.Progress.Failed(),
		Plies:    shared.Progress.Plies(),
		Samples:  shared.Progress.Samples(),
		Duration: time.Since(start),
	}
	cfg.Logger.Info().
		Int64("games", stats.Games).
		Int64("failed", stats.Failed).
		Int64("samples", stats.Samples).
		Int("resident", ds.Len()).
		Dur("duration", stats.Duration).
		Msg("collection finished")
	return stats, errors.Join(errs...)
}

func runWorker(ctx context.Context, workerID int, cfg Config, shared *Shared) error {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(workerID)*seedStride))

	eval, err := cfg.NewEvaluator(workerID)
	if err != nil {
		return fmt.Errorf("worker %d: create evaluator: %w", workerID, err)
	}
	if c, ok := eval.(io.Closer); ok {
		defer c.Close()
	}

	for g := 0; g < cfg.GamesPerWorker; g++ {
		if ctx.Err() != nil {
			return nil
		}

		id := shared.Progress.startGame(workerID)
		swapped := rng.Intn(2) == 1
		white, black, err := newPlayers(cfg.Players, swapped, eval, rng)
		if err != nil {
			shared.Progress.failGame(workerID, id, err)
			return fmt.Errorf("worker %d game %d: %w", workerID, id, err)
		}

		samples, result, err := selfplay.PlayGame(ctx, white, black, selfplay.Options{OnStep: shared.Progress.addPly})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			shared.Progress.failGame(workerID, id, err)
			return fmt.Errorf("worker %d game %d: %w", workerID, id, err)
		}

		shared.Dataset.AddGame(samples)
		shared.Progress.finishGame(GameUpdate{
			WorkerID: workerID,
			Game:     id,
			Result:   result,
			Samples:  len(samples),
			Swapped:  swapped,
		})
	}
	return nil
}

// newPlayers builds fresh agents for one game. With swapped set the second
// template plays white.
func newPlayers(templates [2]agent.Config, swapped bool, eval mcts.Evaluator, rng *rand.Rand) (white, black agent.Agent, err error) {
	if swapped {
		templates[0], templates[1] = templates[1], templates[0]
	}
	var seats [2]agent.Agent
	for i, cfg := range templates {
		cfg.Seed = rng.Int63()
		if cfg.Evaluator == nil {
			cfg.Evaluator = eval
		}
		seats[i], err = agent.New(cfg, game.NewGameState())
		if err != nil {
			return nil, nil, err
		}
	}
	return seats[0], seats[1], nil
}
