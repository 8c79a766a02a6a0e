package collect

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/brensch/othello0/executor/selfplay"
	"github.com/brensch/othello0/store"
)

// GameUpdate is published once per finished game.
type GameUpdate struct {
	WorkerID int
	// Game is the collection-wide game number, starting at 1.
	Game    int64
	Result  selfplay.GameResult
	Samples int
	// Swapped is set when the second player config took the white seat.
	Swapped bool
}

// Progress serializes console reporting across workers and keeps the run
// counters. The counters may be read at any time.
type Progress struct {
	mu     sync.Mutex
	log    zerolog.Logger
	onGame func(GameUpdate)
	nextID int64

	games   atomic.Int64
	plies   atomic.Int64
	samples atomic.Int64
	failed  atomic.Int64
}

func newProgress(log zerolog.Logger, onGame func(GameUpdate)) *Progress {
	return &Progress{log: log, onGame: onGame, nextID: 1}
}

// startGame assigns the next game number and reports it.
func (p *Progress) startGame(workerID int) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.log.Info().Int("worker_id", workerID).Msgf("Starting game %d", id)
	return id
}

func (p *Progress) addPly() { p.plies.Add(1) }

func (p *Progress) finishGame(u GameUpdate) {
	p.games.Add(1)
	p.samples.Add(int64(u.Samples))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info().
		Int("worker_id", u.WorkerID).
		Int64("game", u.Game).
		Str("winner", u.Result.Winner.String()).
		Int("white", u.Result.White).
		Int("black", u.Result.Black).
		Int("plies", u.Result.Plies).
		Bool("swapped", u.Swapped).
		Msg("game finished")
	if p.onGame != nil {
		p.onGame(u)
	}
}

func (p *Progress) failGame(workerID int, game int64, err error) {
	p.failed.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Error().Err(err).Int("worker_id", workerID).Int64("game", game).Msg("game aborted")
}

func (p *Progress) Games() int64   { return p.games.Load() }
func (p *Progress) Plies() int64   { return p.plies.Load() }
func (p *Progress) Samples() int64 { return p.samples.Load() }
func (p *Progress) Failed() int64  { return p.failed.Load() }

// Shared is the state handed to every worker: the dataset that receives
// finished games and the progress reporter.
type Shared struct {
	Dataset  *store.Dataset
	Progress *Progress
}
