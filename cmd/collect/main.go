package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/brensch/othello0/executor/agent"
	"github.com/brensch/othello0/executor/collect"
	"github.com/brensch/othello0/executor/inference"
	"github.com/brensch/othello0/executor/mcts"
	"github.com/brensch/othello0/store"
)

func main() {
	outDir := flag.String("out-dir", "datasets/iter_0", "Output directory for board.bin, policy.bin and value.bin")
	workers := flag.Int("workers", collect.DefaultWorkers, "Number of self-play workers")
	gamesPerWorker := flag.Int("games-per-worker", collect.DefaultGamesPerWorker, "Games played by each worker")
	capacity := flag.Int("capacity", 2000000, "Dataset ring buffer capacity in samples")
	sims := flag.Int("sims", mcts.DefaultIterations, "MCTS simulations per move")
	cpuct := flag.Float64("cpuct", mcts.DefaultCpuct, "PUCT exploration constant")
	uct := flag.Float64("uct", mcts.DefaultUCT, "UCB1 exploration constant for rollout agents")
	whiteKind := flag.String("white", "puct", "First player template: random, rollout or puct")
	blackKind := flag.String("black", "puct", "Second player template: random, rollout or puct")
	modelPath := flag.String("model", "", "Path to the ONNX model. Empty uses a uniform evaluator")
	cuda := flag.Bool("cuda", true, "Enable CUDA for inference")
	seed := flag.Int64("seed", 0, "Base random seed")
	parquetDir := flag.String("parquet", "", "If set, also archive the dataset as a parquet batch in this directory")
	useTUI := flag.Bool("tui", false, "Show a live progress view instead of log lines")
	logFile := flag.String("log-file", "collect.log", "Log destination while the TUI is running")
	statsEvery := flag.Duration("stats-every", 10*time.Second, "Interval between throughput log lines")
	flag.Parse()

	var logOut io.Writer = zerolog.ConsoleWriter{Out: os.Stdout}
	if *useTUI {
		// Keep log lines out of the TUI.
		f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			l := zerolog.New(os.Stderr)
			l.Fatal().Err(err).Msg("open log file")
		}
		defer f.Close()
		logOut = zerolog.ConsoleWriter{Out: f, NoColor: true}
	}
	log := zerolog.New(logOut).With().Timestamp().Logger()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	players := [2]agent.Config{}
	for i, name := range []string{*whiteKind, *blackKind} {
		kind, err := agent.ParseKind(name)
		if err != nil {
			log.Fatal().Err(err).Msg("bad player flag")
		}
		players[i] = agent.Config{
			Kind: kind,
			MCTS: mcts.Config{Iterations: *sims, Cpuct: float32(*cpuct), UCT: float32(*uct)},
		}
	}

	newEvaluator := func(int) (mcts.Evaluator, error) { return inference.Uniform{}, nil }
	if *modelPath != "" {
		newEvaluator = func(workerID int) (mcts.Evaluator, error) {
			return inference.NewOnnxEvaluator(*modelPath, inference.OnnxConfig{
				DisableCUDA: !*cuda,
				Logger:      log.With().Int("worker", workerID).Logger(),
			})
		}
		log.Info().Str("model", *modelPath).Bool("cuda", *cuda).Msg("using onnx evaluator")
	} else {
		log.Warn().Msg("no model given; PUCT agents use a uniform evaluator")
	}

	ds, err := store.NewDataset(*capacity)
	if err != nil {
		log.Fatal().Err(err).Msg("create dataset")
	}

	var counters inference.Counters
	cfg := collect.Config{
		Workers:        *workers,
		GamesPerWorker: *gamesPerWorker,
		Seed:           *seed,
		Players:        players,
		NewEvaluator: func(workerID int) (mcts.Evaluator, error) {
			e, err := newEvaluator(workerID)
			if err != nil {
				return nil, err
			}
			return inference.NewCounted(e, &counters), nil
		},
		Logger: log,
	}

	var stats collect.Stats
	var runErr error
	done := make(chan struct{})
	if *useTUI {
		updates := make(chan collect.GameUpdate, *workers)
		cfg.OnGame = func(u collect.GameUpdate) {
			// Avoid blocking workers if the UI loop stops consuming.
			select {
			case updates <- u:
			default:
			}
		}
		go func() {
			stats, runErr = collect.Run(ctx, cfg, ds)
			close(done)
		}()

		p := tea.NewProgram(initialModel(updates, done, ds, &counters, (*workers)*(*gamesPerWorker)), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Error().Err(err).Msg("tui failed")
		}
		// Quitting the TUI early stops the workers between games.
		cancel()
		<-done
	} else {
		go func() {
			stats, runErr = collect.Run(ctx, cfg, ds)
			close(done)
		}()
		logStatsUntil(done, log, ds, &counters, *statsEvery)
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("some workers stopped early")
	}

	// One copy of the ring serves both writers.
	samples := ds.Samples()
	if err := store.WriteDump(*outDir, samples); err != nil {
		log.Fatal().Err(err).Msg("dump dataset")
	}
	log.Info().
		Str("dir", *outDir).
		Int("samples", len(samples)).
		Int64("games", stats.Games).
		Msg("dataset written")

	if *parquetDir != "" {
		outPath, err := store.WriteArchiveBatchParquet(*parquetDir, samples)
		if err != nil {
			log.Fatal().Err(err).Msg("write parquet archive")
		}
		log.Info().Str("path", outPath).Msg("parquet archive written")
	}
}

func logStatsUntil(done <-chan struct{}, log zerolog.Logger, ds *store.Dataset, counters *inference.Counters, every time.Duration) {
	if every <= 0 {
		<-done
		return
	}
	startTime := time.Now()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			st := counters.Stats()
			duration := time.Since(startTime)
			log.Info().
				Int("resident", ds.Len()).
				Int64("added", ds.Added()).
				Float64("samples_per_sec", float64(ds.Added())/duration.Seconds()).
				Float64("inf_per_sec", float64(st.TotalCalls)/duration.Seconds()).
				Float64("inf_avg_ms", st.AvgRunMs).
				Msg("stats")
		}
	}
}
