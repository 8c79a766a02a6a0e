package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/brensch/othello0/executor/agent"
	"github.com/brensch/othello0/executor/inference"
	"github.com/brensch/othello0/executor/mcts"
	"github.com/brensch/othello0/executor/selfplay"
	"github.com/brensch/othello0/game"
)

func main() {
	whiteKind := flag.String("white", "random", "White player (player 1): random, rollout, puct or human")
	blackKind := flag.String("black", "rollout", "Black player (player 2): random, rollout, puct or human")
	sims := flag.Int("sims", 1600, "MCTS simulations per move")
	uct := flag.Float64("uct", mcts.DefaultUCT, "UCB1 exploration constant")
	cpuct := flag.Float64("cpuct", mcts.DefaultCpuct, "PUCT exploration constant")
	modelPath := flag.String("model", "", "Path to the ONNX model for puct players. Empty uses a uniform evaluator")
	cuda := flag.Bool("cuda", true, "Enable CUDA for inference")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	layers := flag.Bool("layers", false, "Also print the encoded network input before every move")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var eval mcts.Evaluator = inference.Uniform{}
	if *modelPath != "" {
		log.Info().Str("model", *modelPath).Msg("loading model")
		onnx, err := inference.NewOnnxEvaluator(*modelPath, inference.OnnxConfig{DisableCUDA: !*cuda, Logger: log})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load model")
		}
		defer onnx.Close()
		eval = onnx
	}

	var seats [2]agent.Agent
	for i, name := range []string{*whiteKind, *blackKind} {
		kind, err := agent.ParseKind(name)
		if err != nil {
			log.Fatal().Err(err).Msg("bad player flag")
		}
		seats[i], err = agent.New(agent.Config{
			Kind:      kind,
			MCTS:      mcts.Config{Iterations: *sims, UCT: float32(*uct), Cpuct: float32(*cpuct)},
			Seed:      *seed + int64(i),
			Evaluator: eval,
			In:        os.Stdin,
			Out:       os.Stdout,
		}, game.NewGameState())
		if err != nil {
			log.Fatal().Err(err).Str("player", name).Msg("failed to create agent")
		}
	}

	log.Info().
		Str("white", *whiteKind).
		Str("black", *blackKind).
		Int("sims", *sims).
		Int64("seed", *seed).
		Msg("starting game")

	samples, result, err := selfplay.PlayGame(ctx, seats[0], seats[1], selfplay.Options{Verbose: true, Layers: *layers, Out: os.Stdout})
	if err != nil {
		log.Fatal().Err(err).Msg("game aborted")
	}
	log.Info().
		Str("winner", result.Winner.String()).
		Int("plies", result.Plies).
		Int("samples", len(samples)).
		Msg("game complete")
}
