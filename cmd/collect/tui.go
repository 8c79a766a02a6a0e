package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/othello0/executor/collect"
	"github.com/brensch/othello0/executor/inference"
	"github.com/brensch/othello0/store"
)

type doneMsg struct{}

type model struct {
	gamesPlayed   int
	totalGames    int
	totalExamples int
	winsWhite     int
	winsBlack     int
	ties          int
	inferences    int64
	startTime     time.Time
	recentGames   []string
	updates       chan collect.GameUpdate
	done          chan struct{}
	dataset       *store.Dataset
	counters      *inference.Counters
}

func initialModel(updates chan collect.GameUpdate, done chan struct{}, ds *store.Dataset, counters *inference.Counters, totalGames int) model {
	return model{
		startTime:  time.Now(),
		updates:    updates,
		done:       done,
		dataset:    ds,
		counters:   counters,
		totalGames: totalGames,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), waitForDone(m.done), tickCmd())
}

func waitForUpdate(updates chan collect.GameUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func waitForDone(done chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return doneMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.inferences = m.counters.Stats().TotalCalls
		return m, tickCmd()
	case doneMsg:
		return m, tea.Quit
	case collect.GameUpdate:
		m.gamesPlayed++
		m.totalExamples += msg.Samples
		switch msg.Result.Player() {
		case 1:
			m.winsWhite++
		case 2:
			m.winsBlack++
		default:
			m.ties++
		}
		logMsg := fmt.Sprintf("Worker %d: Game %d %s (%d-%d), Plies %d", msg.WorkerID, msg.Game, msg.Result, msg.Result.White, msg.Result.Black, msg.Result.Plies)
		m.recentGames = append([]string{logMsg}, m.recentGames...)
		if len(m.recentGames) > 10 {
			m.recentGames = m.recentGames[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	gamesPerSec := float64(m.gamesPlayed) / duration.Seconds()
	examplesPerSec := float64(m.totalExamples) / duration.Seconds()
	inferencesPerSec := float64(m.inferences) / duration.Seconds()
	if duration.Seconds() < 1 {
		gamesPerSec = 0
		examplesPerSec = 0
		inferencesPerSec = 0
	}

	s := fmt.Sprintf("Games Played:   %d / %d\n", m.gamesPlayed, m.totalGames)
	s += fmt.Sprintf("Total Examples: %d\n", m.totalExamples)
	s += fmt.Sprintf("Resident:       %d / %d\n", m.dataset.Len(), m.dataset.Cap())
	s += fmt.Sprintf("White/Black/Tie: %d/%d/%d\n", m.winsWhite, m.winsBlack, m.ties)
	s += fmt.Sprintf("Duration:       %s\n", duration.Round(time.Second))
	s += fmt.Sprintf("Games/Sec:      %.2f\n", gamesPerSec)
	s += fmt.Sprintf("Examples/Sec:   %.2f\n", examplesPerSec)
	s += fmt.Sprintf("Total Inferences: %d\n", m.inferences)
	s += fmt.Sprintf("Inferences/Sec: %.2f\n\n", inferencesPerSec)

	s += "Recent Games:\n"
	for _, g := range m.recentGames {
		s += g + "\n"
	}

	s += "\nPress q to stop early (finished games are still written).\n"
	return s
}
