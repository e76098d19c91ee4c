package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/catalog"
	"github.com/pefman/arcana-duel/internal/config"
	"github.com/pefman/arcana-duel/internal/engine"
	"github.com/pefman/arcana-duel/internal/game"
	"github.com/pefman/arcana-duel/internal/models"
	"github.com/pefman/arcana-duel/internal/stats"
)

var simFlags struct {
	seed      int64
	player    string
	opponent  string
	games     int
	maxRounds int
	showLog   bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Play AI against AI to completion and report the results",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.Int64Var(&simFlags.seed, "seed", 0, "Seed for the first game (0 picks one at random)")
	f.StringVar(&simFlags.player, "player", "knight", "Player deck")
	f.StringVar(&simFlags.opponent, "opponent", "witch", "Opponent deck")
	f.IntVarP(&simFlags.games, "games", "n", 1, "Number of games; game i uses seed+i")
	f.IntVar(&simFlags.maxRounds, "max-rounds", 100, "Abandon a game after this many rounds")
	f.BoolVar(&simFlags.showLog, "log", false, "Print narration and the combat log of each game")
}

type simSummary struct {
	Games     int            `json:"games"`
	Wins      map[string]int `json:"wins"`
	Abandoned int            `json:"abandoned"`
	AvgRounds float64        `json:"avg_rounds"`
	Records   stats.Day      `json:"records"`
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}
	seed := simFlags.seed
	if seed == 0 {
		if seed, err = engine.NewSeed(); err != nil {
			return err
		}
	}
	cat := catalog.Default()
	daily := stats.NewDaily()
	out := cmd.OutOrStdout()
	sum := simSummary{Wins: map[string]int{}}
	rounds := 0

	for i := 0; i < max(simFlags.games, 1); i++ {
		s := seed + int64(i)
		e := game.NewEngine(rules, engine.NewRoller(s))
		e.Recorder = daily
		g, err := e.NewGame(cat, game.Setup{Seed: s, PlayerDeck: simFlags.player, OpponentDeck: simFlags.opponent})
		if err != nil {
			return err
		}
		err = e.Play(g, simFlags.maxRounds)
		sum.Games++
		rounds += g.Round
		switch {
		case errors.Is(err, game.ErrRoundLimit):
			sum.Abandoned++
			logger.Debug("game abandoned", zap.Int64("seed", s), zap.Int("round", g.Round))
		case err != nil:
			return fmt.Errorf("seed %d: %w", s, err)
		default:
			winner := string(g.Winner)
			if winner == "" {
				winner = "draw"
			}
			sum.Wins[winner]++
		}
		fmt.Fprintf(out, "seed %d: %s after %d rounds (%s %d hp, %s %d hp)\n",
			s, result(g), g.Round, g.Player.Name, g.Player.HP, g.Opponent.Name, g.Opponent.HP)
		if simFlags.showLog {
			printLog(out, g)
		}
	}
	sum.AvgRounds = float64(rounds) / float64(sum.Games)
	sum.Records = daily.Today()
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(b))
	return nil
}

func result(g *models.GameState) string {
	switch {
	case g.Phase != models.PhaseGameOver:
		return "abandoned"
	case g.Winner == "":
		return "draw"
	}
	return g.Actor(g.Winner).Name + " wins"
}

func printLog(w io.Writer, g *models.GameState) {
	for _, line := range g.Narration {
		fmt.Fprintf(w, "  | %s\n", line)
	}
	for _, r := range g.Log {
		fmt.Fprintf(w, "  r%d %s -> %s (%s): %d+%d+%d vs %d+%d+%d = %s, %d %s\n",
			r.Round, r.Attacker, r.Defender, r.Card,
			r.AttackRoll, r.AttackMod, r.AttackBonus,
			r.DefenseRoll, r.DefenseMod, r.DefenseBonus,
			r.Tier, r.Damage, r.Pool)
	}
}
