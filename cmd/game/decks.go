package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pefman/arcana-duel/internal/api"
	"github.com/pefman/arcana-duel/internal/catalog"
)

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List the decks offered by the data API",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := api.NewClient(cfg.DataAPIBase).FetchDecks(cmd.Context())
		if err != nil {
			logger.Warn("data API unavailable, listing built-in decks", zap.Error(err))
			names = catalog.Default().DeckNames()
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
		return nil
	},
}
