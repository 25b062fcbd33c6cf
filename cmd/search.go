package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchNumResults int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web and print ranked results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Searcher.Search(ctx, args[0], searchNumResults)
		if err != nil {
			return eris.Wrap(err, "search")
		}

		zap.L().Info("search complete",
			zap.String("query", resp.Query),
			zap.Int("results", len(resp.Results)),
			zap.Bool("cached", resp.Cached),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchNumResults, "num-results", 10, "maximum results to return")
	rootCmd.AddCommand(searchCmd)
}
