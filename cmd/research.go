package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/research"
)

var (
	researchLimit      int
	researchNoRender   bool
	researchMaxContent int
)

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Search, retrieve, and classify sources for a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Researcher.Research(ctx, research.Params{
			Query:            args[0],
			Limit:            researchLimit,
			AllowRender:      !researchNoRender,
			MaxContentLength: researchMaxContent,
		})
		if err != nil {
			return eris.Wrap(err, "research")
		}

		zap.L().Info("research complete",
			zap.String("query", result.Query),
			zap.Int("sources", len(result.Sources)),
			zap.Int("failures", len(result.Failures)),
			zap.Float64("usable_rate", result.Metrics.UsableRate),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	researchCmd.Flags().IntVar(&researchLimit, "limit", 5, "number of search results to retrieve")
	researchCmd.Flags().BoolVar(&researchNoRender, "no-render", false, "disable rendered fetching")
	researchCmd.Flags().IntVar(&researchMaxContent, "max-content-length", 5000, "truncate source content beyond this, 0 for unlimited")
	rootCmd.AddCommand(researchCmd)
}
