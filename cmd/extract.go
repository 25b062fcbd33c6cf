package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var extractExternalOnly bool

var extractCmd = &cobra.Command{
	Use:   "extract <url>",
	Short: "Extract hyperlinks from a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Retriever.ExtractLinks(ctx, args[0], extractExternalOnly)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		zap.L().Info("extraction complete",
			zap.String("url", result.SourceURL),
			zap.Int("links", result.Count),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractExternalOnly, "external-only", false, "keep only links leaving the source domain")
	rootCmd.AddCommand(extractCmd)
}
