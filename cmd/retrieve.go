package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var retrieveNoRender bool

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <url>",
	Short: "Retrieve and classify a single page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Retriever.Retrieve(ctx, args[0], !retrieveNoRender)
		if err != nil {
			return eris.Wrap(err, "retrieve")
		}

		zap.L().Info("retrieval complete",
			zap.String("url", result.URL),
			zap.String("status", string(result.Classification.Status)),
			zap.String("method", string(result.Signals.Method)),
			zap.Int("content_length", result.Signals.ContentLength),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	retrieveCmd.Flags().BoolVar(&retrieveNoRender, "no-render", false, "disable the rendered fetch fallback")
	rootCmd.AddCommand(retrieveCmd)
}
