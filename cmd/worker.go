package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Serve the tool protocol over stdin/stdout",
	Long:  "Runs as a child process for a parent orchestrator: announces readiness on stdout, then answers line-delimited JSON tool requests in order. Logs go to stderr so stdout stays protocol-clean.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := worker.NewServer(env.Searcher, env.Retriever, env.Researcher)

		zap.L().Info("worker serving", zap.Strings("tools", worker.Tools))
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
