package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justscrape/justscrape/internal/worker"
)

var callArgsJSON string

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Invoke one tool through a worker subprocess",
	Long:  "Spawns this binary in worker mode, waits for readiness, sends a single tool request over the stdio protocol, and prints the result. Useful for exercising the transport end to end.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var toolArgs map[string]any
		if err := json.Unmarshal([]byte(callArgsJSON), &toolArgs); err != nil {
			return eris.Wrap(err, "call: parse --args")
		}

		self, err := os.Executable()
		if err != nil {
			return eris.Wrap(err, "call: locate executable")
		}

		startTimeout := time.Duration(cfg.Worker.StartTimeoutSecs) * time.Second
		client, err := worker.Start(ctx, startTimeout, self, "worker")
		if err != nil {
			return err
		}
		defer client.Kill()

		zap.L().Info("worker ready",
			zap.String("version", client.Ready().Version),
			zap.Strings("tools", client.Ready().Tools),
		)

		result, err := client.Call(ctx, args[0], toolArgs)
		if err != nil {
			return err
		}

		var pretty any
		if err := json.Unmarshal(result, &pretty); err != nil {
			return eris.Wrap(err, "call: decode result")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(pretty)
	},
}

func init() {
	callCmd.Flags().StringVar(&callArgsJSON, "args", "{}", "tool arguments as a JSON object")
	rootCmd.AddCommand(callCmd)
}
