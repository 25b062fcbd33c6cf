package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sitemapCmd = &cobra.Command{
	Use:   "sitemap",
	Short: "Manage the sitemap registry",
}

var sitemapAddURL string

var sitemapAddCmd = &cobra.Command{
	Use:   "add <domain>",
	Short: "Fetch a domain's sitemap and store its URLs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		info, err := env.Registry.AddDomain(ctx, args[0], sitemapAddURL)
		if err != nil {
			return eris.Wrap(err, "sitemap add")
		}

		zap.L().Info("sitemap stored",
			zap.String("domain", info.Domain),
			zap.Int("urls", info.URLCount),
		)
		return printJSON(info)
	},
}

var sitemapRefreshCmd = &cobra.Command{
	Use:   "refresh <domain>",
	Short: "Re-fetch a known domain's sitemap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		info, err := env.Registry.Refresh(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sitemap refresh")
		}
		return printJSON(info)
	},
}

var (
	sitemapURLsLimit     int
	sitemapURLsUnscraped bool
)

var sitemapURLsCmd = &cobra.Command{
	Use:   "urls <domain>",
	Short: "List stored URLs for a domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		urls, err := env.Registry.URLs(ctx, args[0], sitemapURLsLimit, sitemapURLsUnscraped)
		if err != nil {
			return eris.Wrap(err, "sitemap urls")
		}
		return printJSON(urls)
	},
}

var sitemapStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show registry statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Registry.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "sitemap stats")
		}
		return printJSON(stats)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	sitemapAddCmd.Flags().StringVar(&sitemapAddURL, "sitemap-url", "", "explicit sitemap URL instead of probing common locations")
	sitemapURLsCmd.Flags().IntVar(&sitemapURLsLimit, "limit", 100, "maximum URLs to list, 0 for all")
	sitemapURLsCmd.Flags().BoolVar(&sitemapURLsUnscraped, "unscraped", false, "list only URLs not yet scraped")

	sitemapCmd.AddCommand(sitemapAddCmd, sitemapRefreshCmd, sitemapURLsCmd, sitemapStatsCmd)
	rootCmd.AddCommand(sitemapCmd)
}
