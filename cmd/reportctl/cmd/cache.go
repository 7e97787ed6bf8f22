package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/playreport/api/internal/app"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the report result cache",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <template-id>",
	Short: "Drop every cached result of a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInvalidate,
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	client, err := e.redisClient()
	if err != nil {
		return err
	}

	cache, err := app.NewReportCacheService(client, app.ReportCacheConfig{
		TTL:         e.cfg.Report.CacheTTL,
		MaxAge:      e.cfg.Report.CacheMaxAge,
		Compression: e.cfg.Report.CacheCompression,
	}, e.log)
	if err != nil {
		return err
	}

	n, err := cache.InvalidateTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("removed %d cached result(s) for %s\n", n, args[0])
	return nil
}
