package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/janitor/internal/output"
	"github.com/panbanda/janitor/pkg/cache"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the on-disk token cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show the number, size and age of cached token sets",
				Action: runCacheStatsCmd,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached token set",
				Action: runCacheClearCmd,
			},
		},
	}
}

func openDiskCache(e *env) (*cache.Disk, error) {
	return cache.NewDisk(e.cfg.Cache.Dir,
		cache.WithCompression(e.cfg.Cache.Compress),
		cache.WithLogger(e.logger))
}

func runCacheStatsCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	disk, err := openDiskCache(e)
	if err != nil {
		return err
	}
	stats, err := disk.Stats()
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Directory", disk.Dir()},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Size", formatBytes(stats.TotalSize)},
	}
	if stats.Entries > 0 {
		rows = append(rows,
			[]string{"Oldest", stats.OldestAge.Round(time.Second).String()},
			[]string{"Newest", stats.NewestAge.Round(time.Second).String()},
		)
	}
	return e.formatter.Output(output.NewTable("Token Cache", []string{"Property", "Value"}, rows, nil, stats))
}

func runCacheClearCmd(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	disk, err := openDiskCache(e)
	if err != nil {
		return err
	}
	stats, err := disk.Stats()
	if err != nil {
		return err
	}
	removed, err := disk.Clear()
	if err != nil {
		return err
	}
	e.formatter.Success("Removed %d cache entries (%s) from %s", removed, formatBytes(stats.TotalSize), disk.Dir())
	return nil
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
