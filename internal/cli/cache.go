package cli

import (
	"fmt"

	"github.com/harun/websurfer/pkg/cache"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Report which cache backend would be used",
	Long: `Run the backend cascade (Redis, then Cosmos DB, then disk) with the
current configuration and print the backend that was selected.`,
	Args: cobra.NoArgs,
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{withCache: true})
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	if a.cache == nil {
		fmt.Fprintln(out, "Cache: disabled")
		return nil
	}

	fmt.Fprintf(out, "Cache: %s\n", a.cache.Backend())
	fmt.Fprintf(out, "Seed: %s\n", a.cfg.Cache.Seed)
	if a.cache.Backend() == cache.BackendDisk {
		candidates := cache.Candidates(a.cfg.Cache.Params())
		if disk, ok := candidates[len(candidates)-1].(cache.DiskConfig); ok {
			fmt.Fprintf(out, "Dir: %s\n", disk.RootPath)
		}
	}
	return nil
}
