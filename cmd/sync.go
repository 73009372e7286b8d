package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"db-ferry/internal/mirror"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one continuous-sync step from target to mirror",
}

func syncStep(use, short string, run func(ctx context.Context, svc *mirror.Service, dryRun bool) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := openSyncStack(cmd.Context())
			if err != nil {
				return err
			}
			defer stack.Close()

			res, err := run(cmd.Context(), stack.service, syncDryRun)
			if res != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(res)
			}
			if errors.Is(err, mirror.ErrDestructive) {
				return fmt.Errorf("%w (set sync.allow_destructive to apply it)", err)
			}
			return err
		},
	}
}

func init() {
	RootCmd.AddCommand(syncCmd)
	syncCmd.PersistentFlags().BoolVar(&syncDryRun, "dry-run", false, "Preview without writing to the mirror")

	syncCmd.AddCommand(
		syncStep("schema", "Diff target against mirror and apply the script", func(ctx context.Context, svc *mirror.Service, dryRun bool) (any, error) {
			res, err := svc.SyncSchema(ctx, dryRun)
			if res == nil {
				return nil, err
			}
			return res, err
		}),
		syncStep("data", "Upsert the allow-listed tables into the mirror", func(ctx context.Context, svc *mirror.Service, dryRun bool) (any, error) {
			res, err := svc.SyncData(ctx, dryRun)
			if res == nil {
				return nil, err
			}
			return res, err
		}),
		syncStep("full", "Schema step followed by the data step", func(ctx context.Context, svc *mirror.Service, dryRun bool) (any, error) {
			res, err := svc.SyncFull(ctx, dryRun)
			if res == nil {
				return nil, err
			}
			return res, err
		}),
	)
}
