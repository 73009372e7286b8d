package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"db-ferry/internal/config"
	"db-ferry/internal/mirror"
	"db-ferry/internal/server"
	"db-ferry/internal/source"
)

var pingCmd = &cobra.Command{
	Use:       "ping [source|target|mirror]",
	Short:     "Check connectivity to the configured stores",
	Args:      cobra.OnlyValidArgs,
	ValidArgs: []string{"source", "target", "mirror"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModePing); err != nil {
			return err
		}
		ctx := cmd.Context()
		names := args
		if len(names) == 0 {
			names = []string{"source", "target", "mirror"}
		}

		var src *source.Client
		var target, mirrorStore mirror.Store
		openErrs := map[string]error{}
		for _, name := range names {
			var err error
			switch name {
			case "source":
				if cfg.Source.URL != "" {
					src, err = newSource()
				}
			case "target":
				if cfg.Target.DSN != "" {
					target, err = openStore(ctx, name, cfg.Target)
				}
			case "mirror":
				if cfg.Mirror.DSN != "" {
					mirrorStore, err = openStore(ctx, name, cfg.Mirror)
				}
			}
			if err != nil {
				openErrs[name] = err
			}
		}
		defer func() {
			for _, st := range []mirror.Store{target, mirrorStore} {
				if st.DB != nil {
					st.DB.Close()
				}
			}
		}()

		all := probes(src, target, mirrorStore)
		failed := 0
		for _, name := range names {
			var st server.StoreStatus
			if err, ok := openErrs[name]; ok {
				st = server.StoreStatus{Store: name, Error: err.Error()}
			} else {
				st = all[name](ctx)
			}
			if st.OK {
				fmt.Printf("[✓] %-7s %s (%d tables, %dms)\n", name, st.Version, st.Tables, st.LatencyMs)
				continue
			}
			failed++
			fmt.Printf("[!] %-7s %s\n", name, st.Error)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d stores unreachable", failed, len(names))
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pingCmd)
}
