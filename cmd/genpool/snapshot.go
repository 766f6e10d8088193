package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/genpool/pkg/json"
	"github.com/ajitpratap0/genpool/pkg/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Work with pool snapshot files",
	}

	var asJSON bool
	inspect := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Verify a snapshot and print its header and record counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.Snapshot.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.Snapshot.Timeout)
				defer cancel()
			}
			info, err := snapshot.Inspect(ctx, args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return json.MarshalToWriter(w, info)
			}
			fmt.Fprintf(w, "id:          %s\n", info.ID)
			fmt.Fprintf(w, "version:     %d\n", info.Version)
			fmt.Fprintf(w, "algorithm:   %s\n", info.Algorithm)
			fmt.Fprintf(w, "raw size:    %d\n", info.RawSize)
			fmt.Fprintf(w, "compressed:  %d\n", info.CompressedSize)
			fmt.Fprintf(w, "checksum:    %016x\n", info.Checksum)
			fmt.Fprintf(w, "records:     %d (alive %d, free %d)\n", info.Records, info.Alive, info.Free)
			return nil
		},
	}
	inspect.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(inspect)
	return cmd
}
