package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Open the document and report its geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, cleanup, err := root.openViewer(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			st := v.Store()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "status:  %s\n", st.Snapshot().Status)
			fmt.Fprintf(w, "pages:   %d\n", st.PageCount())
			fmt.Fprintf(w, "spreads: %d\n", st.SpreadCount())
			fmt.Fprintf(w, "cached:  %d\n", v.Pipeline().CacheLen())
			return nil
		},
	}
}
