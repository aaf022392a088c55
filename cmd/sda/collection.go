package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCollectionCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Inspect and manage collections",
	}
	cmd.AddCommand(newCollectionInfoCmd(g), newCollectionDropCmd(g))
	return cmd
}

func newCollectionInfoCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <name>",
		Short: "Show a collection's vector width and point count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), g, "cli")
			if err != nil {
				return err
			}
			defer a.Close()

			col, err := a.collections.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			n, err := a.collections.Count(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:       %s\n", col.Name)
			fmt.Fprintf(w, "dimensions: %d\n", col.VectorSize)
			fmt.Fprintf(w, "distance:   %s\n", col.Distance)
			fmt.Fprintf(w, "points:     %d\n", n)
			return nil
		},
	}
}

func newCollectionDropCmd(g *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop <name>",
		Short: "Delete a collection and all of its points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop %q without --yes", args[0])
			}
			a, err := bootstrap(cmd.Context(), g, "cli")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.collections.Drop(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.logger.Info("Collection dropped", zap.String("collection", args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the drop")
	return cmd
}
