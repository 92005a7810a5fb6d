package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List catalog events",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	repo, err := loadCatalog()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMATCH\tCATEGORY\tSTATUS\tFEEDS")
	for _, e := range repo.List() {
		d := e.Details
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", e.ID, d.Title, d.Match, d.Category, d.Status, len(e.Feeds))
	}
	return tw.Flush()
}
