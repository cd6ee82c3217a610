package main

import (
	"strconv"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show library statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := c.app.Ledger.Today()
			if asOf != "" {
				d, err := domain.ParseDate(asOf)
				if err != nil {
					return err
				}
				day = d
			}
			s, err := c.app.Ledger.Statistics(cmd.Context(), day)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout())
			t.AppendBulk([][]string{
				{"Total books", strconv.Itoa(s.TotalBooks)},
				{"Available copies", strconv.Itoa(s.AvailableBooks)},
				{"Active members", strconv.Itoa(s.TotalMembers)},
				{"Active borrowings", strconv.Itoa(s.ActiveBorrowings)},
				{"Overdue as of " + day.String(), strconv.Itoa(s.Overdue)},
			})
			for _, g := range s.Genres {
				t.Append([]string{"  " + g.Genre, strconv.Itoa(g.Count)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate overdue borrowings on this date (YYYY-MM-DD)")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of the ledger to the export target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.Exporter.Export(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "Snapshot %s: %d books, %d members, %d borrowings\n", res.Key, res.Books, res.Members, res.Borrowings)
			return nil
		},
	}
}
