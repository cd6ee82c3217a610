// Command libraryctl administers the library ledger directly against the configured store.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/punchamoorthee/shelfledger/internal/bootstrap"
	"github.com/punchamoorthee/shelfledger/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	c := &cli{}
	err := newRootCmd(c).Execute()
	c.close()
	if err != nil {
		os.Exit(1)
	}
}

type cli struct {
	app *bootstrap.App
}

func (c *cli) close() {
	if c.app != nil {
		_ = c.app.Close()
		c.app = nil
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "libraryctl",
		Short:        "Manage the library catalog, members and borrowings",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			c.app = app
			return nil
		},
	}
	root.SetContext(context.Background())
	root.AddCommand(
		c.booksCmd(),
		c.membersCmd(),
		c.issueCmd(),
		c.returnCmd(),
		c.borrowingsCmd(),
		c.statsCmd(),
		c.exportCmd(),
	)
	return root
}

// newTable returns a borderless, left-aligned table. header may be nil.
func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	if len(header) > 0 {
		t.SetHeader(header)
	}
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetColumnSeparator("")
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	return t
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
