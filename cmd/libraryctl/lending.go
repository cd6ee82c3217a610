package main

import (
	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/service"
	"github.com/spf13/cobra"
)

func (c *cli) issueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <book-id> <member-id>",
		Short: "Lend a copy of a book to a member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.app.Ledger.IssueBook(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printf(cmd, "%s\nBorrowing: %s\n", service.IssueMessage(b), b.ID)
			return nil
		},
	}
}

func (c *cli) returnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <borrowing-id>",
		Short: "Record the return of a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Ledger.ReturnBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Book returned successfully\n")
			return nil
		},
	}
}

func (c *cli) borrowingsCmd() *cobra.Command {
	var status, bookID, memberID string
	cmd := &cobra.Command{
		Use:   "borrowings",
		Short: "List borrowings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sf, err := domain.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			bs, err := c.app.Ledger.FindBorrowings(cmd.Context(), domain.BorrowingFilter{
				Status: sf, BookID: bookID, MemberID: memberID,
			})
			if err != nil {
				return err
			}
			today := c.app.Ledger.Today()
			t := newTable(cmd.OutOrStdout(), "ID", "BOOK", "MEMBER", "BORROWED", "DUE", "STATUS")
			for _, b := range bs {
				state := string(b.Status)
				if service.IsOverdue(b, today) {
					state = "overdue"
				}
				t.Append([]string{b.ID, b.BookTitle, b.MemberName, b.BorrowDate.String(), b.DueDate.String(), state})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "all", "all, borrowed or returned")
	cmd.Flags().StringVar(&bookID, "book", "", "only this book")
	cmd.Flags().StringVar(&memberID, "member", "", "only this member")
	return cmd
}
