package main

import (
	"fmt"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/spf13/cobra"
)

func (c *cli) booksCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "books", Short: "Manage the catalog"}

	var f domain.BookFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := c.app.Ledger.ListBooks(cmd.Context(), f)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "TITLE", "AUTHOR", "GENRE", "AVAILABLE")
			for _, b := range books {
				t.Append([]string{b.ID, b.Title, b.Author, b.Genre, fmt.Sprintf("%d/%d", b.AvailableCopies, b.TotalCopies)})
			}
			t.Render()
			return nil
		},
	}
	list.Flags().StringVarP(&f.Search, "search", "q", "", "match title, author or ISBN")
	list.Flags().StringVar(&f.Genre, "genre", "", "exact genre")

	var in domain.BookInput
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := c.app.Ledger.AddBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			printf(cmd, "Book added: %s\n", b.ID)
			return nil
		},
	}
	bookFlags(add, &in)

	var patch domain.BookInput
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a book; only flags that are set are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.app.Ledger.UpdateBook(cmd.Context(), args[0], changedFields(cmd, patch))
			if err != nil {
				return err
			}
			printf(cmd, "Book updated: %s (%d/%d available)\n", b.Title, b.AvailableCopies, b.TotalCopies)
			return nil
		},
	}
	bookFlags(update, &patch)

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book with no copies on loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Ledger.DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Book deleted\n")
			return nil
		},
	}

	cmd.AddCommand(list, add, update, del)
	return cmd
}

func bookFlags(cmd *cobra.Command, in *domain.BookInput) {
	fl := cmd.Flags()
	fl.StringVar(&in.Title, "title", "", "title")
	fl.StringVar(&in.Author, "author", "", "author")
	fl.StringVar(&in.ISBN, "isbn", "", "ISBN")
	fl.StringVar(&in.Genre, "genre", "", "genre")
	fl.IntVar(&in.Year, "year", 0, "publication year")
	fl.StringVar(&in.Description, "description", "", "description")
	fl.StringVar(&in.CoverURL, "cover-url", "", "cover image URL")
	fl.IntVar(&in.TotalCopies, "copies", 1, "total copies")
}

// changedFields turns the flags the user actually set into a patch.
func changedFields(cmd *cobra.Command, in domain.BookInput) domain.BookPatch {
	var p domain.BookPatch
	fl := cmd.Flags()
	if fl.Changed("title") {
		p.Title = &in.Title
	}
	if fl.Changed("author") {
		p.Author = &in.Author
	}
	if fl.Changed("isbn") {
		p.ISBN = &in.ISBN
	}
	if fl.Changed("genre") {
		p.Genre = &in.Genre
	}
	if fl.Changed("year") {
		p.Year = &in.Year
	}
	if fl.Changed("description") {
		p.Description = &in.Description
	}
	if fl.Changed("cover-url") {
		p.CoverURL = &in.CoverURL
	}
	if fl.Changed("copies") {
		p.TotalCopies = &in.TotalCopies
	}
	return p
}

func (c *cli) membersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "members", Short: "Manage members"}

	var f domain.MemberFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			members, err := c.app.Ledger.ListMembers(cmd.Context(), f)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "EMAIL", "TYPE", "JOINED")
			for _, m := range members {
				t.Append([]string{m.ID, m.Name, m.Email, string(m.MembershipType), m.JoinDate.String()})
			}
			t.Render()
			return nil
		},
	}
	list.Flags().StringVarP(&f.Search, "search", "q", "", "match name or email")

	var in domain.MemberInput
	var tier string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.MembershipType = domain.MembershipType(tier)
			m, err := c.app.Ledger.AddMember(cmd.Context(), in)
			if err != nil {
				return err
			}
			printf(cmd, "Member added: %s\n", m.ID)
			return nil
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "full name")
	add.Flags().StringVar(&in.Email, "email", "", "email address")
	add.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&tier, "type", string(domain.MembershipStandard), "standard or premium")

	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a member with no borrowed books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Ledger.RemoveMember(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Member removed\n")
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
