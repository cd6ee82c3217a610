package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/punchamoorthee/shelfledger/internal/bootstrap"
	"github.com/punchamoorthee/shelfledger/internal/config"
	"github.com/punchamoorthee/shelfledger/internal/domain"
)

var demoBooks = []domain.BookInput{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0743273565", Genre: "Fiction", Year: 1925, TotalCopies: 3},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0061120084", Genre: "Fiction", Year: 1960, TotalCopies: 2},
	{Title: "1984", Author: "George Orwell", ISBN: "978-0451524935", Genre: "Dystopian", Year: 1949, TotalCopies: 4},
	{Title: "Clean Code", Author: "Robert C. Martin", ISBN: "978-0132350884", Genre: "Technology", Year: 2008, TotalCopies: 2},
	{Title: "The Pragmatic Programmer", Author: "David Thomas, Andrew Hunt", ISBN: "978-0135957059", Genre: "Technology", Year: 1999, TotalCopies: 3},
	{Title: "Sapiens", Author: "Yuval Noah Harari", ISBN: "978-0062316097", Genre: "History", Year: 2011, TotalCopies: 2},
	{Title: "Dune", Author: "Frank Herbert", ISBN: "978-0441172719", Genre: "Sci-Fi", Year: 1965, TotalCopies: 1},
	{Title: "Atomic Habits", Author: "James Clear", ISBN: "978-0735211292", Genre: "Self-Help", Year: 2018, TotalCopies: 5},
}

var demoMembers = []domain.MemberInput{
	{Name: "Alice Johnson", Email: "alice@email.com", Phone: "555-0101", MembershipType: domain.MembershipPremium},
	{Name: "Bob Smith", Email: "bob@email.com", Phone: "555-0102", MembershipType: domain.MembershipStandard},
	{Name: "Carol White", Email: "carol@email.com", Phone: "555-0103", MembershipType: domain.MembershipStandard},
	{Name: "David Brown", Email: "david@email.com", Phone: "555-0104", MembershipType: domain.MembershipPremium},
}

func main() {
	extra := flag.Int("books", 0, "additional generated books for load testing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, os.Stderr)
	if err != nil {
		log.Fatalf("Unable to open ledger: %v", err)
	}
	defer app.Close()

	log.Println("--- Seeding Library ---")

	existing, err := app.Ledger.ListBooks(ctx, domain.BookFilter{})
	if err != nil {
		log.Fatalf("List books failed: %v", err)
	}
	if len(existing) > 0 {
		log.Printf("Library already has %d books. Skipping.", len(existing))
		return
	}

	byTitle := make(map[string]domain.Book, len(demoBooks))
	for _, in := range demoBooks {
		b, err := app.Ledger.AddBook(ctx, in)
		if err != nil {
			log.Fatalf("Add book %q failed: %v", in.Title, err)
		}
		byTitle[b.Title] = b
	}

	byEmail := make(map[string]domain.Member, len(demoMembers))
	for _, in := range demoMembers {
		m, err := app.Ledger.AddMember(ctx, in)
		if err != nil {
			log.Fatalf("Add member %q failed: %v", in.Email, err)
		}
		byEmail[m.Email] = m
	}

	if _, err := app.Ledger.IssueBook(ctx, byTitle["Dune"].ID, byEmail["alice@email.com"].ID); err != nil {
		log.Fatalf("Issue demo borrowing failed: %v", err)
	}

	for i := 1; i <= *extra; i++ {
		in := domain.BookInput{
			Title:       fmt.Sprintf("Load Test Volume %d", i),
			Author:      "Benchmark",
			Genre:       "Reference",
			TotalCopies: 5,
		}
		if _, err := app.Ledger.AddBook(ctx, in); err != nil {
			log.Fatalf("Add generated book failed: %v", err)
		}
	}

	log.Printf("Successfully seeded %d books, %d members and 1 borrowing.", len(demoBooks)+*extra, len(demoMembers))
}
