package service

import (
	"context"
	"errors"
	"strings"

	"github.com/punchamoorthee/shelfledger/internal/domain"
	"github.com/punchamoorthee/shelfledger/internal/store"
)

// AddMember registers an active member joining today.
func (l *Ledger) AddMember(ctx context.Context, in domain.MemberInput) (domain.Member, error) {
	name, email := strings.TrimSpace(in.Name), strings.TrimSpace(in.Email)
	tier := domain.MembershipType(strings.ToLower(strings.TrimSpace(string(in.MembershipType))))
	if tier == "" {
		tier = domain.MembershipStandard
	}

	var err error
	switch {
	case name == "":
		err = domain.Invalidf("name is required")
	case email == "":
		err = domain.Invalidf("email is required")
	case !tier.Valid():
		err = domain.Invalidf("unknown membership type %q", in.MembershipType)
	}
	if err != nil {
		return domain.Member{}, l.finish("add_member", err, "")
	}

	member := domain.Member{
		ID:             l.newID(),
		Name:           name,
		Email:          email,
		Phone:          strings.TrimSpace(in.Phone),
		MembershipType: tier,
		JoinDate:       l.Today(),
		Active:         true,
	}
	err = l.store.Update(ctx, func(tx store.Tx) error {
		_, err := tx.FindMemberByEmail(ctx, email)
		switch {
		case err == nil:
			return domain.Conflictf("email %s is already registered", email)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return tx.InsertMember(ctx, member)
	})
	if err != nil {
		return domain.Member{}, l.finish("add_member", err, "")
	}
	return member, l.finish("add_member", nil, "Member added", logAttrMemberID, member.ID)
}

// RemoveMember deletes a member who holds no borrowed book.
func (l *Ledger) RemoveMember(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.Update(ctx, func(tx store.Tx) error {
		member, err := tx.GetMember(ctx, id)
		if err != nil {
			return err
		}
		active, err := tx.ListBorrowings(ctx, domain.BorrowingFilter{Status: domain.FilterBorrowed, MemberID: id})
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return domain.Conflictf("%s still has %d borrowed books", member.Name, len(active))
		}
		return tx.DeleteMember(ctx, id)
	})
	return l.finish("remove_member", err, "Member removed", logAttrMemberID, id)
}

func (l *Ledger) GetMember(ctx context.Context, id string) (domain.Member, error) {
	var member domain.Member
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		member, err = tx.GetMember(ctx, id)
		return err
	})
	return member, err
}

func (l *Ledger) ListMembers(ctx context.Context, f domain.MemberFilter) ([]domain.Member, error) {
	var members []domain.Member
	err := l.store.View(ctx, func(tx store.Tx) error {
		var err error
		members, err = tx.ListMembers(ctx, f)
		return err
	})
	return members, err
}
