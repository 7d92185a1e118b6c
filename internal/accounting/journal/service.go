package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/ledger-core/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records book changes for compliance.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages journal books. Postings themselves go through Post inside
// the caller's transaction.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the journal service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// OpenBook creates the OPEN book of a branch for one financial year.
func (s *Service) OpenBook(ctx context.Context, in BookInput) (Book, error) {
	if err := in.Validate(); err != nil {
		return Book{}, err
	}
	var book Book
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		books, err := tx.ListBooks(ctx, in.BranchID)
		if err != nil {
			return err
		}
		for _, b := range books {
			if b.FinancialYearID == in.FinancialYearID {
				return fmt.Errorf("%w: journal book for financial year %d exists", shared.ErrConflict, in.FinancialYearID)
			}
			if !truncateDay(in.StartDate).After(truncateDay(b.EndDate)) && !truncateDay(in.EndDate).Before(truncateDay(b.StartDate)) {
				return fmt.Errorf("%w: overlaps journal book %q", shared.ErrConflict, b.Name)
			}
		}
		now := s.now()
		book, err = tx.InsertBook(ctx, Book{
			BranchID:        in.BranchID,
			FinancialYearID: in.FinancialYearID,
			Name:            strings.TrimSpace(in.Name),
			StartDate:       truncateDay(in.StartDate),
			EndDate:         truncateDay(in.EndDate),
			Status:          shared.BookStatusOpen,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		return err
	})
	if err != nil {
		return Book{}, err
	}
	s.record(ctx, "journal.book.open", book.ID, map[string]any{"branch_id": book.BranchID, "financial_year_id": book.FinancialYearID})
	return book, nil
}

// SetBookStatus moves a book through OPEN, CLOSED and LOCKED. Unlocking
// needs override.
func (s *Service) SetBookStatus(ctx context.Context, id int64, status string, override bool) (Book, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	var book Book
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetBookForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := shared.ValidateBookTransition(current.Status, status, override); err != nil {
			return fmt.Errorf("%w: %s to %s", err, current.Status, status)
		}
		now := s.now()
		if current.Status != status {
			if err := tx.UpdateBookStatus(ctx, id, status, now); err != nil {
				return err
			}
			current.Status = status
			current.UpdatedAt = now
		}
		book = current
		return nil
	})
	if err != nil {
		return Book{}, err
	}
	s.record(ctx, "journal.book.status", book.ID, map[string]any{"status": book.Status, "override": override})
	return book, nil
}

// ListBooks returns a branch's books.
func (s *Service) ListBooks(ctx context.Context, branchID int64) ([]Book, error) {
	var books []Book
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		books, err = tx.ListBooks(ctx, branchID)
		return err
	})
	return books, err
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "journal_book",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
