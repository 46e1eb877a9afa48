package waitlist

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
)

type WaitlistService interface {
	// Register adds a new waitlist entry for the given email and triggers a
	// best-effort confirmation email. Fails with a conflict when the email is
	// already registered.
	Register(ctx context.Context, req *RegisterRequest) (*WaitlistEntryResponse, error)

	// ListEntries retrieves all waitlist entries in store order.
	ListEntries(ctx context.Context) ([]WaitlistEntryResponse, error)

	// DeleteByEmail removes every entry matching the email and reports how
	// many were removed.
	DeleteByEmail(ctx context.Context, email string) (int, error)

	// DeleteAll removes every entry on the waitlist and reports how many were
	// removed.
	DeleteAll(ctx context.Context) (int, error)
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	notifier   Notifier
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, notifier Notifier) WaitlistService {
	return &waitlistService{logger: logger, repository: repository, notifier: notifier}
}

func (s *waitlistService) Register(ctx context.Context, req *RegisterRequest) (*WaitlistEntryResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("Register received empty request")
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		logger.Error("Register received invalid email format")
		return nil, apperrors.NewInvalidRequestError("invalid email format", nil)
	}

	// Check-then-act: the query and the insert below are not atomic and the
	// store enforces no uniqueness, so two overlapping registrations of the
	// same email can both pass this check and both insert. Accepted; the
	// deletion path tolerates the resulting duplicates.
	existing, err := s.repository.FindEntriesByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to check for existing waitlist entry", "error", err)
		return nil, err
	}

	if len(existing) > 0 {
		logger.Info("Registration rejected, email already on waitlist")
		return nil, apperrors.NewConflictError("email is already on the waitlist", nil)
	}

	entry, err := s.repository.CreateEntry(ctx, &models.WaitlistEntry{Email: email})
	if err != nil {
		logger.Error("Failed to create waitlist entry", "error", err)
		return nil, err
	}

	s.sendConfirmation(logger, entry.Email)

	response := ToWaitlistEntryResponse(entry)
	return &response, nil
}

// sendConfirmation fires the confirmation email on a detached goroutine. The
// entry is already persisted at this point; a failed send is logged and never
// changes the caller-visible outcome.
func (s *waitlistService) sendConfirmation(logger *log.Logger, email string) {
	if s.notifier == nil {
		logger.Debug("No notifier configured, skipping confirmation email")
		return
	}

	go func() {
		// The request context dies with the HTTP response; the send gets its
		// own background context.
		if err := s.notifier.Notify(context.Background(), email); err != nil {
			logger.Error("Confirmation email failed", "error", err)
			return
		}
		logger.Info("Confirmation email sent")
	}()
}

func (s *waitlistService) ListEntries(ctx context.Context) ([]WaitlistEntryResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	entries, err := s.repository.GetAllEntries(ctx)
	if err != nil {
		logger.Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}

	responses := make([]WaitlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, ToWaitlistEntryResponse(entry))
	}

	return responses, nil
}

func (s *waitlistService) DeleteByEmail(ctx context.Context, email string) (int, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	email = strings.TrimSpace(email)
	if email == "" {
		logger.Error("DeleteByEmail received empty email")
		return 0, apperrors.NewInvalidRequestError("email must not be empty", nil)
	}

	entries, err := s.repository.FindEntriesByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to query waitlist entries for deletion", "error", err)
		return 0, err
	}

	if len(entries) == 0 {
		return 0, apperrors.NewNotFoundError("no waitlist entry found for this email", nil)
	}

	return s.deleteEntries(ctx, logger, entries)
}

func (s *waitlistService) DeleteAll(ctx context.Context) (int, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	entries, err := s.repository.GetAllEntries(ctx)
	if err != nil {
		logger.Error("Failed to query waitlist entries for deletion", "error", err)
		return 0, err
	}

	if len(entries) == 0 {
		return 0, apperrors.NewNotFoundError("waitlist is empty", nil)
	}

	return s.deleteEntries(ctx, logger, entries)
}

// deleteEntries removes the given entries concurrently, one delete per entry.
// Deletions are independent units of work: successful deletes stay in effect
// even when others fail, and a mixed outcome surfaces as a partial failure
// carrying the count that did succeed.
func (s *waitlistService) deleteEntries(ctx context.Context, logger *log.Logger, entries []*models.WaitlistEntry) (int, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		removed int
		failed  int
	)

	for _, entry := range entries {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()

			err := s.repository.DeleteEntryByID(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("Failed to delete waitlist entry", "id", id, "error", err)
				failed++
				return
			}
			removed++
		}(entry.ID)
	}

	wg.Wait()

	if failed > 0 {
		partial := &PartialDeletionError{Removed: removed, Failed: failed}
		return removed, apperrors.NewPartialFailureError(
			fmt.Sprintf("removed %d of %d waitlist entries", removed, len(entries)),
			partial,
		)
	}

	logger.Info("Waitlist entries deleted", "count", removed)
	return removed, nil
}
