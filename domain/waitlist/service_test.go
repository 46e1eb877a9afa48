package waitlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

// notifierStub records sends on a channel so tests can wait for the detached
// confirmation goroutine.
type notifierStub struct {
	err   error
	calls chan string
}

func newNotifierStub(err error) *notifierStub {
	return &notifierStub{err: err, calls: make(chan string, 4)}
}

func (n *notifierStub) Notify(_ context.Context, email string) error {
	n.calls <- email
	return n.err
}

func (n *notifierStub) awaitCall(t *testing.T) string {
	t.Helper()
	select {
	case email := <-n.calls:
		return email
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not invoked")
		return ""
	}
}

func (n *notifierStub) assertNotCalled(t *testing.T) {
	t.Helper()
	select {
	case email := <-n.calls:
		t.Fatalf("notifier unexpectedly invoked for %q", email)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestService(t *testing.T, notifier Notifier) (*MockWaitlistRepository, WaitlistService) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockRepo := NewMockWaitlistRepository(ctrl)
	logger := log.NewLoggerWithJSONOutput()
	service := NewWaitlistService(logger, mockRepo, notifier)
	return mockRepo, service
}

func TestRegister_Success(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "test@example.com").
		Return([]*models.WaitlistEntry{}, nil)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
			assert.Equal(t, "test@example.com", entry.Email)
			entry.ID = 1
			entry.CreatedAt = time.Now()
			return entry, nil
		})

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "test@example.com"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "test@example.com", result.Email)
	assert.Equal(t, uint(1), result.ID)
	assert.Equal(t, "test@example.com", notifier.awaitCall(t))
}

func TestRegister_TrimsSurroundingWhitespace(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "padded@example.com").
		Return([]*models.WaitlistEntry{}, nil)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
			assert.Equal(t, "padded@example.com", entry.Email)
			return entry, nil
		})

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "  padded@example.com \n"})

	assert.NoError(t, err)
	assert.Equal(t, "padded@example.com", result.Email)
	notifier.awaitCall(t)
}

func TestRegister_InvalidEmailHasNoSideEffects(t *testing.T) {
	notifier := newNotifierStub(nil)
	// No repository expectations: any store call fails the test.
	_, service := newTestService(t, notifier)

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "not-an-email"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
	notifier.assertNotCalled(t)
}

func TestRegister_NilRequest(t *testing.T) {
	_, service := newTestService(t, nil)

	result, err := service.Register(context.Background(), nil)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "dup@example.com").
		Return([]*models.WaitlistEntry{{Email: "dup@example.com"}}, nil)

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "dup@example.com"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.GetErrorType(err))
	notifier.assertNotCalled(t)
}

func TestRegister_DedupQueryFailureSkipsInsert(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "test@example.com").
		Return(nil, apperrors.NewDatabaseError("database error", nil))

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "test@example.com"})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperrors.ErrorTypeDatabaseError, apperrors.GetErrorType(err))
	notifier.assertNotCalled(t)
}

func TestRegister_InsertFailureSkipsNotification(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "test@example.com").
		Return([]*models.WaitlistEntry{}, nil)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.NewDatabaseError("database error", nil))

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "test@example.com"})

	assert.Error(t, err)
	assert.Nil(t, result)
	notifier.assertNotCalled(t)
}

func TestRegister_NotifierFailureStillSucceeds(t *testing.T) {
	notifier := newNotifierStub(errors.New("smtp relay unreachable"))
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "test@example.com").
		Return([]*models.WaitlistEntry{}, nil)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
			return entry, nil
		})

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "test@example.com"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	notifier.awaitCall(t)
}

func TestRegister_NoNotifierConfigured(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "test@example.com").
		Return([]*models.WaitlistEntry{}, nil)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
			return entry, nil
		})

	result, err := service.Register(context.Background(), &RegisterRequest{Email: "test@example.com"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
}

// Overlapping registrations of the same email can both pass the dedup check
// and both insert. The test pins down that neither call crashes or deadlocks
// and that both observe success when the store reports no existing entry.
func TestRegister_ConcurrentSameEmailBothMaySucceed(t *testing.T) {
	notifier := newNotifierStub(nil)
	mockRepo, service := newTestService(t, notifier)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "dup@example.com").
		Return([]*models.WaitlistEntry{}, nil).
		Times(2)
	mockRepo.EXPECT().
		CreateEntry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error) {
			return entry, nil
		}).
		Times(2)

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = service.Register(context.Background(), &RegisterRequest{Email: "dup@example.com"})
		}(i)
	}

	wg.Wait()

	assert.NoError(t, results[0])
	assert.NoError(t, results[1])
	notifier.awaitCall(t)
	notifier.awaitCall(t)
}

func TestListEntries_Success(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().
		GetAllEntries(gomock.Any()).
		Return([]*models.WaitlistEntry{
			{Email: "one@example.com"},
			{Email: "two@example.com"},
		}, nil)

	result, err := service.ListEntries(context.Background())

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, "one@example.com", result[0].Email)
	assert.Equal(t, "two@example.com", result[1].Email)
}

func TestListEntries_Empty(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().GetAllEntries(gomock.Any()).Return(nil, nil)

	result, err := service.ListEntries(context.Background())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Len(t, result, 0)
}

func TestListEntries_RepositoryError(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().
		GetAllEntries(gomock.Any()).
		Return(nil, apperrors.NewDatabaseError("database error", nil))

	result, err := service.ListEntries(context.Background())

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestDeleteByEmail_NotFound(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "absent@example.com").
		Return([]*models.WaitlistEntry{}, nil)

	removed, err := service.DeleteByEmail(context.Background(), "absent@example.com")

	assert.Error(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.GetErrorType(err))
}

func TestDeleteByEmail_EmptyEmail(t *testing.T) {
	_, service := newTestService(t, nil)

	removed, err := service.DeleteByEmail(context.Background(), "  ")

	assert.Error(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
}

// Duplicates from the accepted registration race must all be removed.
func TestDeleteByEmail_RemovesAllDuplicates(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	entries := []*models.WaitlistEntry{{Email: "x@example.com"}, {Email: "x@example.com"}}
	entries[0].ID = 1
	entries[1].ID = 2

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "x@example.com").
		Return(entries, nil)
	mockRepo.EXPECT().DeleteEntryByID(gomock.Any(), uint(1)).Return(nil)
	mockRepo.EXPECT().DeleteEntryByID(gomock.Any(), uint(2)).Return(nil)

	removed, err := service.DeleteByEmail(context.Background(), "x@example.com")

	assert.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestDeleteByEmail_PartialFailureKeepsSuccessfulDeletes(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	entries := []*models.WaitlistEntry{{Email: "x@example.com"}, {Email: "x@example.com"}}
	entries[0].ID = 1
	entries[1].ID = 2

	mockRepo.EXPECT().
		FindEntriesByEmail(gomock.Any(), "x@example.com").
		Return(entries, nil)
	mockRepo.EXPECT().DeleteEntryByID(gomock.Any(), uint(1)).Return(nil)
	mockRepo.EXPECT().
		DeleteEntryByID(gomock.Any(), uint(2)).
		Return(apperrors.NewDatabaseError("database error", nil))

	removed, err := service.DeleteByEmail(context.Background(), "x@example.com")

	assert.Error(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, apperrors.ErrorTypePartialFailure, apperrors.GetErrorType(err))

	var partial *PartialDeletionError
	assert.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Removed)
	assert.Equal(t, 1, partial.Failed)
}

func TestDeleteAll_EmptyWaitlist(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	mockRepo.EXPECT().GetAllEntries(gomock.Any()).Return(nil, nil)

	removed, err := service.DeleteAll(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.GetErrorType(err))
}

func TestDeleteAll_RemovesEverything(t *testing.T) {
	mockRepo, service := newTestService(t, nil)

	entries := make([]*models.WaitlistEntry, 5)
	for i := range entries {
		entries[i] = &models.WaitlistEntry{Email: "user@example.com"}
		entries[i].ID = uint(i + 1)
	}

	mockRepo.EXPECT().GetAllEntries(gomock.Any()).Return(entries, nil)
	mockRepo.EXPECT().DeleteEntryByID(gomock.Any(), gomock.Any()).Return(nil).Times(5)

	removed, err := service.DeleteAll(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 5, removed)
}
