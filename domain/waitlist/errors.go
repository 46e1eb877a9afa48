package waitlist

import "fmt"

// PartialDeletionError reports a bulk deletion where some entries were
// removed and at least one delete failed. The removed entries stay removed;
// there is no rollback.
type PartialDeletionError struct {
	Removed int
	Failed  int
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("removed %d waitlist entries, %d deletions failed", e.Removed, e.Failed)
}
