package errors

import "errors"

// ErrOptimisticLock the row was modified by someone else since it was read
var ErrOptimisticLock = errors.New("record was modified concurrently, reload and retry")

// ErrStatusConflict a compare-and-set status transition lost the race:
// the stored status no longer matches the expected one
var ErrStatusConflict = errors.New("status changed concurrently")
