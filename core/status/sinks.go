package status

import (
	"time"

	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/core/txn/pool"
	"golang.org/x/xerrors"
)

// admission records the prepared batches before forwarding them.
//
// - implements pool.Admission
type admission struct {
	store *Store
	next  pool.Admission
	clock func() time.Time
}

// NewAdmission returns an admission that records the batches as prepared and
// forwards them to the next admission, if any. A batch is forwarded even when
// the record fails.
func NewAdmission(store *Store, next pool.Admission) pool.Admission {
	return admission{
		store: store,
		next:  next,
		clock: time.Now,
	}
}

// Admit implements pool.Admission.
func (a admission) Admit(batch txn.Batch) error {
	recErr := a.store.Set(batch, Prepared, a.clock())

	var nextErr error
	if a.next != nil {
		nextErr = a.next.Admit(batch)
	}

	return combine(recErr, nextErr)
}

// notifier records the expired batches before forwarding them.
//
// - implements pool.Notifier
type notifier struct {
	store *Store
	next  pool.Notifier
	clock func() time.Time
}

// NewNotifier returns a notifier that records the batches as expired and
// forwards them to the next notifier, if any. A batch is forwarded even when
// the record fails.
func NewNotifier(store *Store, next pool.Notifier) pool.Notifier {
	return notifier{
		store: store,
		next:  next,
		clock: time.Now,
	}
}

// NotifyExpired implements pool.Notifier.
func (n notifier) NotifyExpired(batch txn.Batch) error {
	recErr := n.store.Set(batch, Expired, n.clock())

	var nextErr error
	if n.next != nil {
		nextErr = n.next.NotifyExpired(batch)
	}

	return combine(recErr, nextErr)
}

// combine returns the error of the next collaborator, if any, with the error
// of the record.
func combine(recErr, nextErr error) error {
	switch {
	case recErr == nil:
		return nextErr
	case nextErr == nil:
		return xerrors.Errorf("couldn't record status: %v", recErr)
	default:
		return xerrors.Errorf("couldn't record status: %v; forward failed: %w",
			recErr, nextErr)
	}
}
