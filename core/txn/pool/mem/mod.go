// Package mem implements a pool that keeps the pending batches in memory.
//
// The pool serializes the accesses to its state and routes the batches that
// leave it: the batches that gather enough signatures go to the admission, and
// the expired ones go to the notifier. Each batch is routed exactly once, and
// the collaborators are always called outside of the lock.
//
// A prepared batch is remembered until it would have expired so that a late
// view of it is not admitted a second time, and so that the participants still
// holding a partial view can be sent the complete one.
package mem

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/mst"
	"go.dedis.ch/mst/core"
	"go.dedis.ch/mst/core/status"
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/core/txn/pool"
	"go.dedis.ch/mst/mino"
	"golang.org/x/xerrors"
)

// ErrPolicyViolation is the error returned when a batch cannot enter the pool
// whatever its signatures are.
var ErrPolicyViolation = xerrors.New("policy violation")

var (
	promPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mst_pool_pending_batches",
		Help: "number of pending batches",
	})

	promGraduated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mst_pool_graduated_total",
		Help: "total number of batches that gathered enough signatures",
	})

	promExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mst_pool_expired_total",
		Help: "total number of batches that expired",
	})

	promRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mst_pool_rejected_total",
		Help: "total number of rejected submissions by reason",
	}, []string{"reason"})
)

func init() {
	mst.PromCollectors = append(mst.PromCollectors, promPending, promGraduated,
		promExpired, promRejected)
}

// Pool is an in-memory pool of pending batches.
//
// - implements pool.Pool
type Pool struct {
	sync.Mutex

	state     *pool.State
	prepared  map[txn.Key]txn.Batch
	admission pool.Admission
	notifier  pool.Notifier
	watcher   *core.Watcher
	clock     func() time.Time
	logger    zerolog.Logger
}

type template struct {
	policy    pool.Policy
	admission pool.Admission
	notifier  pool.Notifier
	store     *status.Store
	clock     func() time.Time
	logger    zerolog.Logger
}

// PoolOption is the type of option to create a pool.
type PoolOption func(*template)

// WithPolicy is an option to set the completion and expiration policy.
func WithPolicy(p pool.Policy) PoolOption {
	return func(tmpl *template) {
		tmpl.policy = p
	}
}

// WithAdmission is an option to set the collaborator of the complete batches.
func WithAdmission(a pool.Admission) PoolOption {
	return func(tmpl *template) {
		tmpl.admission = a
	}
}

// WithNotifier is an option to set the collaborator of the expired batches.
func WithNotifier(n pool.Notifier) PoolOption {
	return func(tmpl *template) {
		tmpl.notifier = n
	}
}

// WithStatus is an option to record the outcome of the batches in the store
// before they are routed to the collaborators.
func WithStatus(store *status.Store) PoolOption {
	return func(tmpl *template) {
		tmpl.store = store
	}
}

// WithClock is an option to set the source of the time of the prepared events.
func WithClock(clock func() time.Time) PoolOption {
	return func(tmpl *template) {
		tmpl.clock = clock
	}
}

// WithLogger is an option to set the logger of the pool.
func WithLogger(l zerolog.Logger) PoolOption {
	return func(tmpl *template) {
		tmpl.logger = l
	}
}

// NewPool creates a new empty pool.
func NewPool(opts ...PoolOption) *Pool {
	tmpl := template{
		policy: pool.NewQuorumPolicy(pool.DefaultTTL),
		clock:  time.Now,
		logger: mst.Logger,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	if tmpl.store != nil {
		tmpl.admission = status.NewAdmission(tmpl.store, tmpl.admission)
		tmpl.notifier = status.NewNotifier(tmpl.store, tmpl.notifier)
	}

	return &Pool{
		state:     pool.NewState(tmpl.policy),
		prepared:  make(map[txn.Key]txn.Batch),
		admission: tmpl.admission,
		notifier:  tmpl.notifier,
		watcher:   core.NewWatcher(),
		clock:     tmpl.clock,
		logger:    tmpl.logger,
	}
}

// Watch adds an observer that is notified of every batch that leaves the pool,
// after the collaborators.
func (p *Pool) Watch(obs core.Observer) {
	p.watcher.Add(obs)
}

// Unwatch removes the observer.
func (p *Pool) Unwatch(obs core.Observer) {
	p.watcher.Remove(obs)
}

// GetPolicy returns the policy of the pool.
func (p *Pool) GetPolicy() pool.Policy {
	return p.state.GetPolicy()
}

// Len implements pool.Pool.
func (p *Pool) Len() int {
	p.Lock()
	defer p.Unlock()

	return p.state.Len()
}

// Contains implements pool.Pool.
func (p *Pool) Contains(key txn.Key) bool {
	p.Lock()
	defer p.Unlock()

	return p.state.Contains(key)
}

// Get returns a copy of the pending batch if it exists.
func (p *Pool) Get(key txn.Key) (txn.Batch, bool) {
	p.Lock()
	defer p.Unlock()

	return p.state.Get(key)
}

// Snapshot implements pool.Pool. It returns a copy of the state that the
// caller can freely use.
func (p *Pool) Snapshot() *pool.State {
	p.Lock()
	defer p.Unlock()

	return p.state.Clone()
}

// Prepared returns a copy of the batches that gathered enough signatures and
// did not expire yet, ordered by key.
func (p *Pool) Prepared() []txn.Batch {
	p.Lock()
	defer p.Unlock()

	batches := make([]txn.Batch, 0, len(p.prepared))
	for _, batch := range p.prepared {
		batches = append(batches, batch.Clone())
	}

	sort.Slice(batches, func(i, j int) bool {
		return batches[i].GetKey().Less(batches[j].GetKey())
	})

	return batches
}

// SetPlayers implements pool.Pool. It does nothing as the pool is in-memory
// and does not share the batches.
func (p *Pool) SetPlayers(mino.Players) error {
	return nil
}

// Add implements pool.Pool. It adds a batch submitted by a local client. The
// batch is admitted right away if it is already complete. A batch already
// prepared is ignored.
func (p *Pool) Add(batch txn.Batch) error {
	err := p.validate(batch)
	if err != nil {
		promRejected.WithLabelValues("policy").Inc()
		return xerrors.Errorf("invalid batch: %w", err)
	}

	graduated, err := p.merge([]txn.Batch{batch})
	if err != nil {
		promRejected.WithLabelValues("conflict").Inc()
		return xerrors.Errorf("couldn't add batch: %w", err)
	}

	p.admit(graduated)

	return nil
}

// Receive adds the batches received from a participant. The list is accepted
// or rejected as a whole: an invalid batch or a batch conflicting with a
// pending one leaves the pool untouched.
func (p *Pool) Receive(batches []txn.Batch) error {
	for _, batch := range batches {
		err := p.validate(batch)
		if err != nil {
			promRejected.WithLabelValues("policy").Inc()
			return xerrors.Errorf("invalid batch %v: %w", batch.GetKey(), err)
		}
	}

	graduated, err := p.merge(batches)
	if err != nil {
		promRejected.WithLabelValues("conflict").Inc()
		return xerrors.Errorf("couldn't merge batches: %w", err)
	}

	p.admit(graduated)

	return nil
}

// Merge merges the other state into the pool. The other state is left
// untouched.
func (p *Pool) Merge(other *pool.State) error {
	graduated, err := p.merge(other.GetAll())
	if err != nil {
		promRejected.WithLabelValues("conflict").Inc()
		return xerrors.Errorf("couldn't merge state: %w", err)
	}

	p.admit(graduated)

	return nil
}

// Diff returns the batches that the other state is missing, or for which the
// pool knows more signatures.
func (p *Pool) Diff(other *pool.State) *pool.State {
	p.Lock()
	defer p.Unlock()

	return p.state.Difference(other)
}

// Expire removes the batches expired at the given time and notifies them. It
// returns the expired batches.
func (p *Pool) Expire(now time.Time) []txn.Batch {
	p.Lock()
	expired := p.state.Expire(now)
	promPending.Set(float64(p.state.Len()))

	for key, batch := range p.prepared {
		if p.state.GetPolicy().IsExpired(batch, now) {
			delete(p.prepared, key)
		}
	}
	p.Unlock()

	promExpired.Add(float64(len(expired)))

	for _, batch := range expired {
		p.logger.Debug().Stringer("batch", batch).Msg("batch expired")

		if p.notifier != nil {
			err := p.notifier.NotifyExpired(batch)
			if err != nil {
				p.logger.Warn().Err(err).Stringer("batch", batch).Msg("notifier failed")
			}
		}

		p.watcher.Notify(core.Event{Type: core.EventExpired, Batch: batch, At: now})
	}

	return expired
}

// Close implements pool.Pool. It does nothing.
func (p *Pool) Close() error {
	return nil
}

// validate checks the properties of the batch that no signature can fix.
func (p *Pool) validate(batch txn.Batch) error {
	if batch.Len() == 0 {
		return xerrors.Errorf("empty batch: %w", ErrPolicyViolation)
	}

	for i, tx := range batch.GetTransactions() {
		if tx.GetQuorum() < 1 {
			return xerrors.Errorf("transaction %d has quorum %d: %w",
				i, tx.GetQuorum(), ErrPolicyViolation)
		}
	}

	return nil
}

// merge merges the batches into the state, and remembers the ones that are
// prepared. The views of a batch already prepared are checked against it and
// then ignored.
func (p *Pool) merge(batches []txn.Batch) ([]txn.Batch, error) {
	p.Lock()
	defer p.Unlock()

	pending := make([]txn.Batch, 0, len(batches))

	for _, batch := range batches {
		prepared, found := p.prepared[batch.GetKey()]
		if !found {
			pending = append(pending, batch)
			continue
		}

		_, err := prepared.Union(batch)
		if err != nil {
			return nil, xerrors.Errorf("couldn't merge %v: %w", batch.GetKey(), err)
		}
	}

	graduated, err := p.state.MergeBatches(pending)
	if err != nil {
		return nil, err
	}

	for _, batch := range graduated {
		p.prepared[batch.GetKey()] = batch.Clone()
	}

	promPending.Set(float64(p.state.Len()))

	return graduated, nil
}

func (p *Pool) admit(batches []txn.Batch) {
	promGraduated.Add(float64(len(batches)))

	for _, batch := range batches {
		p.logger.Debug().Stringer("batch", batch).Msg("batch graduated")

		if p.admission != nil {
			err := p.admission.Admit(batch)
			if err != nil {
				p.logger.Warn().Err(err).Stringer("batch", batch).Msg("admission failed")
			}
		}

		p.watcher.Notify(core.Event{Type: core.EventPrepared, Batch: batch, At: p.clock()})
	}
}
