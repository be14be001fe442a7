// Package gossip implements a pool that spreads the signatures of the pending
// batches to the other participants with an anti-entropy protocol.
//
// The coordinator remembers, for each participant, the signatures it knows
// the participant holds: what was sent to it successfully and what was
// received from it. A gossip round sends to a few participants the batches
// that they are missing or for which the local pool knows more signatures.
// Lost messages are not retried as such, the next round computes the
// difference again.
//
// A batch that is prepared locally is sent once in its complete form to every
// participant not known to hold it, so that the participants holding a partial
// view prepare it as well instead of letting it expire.
package gossip

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/mst"
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/core/txn/json"
	"go.dedis.ch/mst/core/txn/pool"
	"go.dedis.ch/mst/core/txn/pool/mem"
	"go.dedis.ch/mst/mino"
	"golang.org/x/xerrors"
)

const (
	// DefaultGossipPeriod is the default time between two gossip rounds.
	DefaultGossipPeriod = 5 * time.Second

	// DefaultGossipAmount is the default number of participants contacted in a
	// gossip round.
	DefaultGossipAmount = 2

	// DefaultExpiryPeriod is the default time between two expirations of the
	// pending batches.
	DefaultExpiryPeriod = time.Minute

	// DefaultSendTimeout is the default time allowed to deliver a message.
	DefaultSendTimeout = 2 * time.Second
)

var (
	promRounds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mst_gossip_rounds_total",
		Help: "total number of gossip rounds",
	})

	promMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mst_gossip_messages_total",
		Help: "total number of gossip messages by outcome",
	}, []string{"outcome"})
)

func init() {
	mst.PromCollectors = append(mst.PromCollectors, promRounds, promMessages)
}

// Format is the wire format of the messages.
type Format interface {
	Encode(batches []txn.Batch) ([]byte, error)
	Decode(data []byte) ([]txn.Batch, error)
}

// peer is the knowledge about a participant.
type peer struct {
	// state holds the pending views the participant is known to hold.
	state *pool.State
	// prepared holds the keys of the prepared batches the participant is
	// known to hold.
	prepared map[txn.Key]struct{}
}

func newPeer(policy pool.Policy) *peer {
	return &peer{
		state:    pool.NewState(policy),
		prepared: make(map[txn.Key]struct{}),
	}
}

// Coordinator is a pool that gossips the pending batches to the participants.
//
// - implements pool.Pool
type Coordinator struct {
	sync.Mutex

	pool   *mem.Pool
	mino   mino.Mino
	format Format
	logger zerolog.Logger
	clock  func() time.Time

	gossipPeriod time.Duration
	gossipAmount int
	expiryPeriod time.Duration
	sendTimeout  time.Duration

	players mino.Players
	peers   map[string]*peer
	offset  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option is the type of option to create a coordinator.
type Option func(*Coordinator)

// WithGossipPeriod is an option to set the time between two gossip rounds.
func WithGossipPeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		c.gossipPeriod = d
	}
}

// WithGossipAmount is an option to set the number of participants contacted
// in a gossip round.
func WithGossipAmount(n int) Option {
	return func(c *Coordinator) {
		c.gossipAmount = n
	}
}

// WithExpiryPeriod is an option to set the time between two expirations.
func WithExpiryPeriod(d time.Duration) Option {
	return func(c *Coordinator) {
		c.expiryPeriod = d
	}
}

// WithSendTimeout is an option to set the time allowed to deliver a message.
func WithSendTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.sendTimeout = d
	}
}

// WithClock is an option to set the source of the current time used for the
// expirations.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		c.clock = clock
	}
}

// WithFormat is an option to set the wire format of the messages.
func WithFormat(f Format) Option {
	return func(c *Coordinator) {
		c.format = f
	}
}

// NewCoordinator creates a coordinator of the pool on top of the overlay. It
// does nothing until it is started.
func NewCoordinator(m mino.Mino, p *mem.Pool, opts ...Option) *Coordinator {
	c := &Coordinator{
		pool:         p,
		mino:         m,
		format:       json.NewFormat(),
		clock:        time.Now,
		gossipPeriod: DefaultGossipPeriod,
		gossipAmount: DefaultGossipAmount,
		expiryPeriod: DefaultExpiryPeriod,
		sendTimeout:  DefaultSendTimeout,
		players:      mino.NewAddresses(),
		peers:        make(map[string]*peer),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = mst.Logger.With().Str("addr", m.GetAddress().String()).Logger()

	return c
}

// GetPool returns the local pool.
func (c *Coordinator) GetPool() *mem.Pool {
	return c.pool
}

// Len implements pool.Pool.
func (c *Coordinator) Len() int {
	return c.pool.Len()
}

// Contains implements pool.Pool.
func (c *Coordinator) Contains(key txn.Key) bool {
	return c.pool.Contains(key)
}

// Snapshot implements pool.Pool.
func (c *Coordinator) Snapshot() *pool.State {
	return c.pool.Snapshot()
}

// Add implements pool.Pool. It adds a batch submitted by a local client. The
// batch is gossiped in the next rounds.
func (c *Coordinator) Add(batch txn.Batch) error {
	err := c.pool.Add(batch)
	if err != nil {
		return xerrors.Errorf("pool: %w", err)
	}

	return nil
}

// SetPlayers implements pool.Pool. It sets the participants the batches are
// gossiped to. The local address is ignored. The knowledge about the
// participants that are kept is preserved.
func (c *Coordinator) SetPlayers(players mino.Players) error {
	me := c.mino.GetAddress()

	addrs := make([]mino.Address, 0, players.Len())
	known := make(map[string]*peer)

	c.Lock()
	defer c.Unlock()

	iter := players.AddressIterator()
	for iter.HasNext() {
		addr := iter.GetNext()
		if addr.Equal(me) {
			continue
		}

		addrs = append(addrs, addr)

		p, found := c.peers[addr.String()]
		if !found {
			p = newPeer(c.pool.GetPolicy())
		}

		known[addr.String()] = p
	}

	c.players = mino.NewAddresses(addrs...)
	c.peers = known
	c.offset = 0

	return nil
}

// Start starts the routine that handles the incoming messages, the gossip
// rounds and the expirations. It does nothing if the coordinator is already
// running.
func (c *Coordinator) Start() {
	c.Lock()
	defer c.Unlock()

	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go c.run(ctx)
}

// Close implements pool.Pool. It stops the routine and waits for it to
// return.
func (c *Coordinator) Close() error {
	c.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.Unlock()

	if cancel != nil {
		cancel()
		c.wg.Wait()
	}

	err := c.pool.Close()
	if err != nil {
		return xerrors.Errorf("failed to close pool: %v", err)
	}

	return nil
}

// Gossip runs a gossip round: the next participants in the rotation receive
// the batches they are missing. It returns the number of messages delivered.
func (c *Coordinator) Gossip(ctx context.Context) int {
	promRounds.Inc()

	logger := c.logger.With().Str("round", xid.New().String()).Logger()

	c.Lock()
	n := c.players.Len()
	targets := c.players.Take(mino.RingFilter(c.offset, c.gossipAmount, n))
	if n > 0 {
		c.offset = (c.offset + c.gossipAmount) % n
	}
	c.Unlock()

	sent := 0

	iter := targets.AddressIterator()
	for iter.HasNext() {
		addr := iter.GetNext()

		delivered, err := c.gossipTo(ctx, addr, logger)
		if err != nil {
			promMessages.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Stringer("to", addr).Msg("gossip failed")
			continue
		}

		if delivered {
			sent++
		}
	}

	return sent
}

// Expire expires the pending batches and forgets the batches the
// participants were known to hold that are expired.
func (c *Coordinator) Expire(now time.Time) []txn.Batch {
	expired := c.pool.Expire(now)

	prepared := make(map[txn.Key]struct{})
	for _, batch := range c.pool.Prepared() {
		prepared[batch.GetKey()] = struct{}{}
	}

	c.Lock()
	for _, p := range c.peers {
		p.state.Expire(now)

		for key := range p.prepared {
			_, found := prepared[key]
			if !found {
				delete(p.prepared, key)
			}
		}
	}
	c.Unlock()

	return expired
}

// Handle processes a message received from a participant. A message that
// cannot be decoded or that conflicts with the pending batches is dropped.
func (c *Coordinator) Handle(env mino.Envelope) error {
	batches, err := c.format.Decode(env.Payload)
	if err != nil {
		promMessages.WithLabelValues("malformed").Inc()
		return xerrors.Errorf("couldn't decode message from %v: %v", env.From, err)
	}

	err = c.pool.Receive(batches)
	if err != nil {
		promMessages.WithLabelValues("rejected").Inc()
		return xerrors.Errorf("message from %v rejected: %w", env.From, err)
	}

	promMessages.WithLabelValues("received").Inc()

	c.Lock()
	p, found := c.peers[env.From.String()]
	if found {
		for _, batch := range batches {
			if pool.IsBatchComplete(c.pool.GetPolicy(), batch) {
				p.prepared[batch.GetKey()] = struct{}{}
			}
		}

		_, err = p.state.MergeBatches(batches)
	}
	c.Unlock()

	if err != nil {
		// The batch stays unknown in the peer state and will be sent again.
		c.logger.Debug().Err(err).Stringer("from", env.From).Msg("peer state conflict")
	}

	return nil
}

func (c *Coordinator) gossipTo(ctx context.Context, addr mino.Address,
	logger zerolog.Logger) (bool, error) {

	prepared := c.pool.Prepared()

	c.Lock()
	p, found := c.peers[addr.String()]
	var known *pool.State
	var complete []txn.Batch
	if found {
		known = p.state.Clone()

		for _, batch := range prepared {
			_, sent := p.prepared[batch.GetKey()]
			if !sent {
				complete = append(complete, batch)
			}
		}
	}
	c.Unlock()

	if !found {
		return false, xerrors.Errorf("unknown participant %v", addr)
	}

	pending := c.pool.Diff(known).GetAll()
	if len(pending) == 0 && len(complete) == 0 {
		return false, nil
	}

	batches := append(append([]txn.Batch{}, pending...), complete...)

	data, err := c.format.Encode(batches)
	if err != nil {
		return false, xerrors.Errorf("failed to encode: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	err = c.mino.Send(ctx, data, addr)
	if err != nil {
		return false, xerrors.Errorf("failed to send: %v", err)
	}

	promMessages.WithLabelValues("sent").Inc()

	logger.Debug().
		Stringer("to", addr).
		Int("batches", len(batches)).
		Msg("batches gossiped")

	c.Lock()
	for _, batch := range complete {
		p.prepared[batch.GetKey()] = struct{}{}
	}

	_, err = p.state.MergeBatches(pending)
	c.Unlock()

	if err != nil {
		logger.Debug().Err(err).Stringer("to", addr).Msg("peer state conflict")
	}

	return true, nil
}

func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	gossipTicker := time.NewTicker(c.gossipPeriod)
	defer gossipTicker.Stop()

	expiryTicker := time.NewTicker(c.expiryPeriod)
	defer expiryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.mino.Receive():
			err := c.Handle(env)
			if err != nil {
				c.logger.Warn().Err(err).Msg("message dropped")
			}
		case <-gossipTicker.C:
			c.Gossip(ctx)
		case <-expiryTicker.C:
			c.Expire(c.clock())
		}
	}
}
