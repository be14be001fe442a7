package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.dedis.ch/mst"
	"go.dedis.ch/mst/core"
	"go.dedis.ch/mst/core/status"
	"go.dedis.ch/mst/core/store/kv"
	"go.dedis.ch/mst/core/txn"
	"go.dedis.ch/mst/core/txn/pool"
	"go.dedis.ch/mst/core/txn/pool/gossip"
	"go.dedis.ch/mst/core/txn/pool/mem"
	"go.dedis.ch/mst/crypto"
	"go.dedis.ch/mst/crypto/ed25519"
	"go.dedis.ch/mst/crypto/loader"
	"go.dedis.ch/mst/mino"
	"go.dedis.ch/mst/mino/minoch"
	"golang.org/x/xerrors"
)

const pollPeriod = 10 * time.Millisecond

// outcomes collects the batches that left the pools of the participants.
//
// - implements pool.Admission
// - implements pool.Notifier
type outcomes struct {
	sync.Mutex
	prepared map[txn.Key]int
	expired  map[txn.Key]int
}

func newOutcomes() *outcomes {
	return &outcomes{
		prepared: make(map[txn.Key]int),
		expired:  make(map[txn.Key]int),
	}
}

// Admit implements pool.Admission.
func (o *outcomes) Admit(batch txn.Batch) error {
	o.Lock()
	o.prepared[batch.GetKey()]++
	o.Unlock()

	return nil
}

// NotifyExpired implements pool.Notifier.
func (o *outcomes) NotifyExpired(batch txn.Batch) error {
	o.Lock()
	o.expired[batch.GetKey()]++
	o.Unlock()

	return nil
}

func (o *outcomes) isPrepared(key txn.Key) bool {
	o.Lock()
	defer o.Unlock()

	return o.prepared[key] > 0
}

// progress logs the batches leaving the pool of a participant.
//
// - implements core.Observer
type progress struct {
	node string
}

// NotifyCallback implements core.Observer.
func (p progress) NotifyCallback(evt core.Event) {
	mst.Logger.Debug().
		Str("node", p.node).
		Stringer("batch", evt.Batch.GetKey()).
		Msgf("batch %s", evt.Type)
}

// generator creates the private key of a participant.
//
// - implements loader.Generator
type generator struct{}

// Generate implements loader.Generator.
func (generator) Generate() ([]byte, error) {
	return ed25519.NewSigner().(ed25519.Signer).MarshalBinary()
}

// loadSigner returns the signer of the participant. The key is stored in the
// database when there is one, so that a participant keeps its identity across
// runs.
func loadSigner(db kv.DB, name string) (crypto.Signer, error) {
	if db == nil {
		return ed25519.NewSigner(), nil
	}

	data, err := loader.NewKVLoader(db, name).LoadOrCreate(generator{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't load key: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create signer: %v", err)
	}

	return signer, nil
}

type participant struct {
	coord  *gossip.Coordinator
	mino   *minoch.Minoch
	signer crypto.Signer
}

// simulation is a set of in-process participants that submit and gossip the
// same batches.
type simulation struct {
	cfg          config
	participants []participant
	outcomes     *outcomes
	batches      []txn.Batch
	rejected     map[txn.Key]bool
}

func newSimulation(cfg config, db kv.DB) (*simulation, error) {
	var store *status.Store

	if db != nil {
		var err error

		store, err = status.NewStore(db)
		if err != nil {
			return nil, xerrors.Errorf("couldn't create status store: %v", err)
		}
	}

	manager := minoch.NewManager()
	results := newOutcomes()

	sim := &simulation{
		cfg:          cfg,
		participants: make([]participant, cfg.Nodes),
		outcomes:     results,
		rejected:     make(map[txn.Key]bool),
	}

	addrs := make([]mino.Address, cfg.Nodes)

	for i := range sim.participants {
		name := fmt.Sprintf("node%d", i)
		m := minoch.MustCreate(manager, name)

		signer, err := loadSigner(db, name)
		if err != nil {
			return nil, xerrors.Errorf("participant %s: %v", name, err)
		}

		opts := []mem.PoolOption{
			mem.WithPolicy(pool.NewQuorumPolicy(cfg.TTL)),
			mem.WithAdmission(results),
			mem.WithNotifier(results),
		}

		if store != nil {
			opts = append(opts, mem.WithStatus(store))
		}

		memPool := mem.NewPool(opts...)
		memPool.Watch(progress{node: name})

		coord := gossip.NewCoordinator(m, memPool,
			gossip.WithGossipPeriod(cfg.GossipPeriod),
			gossip.WithGossipAmount(cfg.GossipAmount),
			gossip.WithExpiryPeriod(cfg.ExpiryPeriod))

		sim.participants[i] = participant{
			coord:  coord,
			mino:   m,
			signer: signer,
		}

		addrs[i] = m.GetAddress()
	}

	for _, p := range sim.participants {
		err := p.coord.SetPlayers(mino.NewAddresses(addrs...))
		if err != nil {
			return nil, xerrors.Errorf("participant %v: couldn't set players: %v",
				p.mino.GetAddress(), err)
		}
	}

	return sim, nil
}

// submit creates the batches and submits the partial view of each signer to
// its own pool.
func (sim *simulation) submit(now time.Time) error {
	for b := 0; b < sim.cfg.Batches; b++ {
		batch, err := makeBatch(b, sim.cfg.Transactions, sim.cfg.Quorum, now)
		if err != nil {
			return xerrors.Errorf("couldn't create batch %d: %v", b, err)
		}

		sim.batches = append(sim.batches, batch)

		for s := 0; s < sim.cfg.Signers; s++ {
			p := sim.participants[(b+s)%len(sim.participants)]

			view, err := signBatch(batch, p.signer)
			if err != nil {
				return xerrors.Errorf("couldn't sign batch %d: %v", b, err)
			}

			err = p.coord.Add(view)
			if xerrors.Is(err, mem.ErrPolicyViolation) {
				sim.rejected[batch.GetKey()] = true
				break
			}
			if err != nil {
				return xerrors.Errorf("couldn't submit batch %d: %v", b, err)
			}
		}
	}

	return nil
}

func (sim *simulation) start() {
	for _, p := range sim.participants {
		p.coord.Start()
	}
}

func (sim *simulation) close() {
	for _, p := range sim.participants {
		p.coord.Close()
		p.mino.Close()
	}
}

// settled returns true when every batch is prepared by a participant, or has
// left every pool.
func (sim *simulation) settled() bool {
	for _, batch := range sim.batches {
		if sim.outcomes.isPrepared(batch.GetKey()) {
			continue
		}

		for _, p := range sim.participants {
			if p.coord.Contains(batch.GetKey()) {
				return false
			}
		}
	}

	return true
}

// wait blocks until the simulation is settled or the context is done.
func (sim *simulation) wait(ctx context.Context) bool {
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for !sim.settled() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}

	return true
}

func (sim *simulation) report(out io.Writer, settled bool) {
	prepared, expired, rejected, pending := 0, 0, 0, 0

	sim.outcomes.Lock()
	for _, batch := range sim.batches {
		key := batch.GetKey()

		switch {
		case sim.rejected[key]:
			rejected++
		case sim.outcomes.prepared[key] > 0:
			prepared++
		case sim.outcomes.expired[key] > 0:
			expired++
		default:
			pending++
		}
	}
	sim.outcomes.Unlock()

	fmt.Fprintf(out, "batches: %d prepared: %d expired: %d pending: %d rejected: %d\n",
		len(sim.batches), prepared, expired, pending, rejected)

	for i, p := range sim.participants {
		fmt.Fprintf(out, "node%d: %d pending\n", i, p.coord.Len())
	}

	if !settled {
		fmt.Fprintln(out, "timeout reached before the batches settled")
	}
}

func simulateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var db kv.DB

	dbPath := c.String("db")
	if dbPath != "" {
		db, err = kv.New(dbPath)
		if err != nil {
			return xerrors.Errorf("couldn't open database: %v", err)
		}

		defer db.Close()
	}

	addr := c.String("prometheus")
	if addr != "" {
		srv, err := servePrometheus(addr)
		if err != nil {
			return xerrors.Errorf("couldn't serve metrics: %v", err)
		}

		defer srv.Close()

		fmt.Fprintf(c.App.Writer, "serving metrics on %s\n", addr)
	}

	sim, err := newSimulation(cfg, db)
	if err != nil {
		return xerrors.Errorf("couldn't create simulation: %v", err)
	}

	defer sim.close()

	sim.start()

	err = sim.submit(time.Now())
	if err != nil {
		return err
	}

	mst.Logger.Info().
		Int("nodes", cfg.Nodes).
		Int("batches", cfg.Batches).
		Msg("simulation started")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	settled := sim.wait(ctx)

	sim.report(c.App.Writer, settled)

	return nil
}

func servePrometheus(addr string) (*http.Server, error) {
	registry := prometheus.NewRegistry()

	for _, collector := range mst.PromCollectors {
		err := registry.Register(collector)
		if err != nil {
			return nil, xerrors.Errorf("failed to register: %v", err)
		}
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to listen: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux}

	go func() {
		err := srv.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			mst.Logger.Err(err).Msg("metrics server failed")
		}
	}()

	return srv, nil
}

func makeBatch(index, size, quorum int, now time.Time) (txn.Batch, error) {
	txs := make([]*txn.Transaction, size)

	for i := range txs {
		payload := []byte(fmt.Sprintf("batch %d tx %d", index, i))

		tx, err := txn.NewTransaction(payload, quorum, now)
		if err != nil {
			return txn.Batch{}, err
		}

		txs[i] = tx
	}

	return txn.NewBatch(txs...)
}

// signBatch returns a view of the batch signed by the signer.
func signBatch(batch txn.Batch, signer crypto.Signer) (txn.Batch, error) {
	view := batch.Clone()

	for _, tx := range view.GetTransactions() {
		err := tx.Sign(signer)
		if err != nil {
			return txn.Batch{}, err
		}
	}

	return view, nil
}
