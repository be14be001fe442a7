package main

import (
	"io/ioutil"
	"time"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/mst/core/txn/pool"
	"go.dedis.ch/mst/core/txn/pool/gossip"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// config is the configuration of a simulation. It can be read from a YAML
// file, and the flags that are set override it.
type config struct {
	Nodes        int           `yaml:"nodes"`
	Batches      int           `yaml:"batches"`
	Transactions int           `yaml:"transactions"`
	Quorum       int           `yaml:"quorum"`
	Signers      int           `yaml:"signers"`
	TTL          time.Duration `yaml:"ttl"`
	GossipPeriod time.Duration `yaml:"gossip_period"`
	GossipAmount int           `yaml:"gossip_amount"`
	ExpiryPeriod time.Duration `yaml:"expiry_period"`
	Timeout      time.Duration `yaml:"timeout"`
}

func defaultConfig() config {
	return config{
		Nodes:        4,
		Batches:      10,
		Transactions: 1,
		Quorum:       3,
		TTL:          pool.DefaultTTL,
		GossipPeriod: 100 * time.Millisecond,
		GossipAmount: gossip.DefaultGossipAmount,
		ExpiryPeriod: time.Second,
		Timeout:      time.Minute,
	}
}

func simulateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML configuration file",
		},
		&cli.IntFlag{Name: "nodes", Usage: "number of participants"},
		&cli.IntFlag{Name: "batches", Usage: "number of batches to submit"},
		&cli.IntFlag{Name: "transactions", Usage: "number of transactions per batch"},
		&cli.IntFlag{Name: "quorum", Usage: "quorum of every transaction"},
		&cli.IntFlag{
			Name:  "signers",
			Usage: "number of participants signing each batch, all of them if zero",
		},
		&cli.DurationFlag{Name: "ttl", Usage: "time before a pending batch expires"},
		&cli.DurationFlag{Name: "gossip-period", Usage: "time between two gossip rounds"},
		&cli.IntFlag{Name: "gossip-amount", Usage: "participants contacted per round"},
		&cli.DurationFlag{Name: "expiry-period", Usage: "time between two expirations"},
		&cli.DurationFlag{Name: "timeout", Usage: "maximum duration of the simulation"},
		&cli.StringFlag{
			Name:  "db",
			Usage: "path to a database to record the outcome of the batches",
		},
		&cli.StringFlag{
			Name:  "prometheus",
			Usage: "address to serve the metrics, e.g. :9100",
		},
	}
}

// loadConfig returns the configuration of the file, if any, updated with the
// flags that are set.
func loadConfig(c *cli.Context) (config, error) {
	cfg := defaultConfig()

	path := c.String("config")
	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return cfg, xerrors.Errorf("failed to read config file: %v", err)
		}

		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return cfg, xerrors.Errorf("failed to unmarshal config: %v", err)
		}
	}

	ints := map[string]*int{
		"nodes":         &cfg.Nodes,
		"batches":       &cfg.Batches,
		"transactions":  &cfg.Transactions,
		"quorum":        &cfg.Quorum,
		"signers":       &cfg.Signers,
		"gossip-amount": &cfg.GossipAmount,
	}

	for name, value := range ints {
		if c.IsSet(name) {
			*value = c.Int(name)
		}
	}

	durations := map[string]*time.Duration{
		"ttl":           &cfg.TTL,
		"gossip-period": &cfg.GossipPeriod,
		"expiry-period": &cfg.ExpiryPeriod,
		"timeout":       &cfg.Timeout,
	}

	for name, value := range durations {
		if c.IsSet(name) {
			*value = c.Duration(name)
		}
	}

	if cfg.Signers <= 0 || cfg.Signers > cfg.Nodes {
		cfg.Signers = cfg.Nodes
	}

	err := cfg.validate()
	if err != nil {
		return cfg, xerrors.Errorf("invalid config: %v", err)
	}

	return cfg, nil
}

func (cfg config) validate() error {
	if cfg.Nodes < 1 {
		return xerrors.Errorf("nodes must be positive: %d", cfg.Nodes)
	}

	if cfg.Transactions < 1 {
		return xerrors.Errorf("transactions must be positive: %d", cfg.Transactions)
	}

	if cfg.GossipPeriod <= 0 || cfg.ExpiryPeriod <= 0 {
		return xerrors.New("periods must be positive")
	}

	return nil
}
