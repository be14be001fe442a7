package main

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulate_Prepared(t *testing.T) {
	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{
		"mstnode", "simulate",
		"--nodes", "3",
		"--batches", "2",
		"--quorum", "3",
		"--gossip-period", "10ms",
		"--timeout", "10s",
		"--prometheus", "127.0.0.1:0",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "serving metrics on 127.0.0.1:0")
	require.Contains(t, out.String(),
		"batches: 2 prepared: 2 expired: 0 pending: 0 rejected: 0")
}

func TestSimulate_Expired(t *testing.T) {
	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{
		"mstnode", "simulate",
		"--nodes", "3",
		"--batches", "2",
		"--quorum", "5",
		"--ttl", "20ms",
		"--gossip-period", "10ms",
		"--expiry-period", "10ms",
		"--timeout", "10s",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(),
		"batches: 2 prepared: 0 expired: 2 pending: 0 rejected: 0")
}

func TestSimulate_Rejected(t *testing.T) {
	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{
		"mstnode", "simulate", "--nodes", "2", "--batches", "3", "--quorum", "0",
	})
	require.NoError(t, err)
	require.Contains(t, out.String(),
		"batches: 3 prepared: 0 expired: 0 pending: 0 rejected: 3")
}

func TestSimulate_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yml")

	content := strings.Join([]string{
		"nodes: 2",
		"batches: 1",
		"transactions: 2",
		"quorum: 2",
		"gossip_period: 10ms",
		"timeout: 10s",
	}, "\n")

	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))

	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{"mstnode", "simulate", "--config", path})
	require.NoError(t, err)
	require.Contains(t, out.String(), "batches: 1 prepared: 1")
	require.Contains(t, out.String(), "node1: ")

	// Flags override the file.
	out.Reset()
	err = newApp(out).Run([]string{"mstnode", "simulate", "--config", path, "--batches", "2"})
	require.NoError(t, err)
	require.Contains(t, out.String(), "batches: 2 prepared: 2")
}

func TestSimulate_BadConfig(t *testing.T) {
	dir := t.TempDir()

	err := newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--config", filepath.Join(dir, "none.yml")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read config file: ")

	path := filepath.Join(dir, "bad.yml")
	require.NoError(t, ioutil.WriteFile(path, []byte("nodes: [\n"), 0600))

	err = newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--config", path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal config: ")

	err = newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--nodes", "0"})
	require.EqualError(t, err, "invalid config: nodes must be positive: 0")

	err = newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--transactions", "0"})
	require.EqualError(t, err, "invalid config: transactions must be positive: 0")

	err = newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--gossip-period", "0s"})
	require.EqualError(t, err, "invalid config: periods must be positive")

	err = newApp(new(bytes.Buffer)).Run([]string{"mstnode", "simulate", "--db", filepath.Join(dir, "none", "db")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't open database: ")
}

func TestStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mst.db")

	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{
		"mstnode", "simulate",
		"--nodes", "2",
		"--batches", "1",
		"--quorum", "2",
		"--gossip-period", "10ms",
		"--timeout", "10s",
		"--db", dbPath,
	})
	require.NoError(t, err)
	require.Contains(t, out.String(), "prepared: 1")

	out.Reset()
	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath})
	require.NoError(t, err)
	require.Contains(t, out.String(), " prepared at ")

	key := strings.Fields(out.String())[0]

	out.Reset()
	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath, "--key", key})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out.String(), key+" prepared at "))

	out.Reset()
	unknown := strings.Repeat("00", 32)
	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath, "--key", unknown})
	require.NoError(t, err)
	require.Equal(t, unknown+" unknown\n", out.String())

	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath, "--key", "zz"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "malformed key: ")

	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath, "--key", "aa"})
	require.EqualError(t, err, "key must be 32 bytes long, got 1")
}

func TestStatus_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "mst.db")

	out := new(bytes.Buffer)

	err := newApp(out).Run([]string{"mstnode", "status", "--db", dbPath})
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't find database: ")

	err = newApp(out).Run([]string{
		"mstnode", "simulate", "--nodes", "1", "--batches", "0", "--db", dbPath,
	})
	require.NoError(t, err)

	out.Reset()
	err = newApp(out).Run([]string{"mstnode", "status", "--db", dbPath})
	require.NoError(t, err)
	require.Equal(t, "no record\n", out.String())
}
