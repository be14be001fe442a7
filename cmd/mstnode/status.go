package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/mst/core/status"
	"go.dedis.ch/mst/core/store/kv"
	"go.dedis.ch/mst/core/txn"
	"golang.org/x/xerrors"
)

func statusAction(c *cli.Context) error {
	path := c.String("db")

	// bbolt creates the file when it does not exist.
	_, err := os.Stat(path)
	if err != nil {
		return xerrors.Errorf("couldn't find database: %v", err)
	}

	db, err := kv.New(path)
	if err != nil {
		return xerrors.Errorf("couldn't open database: %v", err)
	}

	defer db.Close()

	store, err := status.NewStore(db)
	if err != nil {
		return xerrors.Errorf("couldn't create status store: %v", err)
	}

	if c.String("key") != "" {
		key, err := parseKey(c.String("key"))
		if err != nil {
			return err
		}

		rec, err := store.Get(key)
		if err != nil {
			return xerrors.Errorf("couldn't read status: %v", err)
		}

		if rec.Status == status.Unknown {
			fmt.Fprintf(c.App.Writer, "%x unknown\n", key[:])
			return nil
		}

		fmt.Fprintln(c.App.Writer, rec)

		return nil
	}

	records, err := store.All()
	if err != nil {
		return xerrors.Errorf("couldn't read status: %v", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(c.App.Writer, "no record")
	}

	for _, rec := range records {
		fmt.Fprintln(c.App.Writer, rec)
	}

	return nil
}

func parseKey(text string) (txn.Key, error) {
	key := txn.Key{}

	data, err := hex.DecodeString(text)
	if err != nil {
		return key, xerrors.Errorf("malformed key: %v", err)
	}

	if len(data) != txn.KeyLength {
		return key, xerrors.Errorf("key must be %d bytes long, got %d", txn.KeyLength, len(data))
	}

	copy(key[:], data)

	return key, nil
}
