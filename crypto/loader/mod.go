// Package loader defines an abstraction to load a key from a persistent
// storage. It allows one to either read it from the storage, or to generate a
// new one and store it for the next time.
package loader

import (
	"go.dedis.ch/mst/core/store/kv"
	"golang.org/x/xerrors"
)

var bucketName = []byte("keys")

// Generator is the interface to implement to generate a key.
type Generator interface {
	Generate() ([]byte, error)
}

// Loader is an abstraction to load a key from a storage.
type Loader interface {
	// LoadOrCreate tries to load the key and returns it if found, otherwise it
	// generates a new one using the generator and stores it.
	LoadOrCreate(Generator) ([]byte, error)
}

// kvLoader is a loader that stores the keys in a bucket of a database.
//
// - implements loader.Loader
type kvLoader struct {
	db   kv.DB
	name []byte
}

// NewKVLoader creates a new loader of the key of the given name.
func NewKVLoader(db kv.DB, name string) Loader {
	return kvLoader{
		db:   db,
		name: []byte(name),
	}
}

// LoadOrCreate implements loader.Loader. The generation and the write happen
// in the same database transaction.
func (l kvLoader) LoadOrCreate(g Generator) ([]byte, error) {
	var data []byte

	err := l.db.Update(bucketName, func(b kv.Bucket) error {
		value := b.Get(l.name)
		if value != nil {
			data = append([]byte{}, value...)
			return nil
		}

		generated, err := g.Generate()
		if err != nil {
			return xerrors.Errorf("generator failed: %v", err)
		}

		err = b.Set(l.name, generated)
		if err != nil {
			return xerrors.Errorf("while writing: %v", err)
		}

		data = generated

		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't load key '%s': %v", l.name, err)
	}

	return data, nil
}
