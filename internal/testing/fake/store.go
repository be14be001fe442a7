package fake

import "go.dedis.ch/mst/core/store/kv"

// DB is a fake in-memory implementation of a key/value database.
//
// - implements kv.DB
type DB struct {
	buckets   map[string]*Bucket
	errView   error
	errUpdate error
}

// NewInMemoryDB returns a new empty database.
func NewInMemoryDB() *DB {
	return &DB{buckets: make(map[string]*Bucket)}
}

// NewBadDB returns a database that fails to open transactions.
func NewBadDB() *DB {
	return &DB{
		buckets:   make(map[string]*Bucket),
		errView:   fakeErr,
		errUpdate: fakeErr,
	}
}

// NewBadViewDB returns a database that fails to open read-only transactions.
func NewBadViewDB() *DB {
	return &DB{
		buckets: make(map[string]*Bucket),
		errView: fakeErr,
	}
}

// SetBucket sets the bucket of the given name.
func (db *DB) SetBucket(name []byte, b *Bucket) {
	db.buckets[string(name)] = b
}

// View implements kv.DB.
func (db *DB) View(name []byte, fn func(kv.Bucket) error) error {
	if db.errView != nil {
		return db.errView
	}

	bucket, found := db.buckets[string(name)]
	if !found {
		return fakeErr
	}

	return fn(bucket)
}

// Update implements kv.DB.
func (db *DB) Update(name []byte, fn func(kv.Bucket) error) error {
	if db.errUpdate != nil {
		return db.errUpdate
	}

	bucket, found := db.buckets[string(name)]
	if !found {
		bucket = NewBucket()
		db.buckets[string(name)] = bucket
	}

	return fn(bucket)
}

// Close implements kv.DB.
func (db *DB) Close() error {
	return nil
}

// Bucket is a fake in-memory implementation of a bucket.
//
// - implements kv.Bucket
type Bucket struct {
	kv.Bucket
	values map[string][]byte
	errSet error
}

// NewBucket returns a new empty bucket.
func NewBucket() *Bucket {
	return &Bucket{values: make(map[string][]byte)}
}

// NewBadBucket returns a bucket that fails to write.
func NewBadBucket() *Bucket {
	return &Bucket{values: make(map[string][]byte), errSet: fakeErr}
}

// Get implements kv.Bucket.
func (b *Bucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

// Set implements kv.Bucket.
func (b *Bucket) Set(key, value []byte) error {
	if b.errSet != nil {
		return b.errSet
	}

	b.values[string(key)] = append([]byte{}, value...)

	return nil
}

// Delete implements kv.Bucket.
func (b *Bucket) Delete(key []byte) error {
	delete(b.values, string(key))

	return nil
}

// ForEach implements kv.Bucket. The order is unspecified.
func (b *Bucket) ForEach(fn func(k, v []byte) error) error {
	for k, v := range b.values {
		err := fn([]byte(k), v)
		if err != nil {
			return err
		}
	}

	return nil
}
