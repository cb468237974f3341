// Package archive keeps the diffs the CLI produced, so they can be listed
// and shown again later.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrNotFound   = errors.New("archive entry not found")
	ErrCorrupted  = errors.New("archive entry body does not match its hash")
	ErrInvalidID  = errors.New("invalid archive entry id")
	entryPrefix   = []byte("entry:")
	bodyKeyPrefix = "body:"
)

// Entry is one archived conversion.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`   // to-perforce, to-git or changelist
	Source     string    `json:"source"` // input file or changelist number
	Files      []string  `json:"files"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`

	Body []byte `json:"-"`
}

type Options struct {
	CacheSize        int
	MinCompressSize  int
	CompressionLevel int
}

// Archive stores entry metadata and bodies in Badger, bodies zstd
// compressed when large enough and cached once read.
type Archive struct {
	db    *badger.DB
	cache *lru.Cache[string, []byte]
	comp  *compressor
	now   func() time.Time
}

func New(db *badger.DB, opts Options) (*Archive, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.MinCompressSize <= 0 {
		opts.MinCompressSize = DefaultMinCompressSize
	}
	if opts.CompressionLevel <= 0 {
		opts.CompressionLevel = 3
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	comp, err := newCompressor(opts.MinCompressSize, opts.CompressionLevel)
	if err != nil {
		return nil, err
	}

	return &Archive{db: db, cache: cache, comp: comp, now: time.Now}, nil
}

// Put stores e and returns its id, generating one when e.ID is empty.
func (a *Archive) Put(e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, err := uuid.Parse(e.ID); err != nil {
		return "", ErrInvalidID
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.now()
	}

	body := e.Body
	if body == nil {
		body = []byte{}
	}
	e.Hash = hashBody(body)
	e.Size = int64(len(body))

	stored, compressed := a.comp.compress(body)
	e.Compressed = compressed

	meta, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encoding entry: %w", err)
	}

	err = a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(e.ID), meta); err != nil {
			return err
		}
		return txn.Set(bodyKey(e.ID), stored)
	})
	if err != nil {
		return "", fmt.Errorf("storing entry: %w", err)
	}

	// The cache owns its copy; callers may reuse body.
	a.cache.Add(e.ID, slices.Clone(body))
	return e.ID, nil
}

// Get returns the entry with its body.
func (a *Archive) Get(id string) (*Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	e, err := a.meta(id)
	if err != nil {
		return nil, err
	}

	if body, ok := a.cache.Get(id); ok {
		e.Body = slices.Clone(body)
		return e, nil
	}

	var stored []byte
	err = a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bodyKey(id))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	body := stored
	if body == nil {
		body = []byte{}
	}
	if e.Compressed {
		if body, err = a.comp.decompress(stored); err != nil {
			return nil, fmt.Errorf("decompressing body: %w", err)
		}
	}
	if hashBody(body) != e.Hash {
		return nil, ErrCorrupted
	}

	a.cache.Add(id, slices.Clone(body))
	e.Body = body
	return e, nil
}

// List returns every entry without bodies, newest first.
func (a *Archive) List() ([]Entry, error) {
	var entries []Entry

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Delete removes an entry and its body.
func (a *Archive) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	if _, err := a.meta(id); err != nil {
		return err
	}

	err := a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(entryKey(id)); err != nil {
			return err
		}
		return txn.Delete(bodyKey(id))
	})
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	a.cache.Remove(id)
	return nil
}

func (a *Archive) meta(id string) (*Entry, error) {
	var e Entry
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	return &e, nil
}

func entryKey(id string) []byte {
	return append(append([]byte{}, entryPrefix...), id...)
}

func bodyKey(id string) []byte {
	return []byte(bodyKeyPrefix + id)
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
