package store

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor"
	"github.com/pkg/errors"
	"github.com/scrylabs/solvent/symexec/vm"
	"github.com/scrylabs/solvent/utils"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"
)

const (
	// visitedBucket is the bucket holding visited state fingerprint records.
	visitedBucket = "visited"

	// probesBucket is the bucket holding reported probe site records.
	probesBucket = "probes"

	// flushThreshold is the number of pending writes buffered in memory before they are flushed to disk in one
	// transaction.
	flushThreshold = 25

	// storeFilename is the name of the database file within the store directory.
	storeFilename = "state_store.db"
)

// visitedRecord describes the persisted record for one visited state fingerprint.
type visitedRecord struct {
	// Depth is the call-sequence depth at which the state was first discovered.
	Depth int `cbor:"depth"`

	// SequenceLength is the length of the call sequence that produced the state.
	SequenceLength int `cbor:"sequenceLength"`
}

// probeRecord describes the persisted record for one reported assertion-violation probe site.
type probeRecord struct {
	// ContractName is the name of the contract the probe was found in.
	ContractName string `cbor:"contractName"`

	// Sig is the canonical signature of the violating function.
	Sig string `cbor:"sig"`

	// ReportedAt is the wall-clock time the probe was reported.
	ReportedAt time.Time `cbor:"reportedAt"`
}

// pendingWrite describes a buffered key/value write destined for a bucket.
type pendingWrite struct {
	bucket string
	key    []byte
	value  []byte
}

// StateStore persists visited state fingerprints and reported probe sites to disk for post-run inspection. It is a
// diagnostic artifact of a run, not a source of dedup decisions: the in-memory visited set remains authoritative
// during exploration. The store is used only from the exploration goroutine; its internal lock exists solely to
// make Close safe against a concurrent signal-driven teardown.
type StateStore struct {
	// db is the underlying bbolt database.
	db *bbolt.DB

	// pendingWriteMutex guards pendingWrites.
	pendingWriteMutex sync.Mutex

	// pendingWrites buffers writes which have not been flushed to disk yet.
	pendingWrites []pendingWrite
}

// Open creates or opens a StateStore in the provided directory, creating the directory if needed.
func Open(dir string) (*StateStore, error) {
	if err := utils.MakeDirectory(dir); err != nil {
		return nil, errors.Wrapf(err, "could not create state store directory %q", dir)
	}

	db, err := bbolt.Open(filepath.Join(dir, storeFilename), 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "could not open state store")
	}

	// Create our buckets if they don't exist.
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(visitedBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(probesBucket))
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize state store buckets")
	}

	return &StateStore{
		db:            db,
		pendingWrites: make([]pendingWrite, 0),
	}, nil
}

// RecordVisited persists the discovery of a state fingerprint at the provided depth and call sequence length.
// Writes are buffered and flushed in batches.
func (s *StateStore) RecordVisited(fingerprint vm.Fingerprint, depth int, sequenceLength int) error {
	value, err := cbor.Marshal(visitedRecord{Depth: depth, SequenceLength: sequenceLength}, cbor.CanonicalEncOptions())
	if err != nil {
		return errors.WithStack(err)
	}
	return s.queueWrite(pendingWrite{bucket: visitedBucket, key: fingerprint[:], value: value})
}

// RecordProbe persists a reported probe site.
func (s *StateStore) RecordProbe(contractName string, sig string) error {
	value, err := cbor.Marshal(probeRecord{
		ContractName: contractName,
		Sig:          sig,
		ReportedAt:   time.Now(),
	}, cbor.CanonicalEncOptions())
	if err != nil {
		return errors.WithStack(err)
	}
	return s.queueWrite(pendingWrite{bucket: probesBucket, key: probeKey(contractName, sig), value: value})
}

// HasVisited reports whether the provided fingerprint has been recorded, consulting both pending writes and disk.
func (s *StateStore) HasVisited(fingerprint vm.Fingerprint) (bool, error) {
	// Check pending writes first.
	s.pendingWriteMutex.Lock()
	for _, write := range s.pendingWrites {
		if write.bucket == visitedBucket && string(write.key) == string(fingerprint[:]) {
			s.pendingWriteMutex.Unlock()
			return true, nil
		}
	}
	s.pendingWriteMutex.Unlock()

	// Fall back to disk.
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(visitedBucket)).Get(fingerprint[:]) != nil
		return nil
	})
	return found, err
}

// VisitedCount returns the number of visited fingerprints recorded on disk. Pending writes are not counted until
// flushed.
func (s *StateStore) VisitedCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(visitedBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// queueWrite buffers a write and flushes the buffer once it reaches the flush threshold.
func (s *StateStore) queueWrite(write pendingWrite) error {
	s.pendingWriteMutex.Lock()
	s.pendingWrites = append(s.pendingWrites, write)
	shouldFlush := len(s.pendingWrites) >= flushThreshold
	s.pendingWriteMutex.Unlock()

	if shouldFlush {
		return s.Flush()
	}
	return nil
}

// Flush writes all buffered writes to disk in a single transaction.
func (s *StateStore) Flush() error {
	s.pendingWriteMutex.Lock()
	writes := s.pendingWrites
	s.pendingWrites = make([]pendingWrite, 0)
	s.pendingWriteMutex.Unlock()

	if len(writes) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, write := range writes {
			if err := tx.Bucket([]byte(write.bucket)).Put(write.key, write.value); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "could not flush state store writes")
}

// Close flushes any buffered writes and closes the underlying database.
func (s *StateStore) Close() error {
	flushErr := s.Flush()
	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// probeKey derives a fixed-size key for a probe site from its contract name and function signature.
func probeKey(contractName string, sig string) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(contractName))
	hash.Write([]byte("."))
	hash.Write([]byte(sig))
	return hash.Sum(nil)
}
