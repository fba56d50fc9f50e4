package store

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/vantagedesk/mira/internal/issuelog"
)

var (
	issueLogBucket    = []byte("issue_log")
	transcriptsBucket = []byte("transcripts")
)

const maxTranscriptEntries = 50

// TranscriptEntry is one question/answer exchange in a user's chat history.
type TranscriptEntry struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// BoltStore persists issue history and conversation transcripts. It
// implements issuelog.Log, so repetition counts survive restarts.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(issueLogBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(transcriptsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Append adds a normalized question to the user's issue history. The
// issuelog.Log contract has no error return; failures are logged and the
// entry is dropped (repetition detection degrades, nothing else breaks).
func (s *BoltStore) Append(user, question string) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		entries, err := readEntries(tx, user)
		if err != nil {
			return err
		}
		entries = append(entries, issuelog.Normalize(question))
		data, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		return tx.Bucket(issueLogBucket).Put([]byte(user), data)
	})
	if err != nil {
		log.Printf("store: failed to append issue for %s: %v", user, err)
	}
}

// Count returns how many times the normalized question appears in the
// user's issue history.
func (s *BoltStore) Count(user, question string) int {
	normalized := issuelog.Normalize(question)
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		entries, err := readEntries(tx, user)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e == normalized {
				count++
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("store: failed to count issues for %s: %v", user, err)
		return 0
	}
	return count
}

func readEntries(tx *bolt.Tx, user string) ([]string, error) {
	v := tx.Bucket(issueLogBucket).Get([]byte(user))
	if v == nil {
		return nil, nil
	}
	var entries []string
	if err := json.Unmarshal(v, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *BoltStore) AppendTranscript(user string, entry TranscriptEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var entries []TranscriptEntry
		if v := tx.Bucket(transcriptsBucket).Get([]byte(user)); v != nil {
			if err := json.Unmarshal(v, &entries); err != nil {
				return err
			}
		}
		entries = append(entries, entry)
		if len(entries) > maxTranscriptEntries {
			entries = entries[len(entries)-maxTranscriptEntries:]
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		return tx.Bucket(transcriptsBucket).Put([]byte(user), data)
	})
}

func (s *BoltStore) GetTranscript(user string) ([]TranscriptEntry, error) {
	var entries []TranscriptEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(transcriptsBucket).Get([]byte(user))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &entries)
	})
	return entries, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ issuelog.Log = (*BoltStore)(nil)
