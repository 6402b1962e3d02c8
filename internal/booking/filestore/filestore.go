// Package filestore persists the terrace state as one JSON document, the
// db.json layout the front-end tooling already reads.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"terrace-booking/internal/booking"
	"terrace-booking/internal/models"
)

type document struct {
	Tables   []models.Table   `json:"tables"`
	Bookings []models.Booking `json:"bookings"`
}

type Store struct {
	path string
	seed func() []models.Table
	mu   sync.Mutex
}

// New returns a store backed by path. A nil seed generates the default
// catalog when the file does not exist yet.
func New(path string, seed func() []models.Table) *Store {
	return &Store{path: path, seed: seed}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(ctx context.Context) (models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		snap := booking.Bootstrap(s.seed)
		if err := s.write(snap); err != nil {
			return models.Snapshot{}, err
		}
		return snap, nil
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("read %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode %s: %w", s.path, err)
	}

	snap := models.Snapshot{
		Tables:   booking.Initialize(doc.Tables, s.seed),
		Bookings: doc.Bookings,
	}
	if snap.Bookings == nil {
		snap.Bookings = []models.Booking{}
	}
	if len(doc.Tables) == 0 {
		if err := s.write(snap); err != nil {
			return models.Snapshot{}, err
		}
	}
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(snap)
}

// write replaces the file through a temp file and rename so readers never
// observe a half-written document.
func (s *Store) write(snap models.Snapshot) error {
	doc := document{Tables: snap.Tables, Bookings: snap.Bookings}
	if doc.Bookings == nil {
		doc.Bookings = []models.Booking{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
