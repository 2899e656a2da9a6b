// Package store is the bridge's single persisted JSON document: users,
// addresses, invoices, nonces, and payments, written atomically via
// write-to-temp-then-rename and guarded by a single coarse lock (spec
// §6.5 models this explicitly as a single-writer document, not a
// database — see DESIGN.md for why no library in the retrieval pack fits
// this shape).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liquidityos/lnescrow/domain"
)

// document is the on-disk shape: exactly the five top-level keys spec §6.5
// names.
type document struct {
	Users     map[string]json.RawMessage   `json:"users"`
	Addresses map[string]json.RawMessage   `json:"addresses"`
	Invoices  map[string]*domain.InvoiceRecord `json:"invoices"`
	Nonces    map[string]uint64           `json:"nonces"`
	Payments  map[string]*domain.PaymentRecord `json:"payments"`
}

func emptyDocument() document {
	return document{
		Users:     make(map[string]json.RawMessage),
		Addresses: make(map[string]json.RawMessage),
		Invoices:  make(map[string]*domain.InvoiceRecord),
		Nonces:    make(map[string]uint64),
		Payments:  make(map[string]*domain.PaymentRecord),
	}
}

// Store is the single persisted document, guarded by one mutex. Every
// mutation reloads from disk, applies the change, and persists, exactly as
// spec §6.5 specifies ("on each mutation, reload from disk, apply, and
// persist").
type Store struct {
	mu   sync.Mutex
	path string
	doc  document
}

// Open ensures path's parent directory exists, loads any existing document
// (or starts from an empty one), and returns a ready Store.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create parent directory: %w", err)
	}

	s := &Store{path: path, doc: emptyDocument()}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// reload re-reads the document from disk. A missing file is not an error —
// it means Open is creating the store for the first time.
func (s *Store) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	doc := emptyDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("store: decode %s: %w", s.path, err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]json.RawMessage)
	}
	if doc.Addresses == nil {
		doc.Addresses = make(map[string]json.RawMessage)
	}
	if doc.Invoices == nil {
		doc.Invoices = make(map[string]*domain.InvoiceRecord)
	}
	if doc.Nonces == nil {
		doc.Nonces = make(map[string]uint64)
	}
	if doc.Payments == nil {
		doc.Payments = make(map[string]*domain.PaymentRecord)
	}
	s.doc = doc
	return nil
}

// persist writes the in-memory document to a temp file in the same
// directory, then renames it over path — atomic on every POSIX filesystem
// (spec §6.5: "Atomic write via temp-file rename").
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".store-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: rename temp file into place: %w", err)
	}
	return nil
}

// GetPayment returns the payment record for hashNoPrefix, reloading from
// disk first so callers observe the last durable snapshot.
func (s *Store) GetPayment(hashNoPrefix string) (*domain.PaymentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.reload()
	rec, ok := s.doc.Payments[hashNoPrefix]
	if !ok {
		return nil, false
	}
	clone := *rec
	return &clone, true
}

// SavePayment reloads, applies rec, and persists.
func (s *Store) SavePayment(rec *domain.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(); err != nil {
		return err
	}
	s.doc.Payments[rec.PaymentHashNoPrefix] = rec
	return s.persist()
}

// ListInvoices returns a snapshot of every invoice record.
func (s *Store) ListInvoices() []*domain.InvoiceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.reload()
	out := make([]*domain.InvoiceRecord, 0, len(s.doc.Invoices))
	for _, inv := range s.doc.Invoices {
		clone := *inv
		out = append(out, &clone)
	}
	return out
}

// GetInvoice returns the invoice record for label.
func (s *Store) GetInvoice(label string) (*domain.InvoiceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.reload()
	inv, ok := s.doc.Invoices[label]
	if !ok {
		return nil, false
	}
	clone := *inv
	return &clone, true
}

// SaveInvoice reloads, applies inv, and persists.
func (s *Store) SaveInvoice(inv *domain.InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(); err != nil {
		return err
	}
	s.doc.Invoices[inv.Label] = inv
	return s.persist()
}

// GetNonce returns the stored nonce for lane, if any.
func (s *Store) GetNonce(lane string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.reload()
	n, ok := s.doc.Nonces[lane]
	return n, ok
}

// SaveNonce reloads, sets lane's nonce, and persists.
func (s *Store) SaveNonce(lane string, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reload(); err != nil {
		return err
	}
	s.doc.Nonces[lane] = nonce
	return s.persist()
}
