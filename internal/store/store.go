package store

import (
	"sync"

	"github.com/alexisrja/RemitPay/internal/models"
)

// TransactionStore is the process-lifetime home of quotes and
// transactions. All reads and every status transition are serialized
// under one lock; the lock is never held across a network call.
// Transactions are never deleted, so terminal states stay queryable.
type TransactionStore struct {
	mu           sync.RWMutex
	transactions map[string]*models.Transaction
	quotes       map[string]*models.QuoteRecord
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		transactions: make(map[string]*models.Transaction),
		quotes:       make(map[string]*models.QuoteRecord),
	}
}

// PutQuote stores an issued quote record, keyed by quote id.
func (s *TransactionStore) PutQuote(rec *models.QuoteRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[rec.Quote.ID] = rec
}

// GetQuote returns a quote record. Records are immutable once stored.
func (s *TransactionStore) GetQuote(id string) (*models.QuoteRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.quotes[id]
	return rec, ok
}

// PutTransaction stores a new transaction.
func (s *TransactionStore) PutTransaction(tx *models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx
}

// GetTransaction returns a snapshot copy of a transaction.
func (s *TransactionStore) GetTransaction(id string) (*models.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	return tx.Clone(), true
}

// Transition atomically moves a transaction from one status to another,
// applying the mutation under the lock. It returns a post-attempt
// snapshot and whether the swap happened; the snapshot is nil for
// unknown ids. A caller that loses the swap learns the current status
// from the snapshot and must not act on the transaction.
func (s *TransactionStore) Transition(id string, from, to models.TransactionStatus, apply func(*models.Transaction)) (*models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	if tx.Status != from {
		return tx.Clone(), false
	}
	tx.Status = to
	if apply != nil {
		apply(tx)
	}
	return tx.Clone(), true
}

// Update mutates a transaction under the lock regardless of status and
// returns a snapshot. Used for recording fields that are not status
// transitions, like the payment resource id.
func (s *TransactionStore) Update(id string, apply func(*models.Transaction)) (*models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	apply(tx)
	return tx.Clone(), true
}

// BeginConfirmation claims the confirmation-read guard. Only the caller
// that gets true may retry the post-creation status read; everyone else
// backs off with the returned snapshot.
func (s *TransactionStore) BeginConfirmation(id string) (*models.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, false
	}
	if tx.Confirming {
		return tx.Clone(), false
	}
	tx.Confirming = true
	return tx.Clone(), true
}

// EndConfirmation releases the confirmation-read guard.
func (s *TransactionStore) EndConfirmation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := s.transactions[id]; ok {
		tx.Confirming = false
	}
}
