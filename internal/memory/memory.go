// Package memory provides a mutex-guarded in-process implementation of
// the ledger store ports. It backs tests and the default zero-setup
// backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"moneta/internal/core"
	"moneta/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu         sync.Mutex
	txs        map[string]core.Transaction
	order      []string // insertion order, keeps listings stable
	categories []core.Category
}

func New() *Store {
	return &Store{txs: make(map[string]core.Transaction)}
}

func (s *Store) Insert(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; !exists {
		s.order = append(s.order, tx.ID)
	}
	s.txs[tx.ID] = cloneTx(tx)
	return nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; !exists {
		return ledger.ErrNotFound
	}
	s.txs[tx.ID] = cloneTx(tx)
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[id]; !exists {
		return ledger.ErrNotFound
	}
	delete(s.txs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return cloneTx(tx), nil
}

func (s *Store) ListAll(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneTx(s.txs[id]))
	}
	return out, nil
}

func (s *Store) ListByGroup(_ context.Context, groupID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.Installment != nil && tx.Installment.GroupID == groupID {
			out = append(out, cloneTx(tx))
		}
	}
	return out, nil
}

func (s *Store) ListBetween(_ context.Context, kind core.Kind, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, id := range s.order {
		tx := s.txs[id]
		if tx.Kind != kind {
			continue
		}
		if tx.OccurredAt.Before(from) || tx.OccurredAt.After(to) {
			continue
		}
		out = append(out, cloneTx(tx))
	}
	return out, nil
}

func (s *Store) Find(_ context.Context, kind core.Kind, main, sub string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Kind == kind && c.Main == main && c.Sub == sub {
			return c, nil
		}
	}
	return core.Category{}, ledger.ErrNotFound
}

func (s *Store) Create(_ context.Context, c core.Category) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.categories {
		if have.Kind == c.Kind && have.Main == c.Main && have.Sub == c.Sub {
			return nil // unique per triple
		}
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *Store) IncrementUsage(_ context.Context, kind core.Kind, main, sub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		c := &s.categories[i]
		if c.Kind == kind && c.Main == main && c.Sub == sub {
			c.UsageCount++
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) List(_ context.Context, kind core.Kind) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		if out[i].Main != out[j].Main {
			return out[i].Main < out[j].Main
		}
		return out[i].Sub < out[j].Sub
	})
	return out, nil
}

func (s *Store) DeleteCategory(_ context.Context, kind core.Kind, main, sub string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.Kind == kind && c.Main == main && c.Sub == sub {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return ledger.ErrNotFound
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.categories)), nil
}

// cloneTx copies the record deeply enough that callers cannot mutate
// stored state through shared slices or the installment pointer.
func cloneTx(tx core.Transaction) core.Transaction {
	out := tx
	if tx.Installment != nil {
		ins := *tx.Installment
		out.Installment = &ins
	}
	if tx.Attachment != nil {
		out.Attachment = append([]byte(nil), tx.Attachment...)
	}
	return out
}
