package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"moneta/internal/amortize"
	"moneta/internal/core"
)

// earlyPayoffTag is appended to the note of the period that absorbs the
// remaining amounts on early settlement.
const earlyPayoffTag = "[提前结清]"

var (
	// ErrNotInstallment is returned when a group operation is attempted
	// on a transaction that is not part of a split purchase.
	ErrNotInstallment = errors.New("transaction is not an installment period")
	// ErrGroupCorrupt is returned when the representative invariant does
	// not hold for a resolved group.
	ErrGroupCorrupt = errors.New("installment group representative invariant violated")
)

// GroupRequest describes one split purchase to expand into periods.
// Principal and rate arrive as user text: the principal must parse as a
// positive number, the rate silently defaults to 0.
type GroupRequest struct {
	Kind          core.Kind
	FirstDueDate  time.Time
	PrincipalText string
	RateText      string
	PeriodCount   int
	Currency      string
	MainCategory  string
	SubCategory   string
	Counterparty  string
	Note          string
	SourceText    string
}

// Installments manages the lifecycle of split-purchase groups on top of
// the transaction store and the category registry.
type Installments struct {
	store    TransactionStore
	registry *Registry
}

func NewInstallments(store TransactionStore, registry *Registry) *Installments {
	return &Installments{store: store, registry: registry}
}

// CreateGroup validates the request, computes the equal-payment
// schedule, and persists one transaction per period. The first period
// is the representative: its fresh ID becomes the group identifier and
// every later period back-references it.
func (s *Installments) CreateGroup(ctx context.Context, req GroupRequest) ([]core.Transaction, error) {
	if req.PeriodCount <= 0 {
		return nil, core.ErrInvalidPeriods
	}
	principal, err := core.ParseAmount(req.PrincipalText)
	if err != nil {
		return nil, fmt.Errorf("principal %q: %w", req.PrincipalText, err)
	}
	rate := core.ParseRate(req.RateText)

	payment := amortize.MonthlyPayment(principal, rate, req.PeriodCount)

	if _, err := s.registry.AddOrUpdate(ctx, req.Kind, req.MainCategory, req.SubCategory); err != nil {
		return nil, fmt.Errorf("register category: %w", err)
	}

	groupID := uuid.NewString()
	periods := make([]core.Transaction, 0, req.PeriodCount)
	for i := 1; i <= req.PeriodCount; i++ {
		ins := &core.Installment{
			PeriodIndex:       i,
			PeriodCount:       req.PeriodCount,
			AnnualRatePercent: rate,
			TotalPrincipal:    principal,
		}
		id := groupID
		if i > 1 {
			id = uuid.NewString()
			ins.GroupID = groupID
		}
		tx := core.Transaction{
			ID:           id,
			Kind:         req.Kind,
			OccurredAt:   req.FirstDueDate.AddDate(0, i-1, 0),
			Amount:       payment,
			Currency:     req.Currency,
			MainCategory: req.MainCategory,
			SubCategory:  req.SubCategory,
			Counterparty: req.Counterparty,
			Note:         req.Note,
			SourceText:   req.SourceText,
			Installment:  ins,
		}
		if err := s.store.Insert(ctx, tx); err != nil {
			return nil, fmt.Errorf("insert period %d: %w", i, err)
		}
		periods = append(periods, tx)
	}

	slog.InfoContext(ctx, "Created installment group",
		"group_id", groupID,
		"periods", req.PeriodCount,
		"principal", principal,
		"annual_rate", rate,
		"payment", payment)
	return periods, nil
}

// Members resolves every period of the group that tx belongs to,
// ordered by period index. The representative invariant is re-validated
// on every resolution.
func (s *Installments) Members(ctx context.Context, tx core.Transaction) ([]core.Transaction, error) {
	if tx.Installment == nil {
		return nil, ErrNotInstallment
	}

	rep := tx
	if !tx.IsRepresentative() {
		var err error
		rep, err = s.store.Get(ctx, tx.Installment.GroupID)
		if err != nil {
			return nil, fmt.Errorf("resolve representative %s: %w", tx.Installment.GroupID, err)
		}
	}
	if !rep.IsRepresentative() {
		return nil, ErrGroupCorrupt
	}

	rest, err := s.store.ListByGroup(ctx, rep.ID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}

	members := append([]core.Transaction{rep}, rest...)
	sort.Slice(members, func(i, j int) bool {
		return members[i].Installment.PeriodIndex < members[j].Installment.PeriodIndex
	})
	return members, nil
}

// DeletePeriod removes exactly one period. No cascade: deleting a
// non-representative period must never take the group with it.
func (s *Installments) DeletePeriod(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// DeleteGroup removes every period of the group that tx belongs to.
func (s *Installments) DeleteGroup(ctx context.Context, tx core.Transaction) error {
	members, err := s.Members(ctx, tx)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := s.store.Delete(ctx, m.ID); err != nil {
			return fmt.Errorf("delete period %d: %w", m.Installment.PeriodIndex, err)
		}
	}
	slog.InfoContext(ctx, "Deleted installment group", "group_id", members[0].ID, "periods", len(members))
	return nil
}

// EarlyPayoff settles the group at the period identified by id: the
// amounts of all strictly later periods are folded into that period's
// amount, its note is tagged as an early settlement, and the later
// periods are deleted. This is the single place a persisted amount is
// allowed to change.
func (s *Installments) EarlyPayoff(ctx context.Context, id string) (core.Transaction, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get current period: %w", err)
	}
	if current.Installment == nil {
		return core.Transaction{}, ErrNotInstallment
	}

	members, err := s.Members(ctx, current)
	if err != nil {
		return core.Transaction{}, err
	}

	var future []core.Transaction
	var remainder float64
	for _, m := range members {
		if m.Installment.PeriodIndex > current.Installment.PeriodIndex {
			future = append(future, m)
			remainder += m.Amount
		}
	}

	current.Amount += remainder
	if strings.TrimSpace(current.Note) == "" {
		current.Note = earlyPayoffTag
	} else {
		current.Note = current.Note + " " + earlyPayoffTag
	}
	if err := s.store.Update(ctx, current); err != nil {
		return core.Transaction{}, fmt.Errorf("update settled period: %w", err)
	}

	for _, m := range future {
		if err := s.store.Delete(ctx, m.ID); err != nil {
			return core.Transaction{}, fmt.Errorf("delete future period %d: %w", m.Installment.PeriodIndex, err)
		}
	}

	slog.InfoContext(ctx, "Installment group settled early",
		"group_id", current.GroupID(),
		"settled_period", current.Installment.PeriodIndex,
		"absorbed", remainder,
		"deleted_periods", len(future))
	return current, nil
}
