package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"moneta/internal/core"
)

// Registry maintains the learned (main, sub, kind) taxonomy with its
// usage ranking. It is constructed explicitly and passed to whatever
// needs it; there is no process-wide instance.
type Registry struct {
	store CategoryStore
}

func NewRegistry(store CategoryStore) *Registry {
	return &Registry{store: store}
}

// seedTaxonomy is the fixed taxonomy installed into an empty registry.
var seedTaxonomy = []core.Category{
	{Kind: core.Expense, Main: "餐饮", Sub: "早餐"},
	{Kind: core.Expense, Main: "餐饮", Sub: "午餐"},
	{Kind: core.Expense, Main: "餐饮", Sub: "晚餐"},
	{Kind: core.Expense, Main: "餐饮", Sub: "外卖"},
	{Kind: core.Expense, Main: "交通", Sub: "公交地铁"},
	{Kind: core.Expense, Main: "交通", Sub: "打车"},
	{Kind: core.Expense, Main: "交通", Sub: "加油"},
	{Kind: core.Expense, Main: "购物", Sub: "日用品"},
	{Kind: core.Expense, Main: "购物", Sub: "服饰"},
	{Kind: core.Expense, Main: "购物", Sub: "数码"},
	{Kind: core.Expense, Main: "居住", Sub: "房租"},
	{Kind: core.Expense, Main: "居住", Sub: "水电燃气"},
	{Kind: core.Expense, Main: "居住", Sub: "物业"},
	{Kind: core.Expense, Main: "娱乐", Sub: "电影"},
	{Kind: core.Expense, Main: "娱乐", Sub: "游戏"},
	{Kind: core.Expense, Main: "娱乐", Sub: "旅行"},
	{Kind: core.Expense, Main: "其他", Sub: "其他"},
	{Kind: core.Income, Main: "工资", Sub: "月薪"},
	{Kind: core.Income, Main: "奖金", Sub: "年终奖"},
	{Kind: core.Income, Main: "理财", Sub: "利息"},
	{Kind: core.Income, Main: "理财", Sub: "分红"},
	{Kind: core.Income, Main: "其他", Sub: "其他"},
}

// InitializeDefaults populates an empty registry with the seed taxonomy.
// A registry holding any category at all is left untouched, so repeat
// calls are free of side effects.
func (r *Registry) InitializeDefaults(ctx context.Context) error {
	count, err := r.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	for _, c := range seedTaxonomy {
		c.CreatedAt = now
		if err := r.store.Create(ctx, c); err != nil {
			return fmt.Errorf("seed category %s/%s: %w", c.Main, c.Sub, err)
		}
	}
	slog.InfoContext(ctx, "Seeded default category taxonomy", "count", len(seedTaxonomy))
	return nil
}

// AddOrUpdate bumps the usage counter of the (main, sub, kind) triple,
// creating it on first use. The taxonomy grows from AI-suggested and
// imported categories without any approval step.
func (r *Registry) AddOrUpdate(ctx context.Context, kind core.Kind, main, sub string) (core.Category, error) {
	main, sub = strings.TrimSpace(main), strings.TrimSpace(sub)
	c := core.Category{Kind: kind, Main: main, Sub: sub}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	existing, err := r.store.Find(ctx, kind, main, sub)
	switch {
	case err == nil:
		if err := r.store.IncrementUsage(ctx, kind, main, sub); err != nil {
			return core.Category{}, fmt.Errorf("increment usage: %w", err)
		}
		existing.UsageCount++
		return existing, nil
	case errors.Is(err, ErrNotFound):
		c.UsageCount = 1
		c.CreatedAt = time.Now()
		if err := r.store.Create(ctx, c); err != nil {
			return core.Category{}, fmt.Errorf("create category: %w", err)
		}
		slog.DebugContext(ctx, "Learned new category", "kind", kind, "main", main, "sub", sub)
		return c, nil
	default:
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
}

// MainCategories returns the distinct main categories for a kind,
// ranked by total usage descending, ties alphabetical.
func (r *Registry) MainCategories(ctx context.Context, kind core.Kind) ([]string, error) {
	cats, err := r.store.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	usage := make(map[string]int64)
	var names []string
	for _, c := range cats {
		if _, seen := usage[c.Main]; !seen {
			names = append(names, c.Main)
		}
		usage[c.Main] += c.UsageCount
	}
	sort.SliceStable(names, func(i, j int) bool {
		if usage[names[i]] != usage[names[j]] {
			return usage[names[i]] > usage[names[j]]
		}
		return names[i] < names[j]
	})
	return names, nil
}

// SubCategories returns the sub categories under one main category,
// ranked by usage descending, ties alphabetical.
func (r *Registry) SubCategories(ctx context.Context, main string, kind core.Kind) ([]string, error) {
	cats, err := r.store.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	var out []core.Category
	for _, c := range cats {
		if c.Main == main {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UsageCount != out[j].UsageCount {
			return out[i].UsageCount > out[j].UsageCount
		}
		return out[i].Sub < out[j].Sub
	})

	names := make([]string, 0, len(out))
	for _, c := range out {
		names = append(names, c.Sub)
	}
	return names, nil
}

// Delete removes a single category triple. Transactions referencing the
// category strings keep them; the taxonomy and the ledger are
// independent entities.
func (r *Registry) Delete(ctx context.Context, kind core.Kind, main, sub string) error {
	return r.store.DeleteCategory(ctx, kind, main, sub)
}
