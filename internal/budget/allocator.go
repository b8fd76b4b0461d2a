// Package budget selects items maximizing value under a monetary and
// group-size budget. The allocator is pure and deterministic.
package budget

import (
	"fmt"
	"math"
	"sort"

	"github.com/wayfarerlabs/tripweaver/internal/model"
)

// Constraints bounds a selection.
type Constraints struct {
	MinPerPerson    int      `json:"minPerPerson,omitempty"`
	MaxPerPerson    int      `json:"maxPerPerson,omitempty"`
	AllowCategories []string `json:"allowCategories,omitempty"`
	DenyCategories  []string `json:"denyCategories,omitempty"`
}

// Tuning holds the empirical selection thresholds. They are configuration,
// not guaranteed semantics.
type Tuning struct {
	// RelaxUtilization is the utilization below which category caps loosen.
	RelaxUtilization float64
	// StopUtilization ends selection outright once reached.
	StopUtilization float64
	// CategoryShareDiv divides the target count into the per-category ceiling.
	CategoryShareDiv int
	// HardCapFactor bounds the relaxed per-category ceiling.
	HardCapFactor float64
}

// DefaultTuning returns the standard thresholds.
func DefaultTuning() Tuning {
	return Tuning{
		RelaxUtilization: 0.75,
		StopUtilization:  0.90,
		CategoryShareDiv: 3,
		HardCapFactor:    1.5,
	}
}

func (c Constraints) normalized() Constraints {
	if c.MinPerPerson <= 0 {
		c.MinPerPerson = 1
	}
	if c.MaxPerPerson < c.MinPerPerson {
		c.MaxPerPerson = c.MinPerPerson + 2
	}
	return c
}

var categoryBonus = map[string]float64{
	"Lunch":     20,
	"Dinner":    20,
	"Breakfast": 15,
	"Drinks":    10,
}

// Value scores an item: popularity on a 0-100 scale, a price component that
// decays to zero at 1500, and a meal-category bonus.
func Value(item model.MenuItem) float64 {
	v := 0.5*item.Popularity + math.Max(0, 30-item.Price/50) + categoryBonus[item.Category]
	return v
}

func efficiency(item model.MenuItem) float64 {
	if item.Price <= 0 {
		return item.Popularity
	}
	return item.Popularity / item.Price
}

// Allocator is a long-lived, injectable selection component.
type Allocator struct {
	tuning Tuning
}

// NewAllocator constructs an Allocator with the given tuning.
func NewAllocator(t Tuning) *Allocator {
	if t.CategoryShareDiv <= 0 {
		t = DefaultTuning()
	}
	return &Allocator{tuning: t}
}

// Allocate greedily selects items by efficiency under the budget. An
// infeasible request never errors: the result is the best-effort under-budget
// subset with advisories attached. An empty pool yields an empty,
// zero-utilization allocation.
func (al *Allocator) Allocate(pool []model.MenuItem, budget float64, groupSize int, cons Constraints) model.BudgetAllocation {
	cons = cons.normalized()
	if groupSize < 1 {
		groupSize = 1
	}
	if len(pool) == 0 || budget <= 0 {
		return model.BudgetAllocation{RemainingBudget: budget}
	}

	eligible := filterCategories(pool, cons)

	ordered := make([]model.MenuItem, len(eligible))
	copy(ordered, eligible)
	sort.SliceStable(ordered, func(i, j int) bool {
		ei, ej := efficiency(ordered[i]), efficiency(ordered[j])
		if ei != ej {
			return ei > ej
		}
		if ordered[i].Price != ordered[j].Price {
			return ordered[i].Price < ordered[j].Price
		}
		return ordered[i].ItemID < ordered[j].ItemID
	})

	target := ((cons.MinPerPerson + cons.MaxPerPerson) / 2) * groupSize
	maxItems := cons.MaxPerPerson * groupSize
	catCeil := int(math.Ceil(float64(target) / float64(al.tuning.CategoryShareDiv)))
	if catCeil < 1 {
		catCeil = 1
	}
	hardCap := int(float64(catCeil) * al.tuning.HardCapFactor)

	var selected []model.MenuItem
	var cost float64
	perCat := make(map[string]int)
	chosen := make(map[string]struct{})

	for _, item := range ordered {
		util := cost / budget
		if util >= al.tuning.StopUtilization {
			break
		}
		if util >= al.tuning.RelaxUtilization && len(selected) >= target {
			break
		}
		if len(selected) >= maxItems {
			break
		}
		if cost+item.Price > budget {
			continue
		}
		limit := catCeil
		if util < al.tuning.RelaxUtilization {
			limit = hardCap
		}
		if perCat[item.Category] >= limit {
			continue
		}

		selected = append(selected, item)
		chosen[item.ItemID] = struct{}{}
		perCat[item.Category]++
		cost += item.Price
	}

	// Backfill with the cheapest remaining affordable items when the result
	// falls below the per-person minimum. Category caps are deliberately not
	// reapplied here.
	minItems := cons.MinPerPerson * groupSize
	if len(selected) < minItems {
		remaining := make([]model.MenuItem, 0, len(ordered))
		for _, item := range ordered {
			if _, ok := chosen[item.ItemID]; !ok {
				remaining = append(remaining, item)
			}
		}
		sort.SliceStable(remaining, func(i, j int) bool {
			if remaining[i].Price != remaining[j].Price {
				return remaining[i].Price < remaining[j].Price
			}
			return remaining[i].ItemID < remaining[j].ItemID
		})
		for _, item := range remaining {
			if len(selected) >= minItems {
				break
			}
			if cost+item.Price > budget {
				continue
			}
			selected = append(selected, item)
			chosen[item.ItemID] = struct{}{}
			perCat[item.Category]++
			cost += item.Price
		}
	}

	return al.summarize(selected, cost, budget, groupSize, cons, perCat)
}

func (al *Allocator) summarize(selected []model.MenuItem, cost, budget float64, groupSize int, cons Constraints, perCat map[string]int) model.BudgetAllocation {
	out := model.BudgetAllocation{
		Items:           selected,
		TotalCost:       cost,
		RemainingBudget: budget - cost,
	}
	if budget > 0 {
		out.UtilizationPct = cost / budget * 100
	}

	if len(selected) > 0 {
		var sum float64
		for _, item := range selected {
			sum += Value(item)
		}
		out.ValueScore = math.Min(100, sum/float64(len(selected)))
		out.DiversityScore = diversityScore(perCat)
	}

	out.Advisories = advisories(selected, perCat, out.UtilizationPct, groupSize, cons)
	if len(selected) < cons.MinPerPerson*groupSize {
		out.Reasons = append(out.Reasons, model.ReasonBudgetBestEffort)
	}
	return out
}

// diversityScore blends how many categories are covered with how evenly the
// selection spreads across them.
func diversityScore(perCat map[string]int) float64 {
	if len(perCat) == 0 {
		return 0
	}
	spread := math.Min(1, float64(len(perCat))/4)

	minCount, maxCount := math.MaxInt32, 0
	for _, c := range perCat {
		if c < minCount {
			minCount = c
		}
		if c > maxCount {
			maxCount = c
		}
	}
	evenness := float64(minCount) / float64(maxCount)
	return (0.5*spread + 0.5*evenness) * 100
}

func advisories(selected []model.MenuItem, perCat map[string]int, utilization float64, groupSize int, cons Constraints) []string {
	var out []string
	if utilization < 50 {
		out = append(out, "Budget utilization is low; consider adding more items.")
	}
	if perCat["Lunch"] == 0 && perCat["Dinner"] == 0 {
		out = append(out, "Selection has no main meal (Lunch or Dinner).")
	}
	if perCat["Drinks"] == 0 {
		out = append(out, "Selection has no drinks.")
	}
	perPerson := float64(len(selected)) / float64(groupSize)
	if perPerson < float64(cons.MinPerPerson) {
		out = append(out, fmt.Sprintf("Fewer than %d items per person selected.", cons.MinPerPerson))
	}
	if perPerson > float64(cons.MaxPerPerson) {
		out = append(out, fmt.Sprintf("More than %d items per person selected.", cons.MaxPerPerson))
	}
	return out
}

// TrimToBudget reduces an over-budget manual selection by keeping the
// highest-value items first, then backfills unused candidates by value until
// the budget is exhausted.
func (al *Allocator) TrimToBudget(selected, pool []model.MenuItem, budget float64) []model.MenuItem {
	byValue := func(items []model.MenuItem) []model.MenuItem {
		out := make([]model.MenuItem, len(items))
		copy(out, items)
		sort.SliceStable(out, func(i, j int) bool {
			vi, vj := Value(out[i]), Value(out[j])
			if vi != vj {
				return vi > vj
			}
			return out[i].ItemID < out[j].ItemID
		})
		return out
	}

	var kept []model.MenuItem
	var cost float64
	inKept := make(map[string]struct{})
	for _, item := range byValue(selected) {
		if cost+item.Price > budget {
			continue
		}
		kept = append(kept, item)
		inKept[item.ItemID] = struct{}{}
		cost += item.Price
	}

	for _, item := range byValue(pool) {
		if _, dup := inKept[item.ItemID]; dup {
			continue
		}
		if cost+item.Price > budget {
			continue
		}
		kept = append(kept, item)
		inKept[item.ItemID] = struct{}{}
		cost += item.Price
	}
	return kept
}

func filterCategories(pool []model.MenuItem, cons Constraints) []model.MenuItem {
	if len(cons.AllowCategories) == 0 && len(cons.DenyCategories) == 0 {
		return pool
	}
	allow := make(map[string]struct{}, len(cons.AllowCategories))
	for _, c := range cons.AllowCategories {
		allow[c] = struct{}{}
	}
	deny := make(map[string]struct{}, len(cons.DenyCategories))
	for _, c := range cons.DenyCategories {
		deny[c] = struct{}{}
	}
	out := make([]model.MenuItem, 0, len(pool))
	for _, item := range pool {
		if _, denied := deny[item.Category]; denied {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[item.Category]; !ok {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
