package service

import (
	"sort"
	"strconv"
	"strings"

	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/pricing"
)

// BuildDesired maps a snapshot to the target variant list: no-ask quotes
// excluded, markup applied, sorted ascending by numeric size.
func BuildDesired(snapshot *domain.ProductPriceSnapshot, markup pricing.Engine) []domain.DesiredVariant {
	seen := make(map[string]bool, len(snapshot.Variants))
	desired := make([]domain.DesiredVariant, 0, len(snapshot.Variants))
	for _, quote := range snapshot.Variants {
		if !quote.HasAsk() {
			continue
		}
		size := strings.TrimSpace(quote.SizeEU)
		if size == "" || seen[size] {
			continue
		}
		seen[size] = true
		desired = append(desired, domain.DesiredVariant{
			Size:  size,
			Price: markup.Markup(*quote.AskPrice),
		})
	}
	sort.SliceStable(desired, func(i, j int) bool {
		return sizeLess(desired[i].Size, desired[j].Size)
	})
	return desired
}

// BuildPlan diffs the existing variant set against the desired one. Sizes
// are compared as normalized strings via maps, so a size present in both
// sets becomes a price update, never a create+delete pair.
func BuildPlan(existing []domain.StorefrontVariant, desired []domain.DesiredVariant) domain.ReconciliationPlan {
	existingBySize := make(map[string]domain.StorefrontVariant, len(existing))
	for _, v := range existing {
		existingBySize[strings.TrimSpace(v.Size)] = v
	}
	desiredBySize := make(map[string]domain.DesiredVariant, len(desired))
	for _, d := range desired {
		desiredBySize[d.Size] = d
	}

	var plan domain.ReconciliationPlan
	for _, d := range desired {
		if v, ok := existingBySize[d.Size]; ok {
			plan.ToUpdatePrice = append(plan.ToUpdatePrice, domain.PriceUpdate{Variant: v, Price: d.Price})
		} else {
			plan.ToCreate = append(plan.ToCreate, d)
		}
		plan.DesiredOrder = append(plan.DesiredOrder, d.Size)
	}
	for _, v := range existing {
		if _, ok := desiredBySize[strings.TrimSpace(v.Size)]; !ok {
			plan.ToDelete = append(plan.ToDelete, v)
		}
	}
	return plan
}

// SortSizeValues returns the values sorted ascending by their leading
// numeric token. Values without one ("N/A") sort last, in original order.
func SortSizeValues(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.SliceStable(out, func(i, j int) bool {
		return sizeLess(out[i], out[j])
	})
	return out
}

// orderedEqual reports whether two value lists are in identical order.
func orderedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sizeLess(a, b string) bool {
	na, aok := sizeKey(a)
	nb, bok := sizeKey(b)
	if aok && bok {
		return na < nb
	}
	// Non-numeric values sort after numeric ones.
	return aok && !bok
}

// sizeKey parses a leading numeric token out of a size value, accepting
// formats like "42", "42.5", "42,5" (comma as decimal separator) and
// suffixed values like "42.5 W".
func sizeKey(value string) (float64, bool) {
	s := strings.TrimSpace(value)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || c == ',' {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	token := strings.ReplaceAll(s[:end], ",", ".")
	n, err := strconv.ParseFloat(strings.TrimSuffix(token, "."), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
