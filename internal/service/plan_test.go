package service

import (
	"testing"

	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/pricing"
)

func fptr(v float64) *float64 { return &v }

func TestBuildDesired(t *testing.T) {
	markup := pricing.NewEngine(0.10)

	tests := []struct {
		name     string
		snapshot domain.ProductPriceSnapshot
		want     []domain.DesiredVariant
	}{
		{
			name: "no-ask variants excluded",
			snapshot: domain.ProductPriceSnapshot{
				SKU: "FV5029-100",
				Variants: []domain.VariantQuote{
					{SizeEU: "42", AskPrice: fptr(120)},
					{SizeEU: "43", AskPrice: nil},
					{SizeEU: "44", AskPrice: fptr(95)},
				},
			},
			want: []domain.DesiredVariant{
				{Size: "42", Price: 174.90},
				{Size: "44", Price: 134.90},
			},
		},
		{
			name: "sorted ascending by numeric size",
			snapshot: domain.ProductPriceSnapshot{
				Variants: []domain.VariantQuote{
					{SizeEU: "44", AskPrice: fptr(100)},
					{SizeEU: "42.5", AskPrice: fptr(100)},
					{SizeEU: "43", AskPrice: fptr(100)},
				},
			},
			want: []domain.DesiredVariant{
				{Size: "42.5", Price: 139.90},
				{Size: "43", Price: 139.90},
				{Size: "44", Price: 139.90},
			},
		},
		{
			name: "duplicate sizes collapse to the first quote",
			snapshot: domain.ProductPriceSnapshot{
				Variants: []domain.VariantQuote{
					{SizeEU: "42", AskPrice: fptr(120)},
					{SizeEU: "42", AskPrice: fptr(300)},
				},
			},
			want: []domain.DesiredVariant{
				{Size: "42", Price: 174.90},
			},
		},
		{
			name: "blank sizes dropped",
			snapshot: domain.ProductPriceSnapshot{
				Variants: []domain.VariantQuote{
					{SizeEU: "  ", AskPrice: fptr(120)},
				},
			},
			want: nil,
		},
		{
			name:     "all no-ask yields empty",
			snapshot: domain.ProductPriceSnapshot{Variants: []domain.VariantQuote{{SizeEU: "42"}}},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildDesired(&tt.snapshot, markup)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d desired variants, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("desired[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildPlan(t *testing.T) {
	existing := []domain.StorefrontVariant{
		{ID: "gid://shopify/ProductVariant/1", Size: "40", Price: 129.90},
		{ID: "gid://shopify/ProductVariant/2", Size: "41", Price: 129.90},
		{ID: "gid://shopify/ProductVariant/3", Size: "42", Price: 129.90},
	}
	desired := []domain.DesiredVariant{
		{Size: "41", Price: 139.90},
		{Size: "42", Price: 144.90},
		{Size: "43", Price: 149.90},
	}

	plan := BuildPlan(existing, desired)

	if len(plan.ToDelete) != 1 || plan.ToDelete[0].Size != "40" {
		t.Errorf("ToDelete = %+v, want single size 40", plan.ToDelete)
	}
	if len(plan.ToCreate) != 1 || plan.ToCreate[0].Size != "43" {
		t.Errorf("ToCreate = %+v, want single size 43", plan.ToCreate)
	}
	if len(plan.ToUpdatePrice) != 2 {
		t.Fatalf("ToUpdatePrice = %+v, want updates for 41 and 42", plan.ToUpdatePrice)
	}
	for _, upd := range plan.ToUpdatePrice {
		switch upd.Variant.Size {
		case "41":
			if upd.Price != 139.90 {
				t.Errorf("update for size 41: price = %v, want 139.90", upd.Price)
			}
		case "42":
			if upd.Price != 144.90 {
				t.Errorf("update for size 42: price = %v, want 144.90", upd.Price)
			}
		default:
			t.Errorf("unexpected update for size %q", upd.Variant.Size)
		}
	}
	wantOrder := []string{"41", "42", "43"}
	if !orderedEqual(plan.DesiredOrder, wantOrder) {
		t.Errorf("DesiredOrder = %v, want %v", plan.DesiredOrder, wantOrder)
	}
}

// Applying a plan then re-diffing must yield an empty plan.
func TestBuildPlanConverges(t *testing.T) {
	existing := []domain.StorefrontVariant{
		{ID: "v1", Size: "40", Price: 100},
		{ID: "v2", Size: "41", Price: 100},
	}
	desired := []domain.DesiredVariant{
		{Size: "41", Price: 139.90},
		{Size: "42", Price: 144.90},
	}

	plan := BuildPlan(existing, desired)

	// Simulate applying the plan against the storefront.
	next := make([]domain.StorefrontVariant, 0, len(desired))
	deleted := make(map[string]bool)
	for _, v := range plan.ToDelete {
		deleted[v.ID] = true
	}
	for _, v := range existing {
		if deleted[v.ID] {
			continue
		}
		next = append(next, v)
	}
	for i := range next {
		for _, upd := range plan.ToUpdatePrice {
			if upd.Variant.ID == next[i].ID {
				next[i].Price = upd.Price
			}
		}
	}
	for _, d := range plan.ToCreate {
		next = append(next, domain.StorefrontVariant{ID: "new-" + d.Size, Size: d.Size, Price: d.Price})
	}

	second := BuildPlan(next, desired)
	if len(second.ToCreate) != 0 || len(second.ToDelete) != 0 {
		t.Errorf("second plan not converged: %+v", second)
	}
	// Prices already match, but the plan still carries updates; the engine
	// applies them idempotently.
	for _, upd := range second.ToUpdatePrice {
		var want float64
		for _, d := range desired {
			if d.Size == upd.Variant.Size {
				want = d.Price
			}
		}
		if upd.Price != want {
			t.Errorf("second plan price for %s = %v, want %v", upd.Variant.Size, upd.Price, want)
		}
	}
}

func TestBuildPlanEmptyInputs(t *testing.T) {
	plan := BuildPlan(nil, nil)
	if !plan.Empty() {
		t.Errorf("plan over empty inputs should be empty, got %+v", plan)
	}

	plan = BuildPlan([]domain.StorefrontVariant{{ID: "v1", Size: "40"}}, nil)
	if len(plan.ToDelete) != 1 {
		t.Errorf("all-delete plan = %+v, want one deletion", plan)
	}
}

func TestSortSizeValues(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"basic", []string{"43", "40", "42.5"}, []string{"40", "42.5", "43"}},
		{"comma decimal", []string{"42,5", "42"}, []string{"42", "42,5"}},
		{"non-numeric last", []string{"N/A", "41", "40"}, []string{"40", "41", "N/A"}},
		{"already sorted", []string{"40", "41", "42"}, []string{"40", "41", "42"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SortSizeValues(tt.values)
			if len(got) != len(tt.want) {
				t.Fatalf("SortSizeValues(%v) = %v, want %v", tt.values, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SortSizeValues(%v) = %v, want %v", tt.values, got, tt.want)
					break
				}
			}
		})
	}
}

func TestSortSizeValuesDoesNotMutateInput(t *testing.T) {
	values := []string{"43", "40"}
	_ = SortSizeValues(values)
	if values[0] != "43" || values[1] != "40" {
		t.Errorf("input mutated: %v", values)
	}
}

func TestSizeKey(t *testing.T) {
	tests := []struct {
		value string
		want  float64
		ok    bool
	}{
		{"42", 42, true},
		{"42.5", 42.5, true},
		{"42,5", 42.5, true},
		{"42.5 W", 42.5, true},
		{" 38 ", 38, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"EU", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, ok := sizeKey(tt.value)
			if got != tt.want || ok != tt.ok {
				t.Errorf("sizeKey(%q) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestOrderedEqual(t *testing.T) {
	if !orderedEqual([]string{"40", "41"}, []string{"40", "41"}) {
		t.Error("identical lists should compare equal")
	}
	if orderedEqual([]string{"40", "41"}, []string{"41", "40"}) {
		t.Error("reordered lists should not compare equal")
	}
	if orderedEqual([]string{"40"}, []string{"40", "41"}) {
		t.Error("lists of different length should not compare equal")
	}
}
