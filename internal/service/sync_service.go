package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/pricing"
)

// SyncService is the reconciliation engine: it converges a storefront
// product's variant set to match a price snapshot.
type SyncService struct {
	storefront *StorefrontService
	markup     pricing.Engine
	logger     *zap.Logger
}

func NewSyncService(storefront *StorefrontService, markup pricing.Engine, logger *zap.Logger) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{
		storefront: storefront,
		markup:     markup,
		logger:     logger,
	}
}

// Reconcile routes a snapshot to the update flow when a sync-managed
// product for the SKU exists, and to the import flow otherwise.
func (s *SyncService) Reconcile(ctx context.Context, snapshot *domain.ProductPriceSnapshot) domain.SyncResult {
	existing, err := s.storefront.FindBySyncTag(ctx, snapshot.SKU)
	if err != nil {
		// Lookup failure is non-fatal: proceed as an import, the duplicate
		// check guards against double-creation.
		s.logger.Warn("Synced product lookup failed, falling back to import flow",
			zap.String("sku", snapshot.SKU), zap.Error(err))
		existing = nil
	}
	if existing != nil {
		return s.Sync(ctx, existing.ID, snapshot)
	}
	return s.Import(ctx, snapshot)
}

// Import creates a new storefront product from a snapshot: duplicate
// check, brand collection maintenance, product create with the size axis,
// variant diff + bulk create, price fix-up for the initial variant, and
// inventory SKU assignment.
func (s *SyncService) Import(ctx context.Context, snapshot *domain.ProductPriceSnapshot) domain.SyncResult {
	desired := BuildDesired(snapshot, s.markup)
	if len(desired) == 0 {
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Message: "no priced variants to import",
		}
	}

	// Duplicate check: exact SKU tag or exact title match.
	if dup, err := s.storefront.FindDuplicate(ctx, snapshot.SKU, snapshot.Title); err != nil {
		s.logger.Warn("Duplicate check failed, continuing with import",
			zap.String("sku", snapshot.SKU), zap.Error(err))
	} else if dup != nil {
		s.logger.Info("Skipping import: product already exists",
			zap.String("sku", snapshot.SKU), zap.String("product_id", dup.ID))
		return domain.SyncResult{
			Status:  domain.SyncSkipped,
			SKU:     snapshot.SKU,
			Title:   dup.Title,
			Message: "duplicate",
		}
	}

	manualCollectionID := s.ensureBrandCollection(ctx, snapshot.Brand)

	sizes := make([]string, 0, len(desired))
	for _, d := range desired {
		sizes = append(sizes, d.Size)
	}
	created, err := s.storefront.CreateProduct(ctx, CreateProductParams{
		Title:    snapshot.Title,
		Vendor:   snapshot.Brand,
		Sizes:    sizes,
		Tags:     []string{SyncTag, snapshot.SKU},
		ImageURL: snapshot.ImageURL,
	})
	if err != nil {
		s.logger.Error("Product create failed", zap.String("sku", snapshot.SKU), zap.Error(err))
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Message: fmt.Sprintf("product create failed: %v", err),
		}
	}

	// Manual collections need an explicit membership call; smart ones pick
	// the product up by vendor rule.
	if manualCollectionID != "" {
		if err := s.storefront.AddProductToCollection(ctx, manualCollectionID, created.ID); err != nil {
			s.logger.Warn("Adding product to brand collection failed",
				zap.String("collection_id", manualCollectionID), zap.Error(err))
		}
	}

	// The create call typically materializes only a default variant. Diff
	// against the desired set and bulk-create whatever is missing.
	plan := BuildPlan(created.Variants, desired)
	newVariants, err := s.storefront.BulkCreateVariants(ctx, created.ID, plan.ToCreate)
	if err != nil {
		s.logger.Error("Bulk variant create failed", zap.String("product_id", created.ID), zap.Error(err))
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Title:   created.Title,
			Message: fmt.Sprintf("variant create failed: %v", err),
		}
	}

	// The initial variant carries whatever price the create defaulted to;
	// newly created variants already have the right one.
	if err := s.storefront.BulkUpdateVariantPrices(ctx, created.ID, plan.ToUpdatePrice); err != nil {
		s.logger.Warn("Initial variant price update failed", zap.String("product_id", created.ID), zap.Error(err))
	}

	all := append(created.Variants, newVariants...)
	s.assignInventorySKUs(ctx, snapshot.SKU, all, desired)

	s.logger.Info("Imported product",
		zap.String("sku", snapshot.SKU),
		zap.String("title", created.Title),
		zap.Int("variants", len(desired)),
	)
	return domain.SyncResult{
		Status:       domain.SyncCreated,
		SKU:          snapshot.SKU,
		Title:        created.Title,
		VariantCount: len(desired),
	}
}

// Sync converges an existing product: delete stale sizes, create missing
// ones, refresh prices, reassign inventory SKUs and reorder the size axis.
// Recomputes the full diff every run; running twice with the same snapshot
// yields an empty plan the second time.
func (s *SyncService) Sync(ctx context.Context, productID string, snapshot *domain.ProductPriceSnapshot) domain.SyncResult {
	desired := BuildDesired(snapshot, s.markup)
	if len(desired) == 0 {
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Message: "no priced variants in snapshot",
		}
	}

	product, err := s.storefront.GetProduct(ctx, productID)
	if err != nil {
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Message: fmt.Sprintf("load product: %v", err),
		}
	}

	plan := BuildPlan(product.Variants, desired)

	// Mutations are strictly sequenced: later steps depend on IDs produced
	// by earlier ones.
	if len(plan.ToDelete) > 0 {
		ids := make([]string, 0, len(plan.ToDelete))
		for _, v := range plan.ToDelete {
			ids = append(ids, v.ID)
		}
		if err := s.storefront.BulkDeleteVariants(ctx, productID, ids); err != nil {
			return domain.SyncResult{
				Status:  domain.SyncError,
				SKU:     snapshot.SKU,
				Title:   product.Title,
				Message: fmt.Sprintf("variant delete failed: %v", err),
			}
		}
	}

	newVariants, err := s.storefront.BulkCreateVariants(ctx, productID, plan.ToCreate)
	if err != nil {
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Title:   product.Title,
			Message: fmt.Sprintf("variant create failed: %v", err),
		}
	}

	if err := s.storefront.BulkUpdateVariantPrices(ctx, productID, plan.ToUpdatePrice); err != nil {
		return domain.SyncResult{
			Status:  domain.SyncError,
			SKU:     snapshot.SKU,
			Title:   product.Title,
			Message: fmt.Sprintf("price update failed: %v", err),
		}
	}

	kept := make([]domain.StorefrontVariant, 0, len(plan.ToUpdatePrice)+len(newVariants))
	for _, u := range plan.ToUpdatePrice {
		kept = append(kept, u.Variant)
	}
	kept = append(kept, newVariants...)
	s.assignInventorySKUs(ctx, snapshot.SKU, kept, desired)

	s.reorderSizeAxis(ctx, productID)

	s.logger.Info("Synced product",
		zap.String("sku", snapshot.SKU),
		zap.String("title", product.Title),
		zap.Int("created", len(plan.ToCreate)),
		zap.Int("updated", len(plan.ToUpdatePrice)),
		zap.Int("deleted", len(plan.ToDelete)),
	)
	return domain.SyncResult{
		Status:       domain.SyncUpdated,
		SKU:          snapshot.SKU,
		Title:        product.Title,
		VariantCount: len(desired),
	}
}

// ensureBrandCollection checks for a collection titled exactly as the
// brand and creates a smart one when absent. Returns a collection id only
// for manual collections, which need an explicit add after product create.
// All failures here are non-fatal.
func (s *SyncService) ensureBrandCollection(ctx context.Context, brand string) string {
	if brand == "" {
		return ""
	}
	coll, err := s.storefront.FindCollectionByTitle(ctx, brand)
	if err != nil {
		s.logger.Warn("Brand collection lookup failed", zap.String("brand", brand), zap.Error(err))
		return ""
	}
	if coll == nil {
		if _, err := s.storefront.CreateSmartCollection(ctx, brand); err != nil {
			s.logger.Warn("Brand collection create failed", zap.String("brand", brand), zap.Error(err))
		} else {
			s.logger.Info("Created brand collection", zap.String("brand", brand))
		}
		return ""
	}
	if !coll.Smart {
		return coll.ID
	}
	return ""
}

// assignInventorySKUs sets "{sku}-{size}" and the tracking flag on every
// variant matching a desired size. Best-effort per variant: one failure is
// logged and the rest proceed.
func (s *SyncService) assignInventorySKUs(ctx context.Context, sku string, variants []domain.StorefrontVariant, desired []domain.DesiredVariant) {
	wanted := make(map[string]bool, len(desired))
	for _, d := range desired {
		wanted[d.Size] = true
	}
	for _, v := range variants {
		size := strings.TrimSpace(v.Size)
		if !wanted[size] || v.InventoryItemID == "" {
			continue
		}
		inventorySKU := fmt.Sprintf("%s-%s", sku, strings.ReplaceAll(size, " ", ""))
		if err := s.storefront.UpdateInventoryItem(ctx, v.InventoryItemID, inventorySKU, true); err != nil {
			s.logger.Warn("Inventory item update failed",
				zap.String("variant_id", v.ID),
				zap.String("inventory_sku", inventorySKU),
				zap.Error(err),
			)
		}
	}
}

// reorderSizeAxis fetches the live size option values and issues a reorder
// mutation when their numeric order differs. Failure leaves the product
// unsorted but correctly priced; not fatal.
func (s *SyncService) reorderSizeAxis(ctx context.Context, productID string) {
	product, err := s.storefront.GetProduct(ctx, productID)
	if err != nil {
		s.logger.Warn("Option value fetch for reorder failed", zap.String("product_id", productID), zap.Error(err))
		return
	}
	sorted := SortSizeValues(product.OptionValues)
	if orderedEqual(product.OptionValues, sorted) {
		return
	}
	if err := s.storefront.ReorderOptionValues(ctx, productID, sorted); err != nil {
		s.logger.Warn("Option value reorder failed", zap.String("product_id", productID), zap.Error(err))
		return
	}
	s.logger.Debug("Reordered size option values", zap.String("product_id", productID))
}
