package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/solegrid/syncapi/internal/config"
	"github.com/solegrid/syncapi/internal/domain"
	"github.com/solegrid/syncapi/internal/shopify"
	apperrors "github.com/solegrid/syncapi/pkg/errors"
)

const (
	// SizeOptionName is the single option axis every synced product carries.
	SizeOptionName = "Size (EU)"
	// SyncTag marks products managed by this sync so bulk sync can find
	// them and imports can detect duplicates.
	SyncTag = "marketsync"
)

// StorefrontService is the typed mutation surface the reconciliation
// engine drives against the storefront catalog.
type StorefrontService struct {
	client *shopify.Client
	logger *zap.Logger
}

func NewStorefrontService(cfg config.StorefrontConfig, logger *zap.Logger) *StorefrontService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorefrontService{
		client: shopify.NewClient(cfg, logger),
		logger: logger,
	}
}

// ProductRef is a product id/title pair from a search.
type ProductRef struct {
	ID    string
	Title string
}

// ProductDetail is the slice of the live product graph reconciliation
// reads: the size axis value order and the current variant set.
type ProductDetail struct {
	ID           string
	Title        string
	OptionValues []string
	Variants     []domain.StorefrontVariant
}

// CollectionInfo describes an existing brand collection. Smart collections
// pick up products by rule and need no explicit membership call.
type CollectionInfo struct {
	ID    string
	Title string
	Smart bool
}

// SyncedProduct is one sync-managed product found by tag.
type SyncedProduct struct {
	ID    string
	Title string
	SKU   string
}

type variantNode struct {
	ID            string `json:"id"`
	Price         string `json:"price"`
	SKU           string `json:"sku"`
	InventoryItem struct {
		ID string `json:"id"`
	} `json:"inventoryItem"`
	SelectedOptions []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"selectedOptions"`
}

func (n variantNode) toStorefrontVariant() domain.StorefrontVariant {
	price, _ := strconv.ParseFloat(n.Price, 64)
	v := domain.StorefrontVariant{
		ID:              n.ID,
		Price:           price,
		SKU:             n.SKU,
		InventoryItemID: n.InventoryItem.ID,
	}
	for _, opt := range n.SelectedOptions {
		if opt.Name == SizeOptionName {
			v.Size = opt.Value
			break
		}
	}
	return v
}

type productNode struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Tags    []string `json:"tags"`
	Options []struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		OptionValues []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"optionValues"`
	} `json:"options"`
	Variants struct {
		Edges []struct {
			Node variantNode `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

func (n productNode) toDetail() *ProductDetail {
	detail := &ProductDetail{ID: n.ID, Title: n.Title}
	for _, opt := range n.Options {
		if opt.Name != SizeOptionName {
			continue
		}
		for _, v := range opt.OptionValues {
			detail.OptionValues = append(detail.OptionValues, v.Name)
		}
	}
	for _, edge := range n.Variants.Edges {
		detail.Variants = append(detail.Variants, edge.Node.toStorefrontVariant())
	}
	return detail
}

// FindProduct runs a product search and returns the first hit, or nil when
// nothing matches.
func (s *StorefrontService) FindProduct(ctx context.Context, query string) (*ProductRef, error) {
	resp, err := s.client.Execute(ctx, shopify.ProductSearchQuery, map[string]interface{}{"query": query})
	if err != nil {
		return nil, fmt.Errorf("product search: %w", err)
	}
	var result struct {
		Products struct {
			Edges []struct {
				Node struct {
					ID    string `json:"id"`
					Title string `json:"title"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse product search response: %w", err)
	}
	if len(result.Products.Edges) == 0 {
		return nil, nil
	}
	node := result.Products.Edges[0].Node
	return &ProductRef{ID: node.ID, Title: node.Title}, nil
}

// FindDuplicate checks for an already-imported product by exact SKU tag or
// exact title match.
func (s *StorefrontService) FindDuplicate(ctx context.Context, sku, title string) (*ProductRef, error) {
	query := fmt.Sprintf("tag:'%s' OR title:'%s'", escapeQueryValue(sku), escapeQueryValue(title))
	return s.FindProduct(ctx, query)
}

// FindBySyncTag looks up a sync-managed product by its SKU tag.
func (s *StorefrontService) FindBySyncTag(ctx context.Context, sku string) (*ProductRef, error) {
	query := fmt.Sprintf("tag:'%s' AND tag:'%s'", escapeQueryValue(SyncTag), escapeQueryValue(sku))
	return s.FindProduct(ctx, query)
}

// GetProduct fetches the live option value order and variant set.
func (s *StorefrontService) GetProduct(ctx context.Context, productID string) (*ProductDetail, error) {
	resp, err := s.client.Execute(ctx, shopify.ProductWithVariantsQuery, map[string]interface{}{"id": productID})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	var result struct {
		Product *productNode `json:"product"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse product response: %w", err)
	}
	if result.Product == nil {
		return nil, &apperrors.ErrNotFound{Resource: "storefront product", Query: productID}
	}
	return result.Product.toDetail(), nil
}

// CreateProductParams is the import-flow create call.
type CreateProductParams struct {
	Title    string
	Vendor   string
	Sizes    []string
	Tags     []string
	ImageURL string
}

// CreateProduct creates the product with its size axis. The storefront
// usually materializes just one default variant; the caller diffs and
// bulk-creates the rest.
func (s *StorefrontService) CreateProduct(ctx context.Context, params CreateProductParams) (*ProductDetail, error) {
	values := make([]shopify.OptionValueInput, 0, len(params.Sizes))
	for _, size := range params.Sizes {
		values = append(values, shopify.OptionValueInput{Name: size})
	}
	input := shopify.ProductInput{
		Title:  params.Title,
		Vendor: params.Vendor,
		Status: "ACTIVE",
		Tags:   params.Tags,
		ProductOptions: []shopify.ProductOptionInput{
			{Name: SizeOptionName, Values: values},
		},
	}
	variables := map[string]interface{}{"input": input}
	if params.ImageURL != "" {
		variables["media"] = []shopify.CreateMediaInput{
			{OriginalSource: params.ImageURL, Alt: params.Title, MediaContentType: "IMAGE"},
		}
	}

	resp, err := s.client.Execute(ctx, shopify.ProductCreateMutation, variables)
	if err != nil {
		return nil, fmt.Errorf("productCreate: %w", err)
	}
	var result struct {
		ProductCreate struct {
			Product    *productNode         `json:"product"`
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse productCreate response: %w", err)
	}
	if err := userErrorsToErr("productCreate", result.ProductCreate.UserErrors); err != nil {
		return nil, err
	}
	if result.ProductCreate.Product == nil {
		return nil, fmt.Errorf("productCreate returned no product")
	}
	return result.ProductCreate.Product.toDetail(), nil
}

// BulkCreateVariants creates the given sizes with their target price set at
// creation time and returns the materialized variants.
func (s *StorefrontService) BulkCreateVariants(ctx context.Context, productID string, variants []domain.DesiredVariant) ([]domain.StorefrontVariant, error) {
	if len(variants) == 0 {
		return nil, nil
	}
	inputs := make([]shopify.ProductVariantsBulkInput, 0, len(variants))
	for _, v := range variants {
		price := formatPrice(v.Price)
		inputs = append(inputs, shopify.ProductVariantsBulkInput{
			Price: &price,
			OptionValues: []shopify.VariantOptionValueInput{
				{OptionName: SizeOptionName, Name: v.Size},
			},
		})
	}
	resp, err := s.client.Execute(ctx, shopify.ProductVariantsBulkCreateMutation, map[string]interface{}{
		"productId": productID,
		"variants":  inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("productVariantsBulkCreate: %w", err)
	}
	var result struct {
		ProductVariantsBulkCreate struct {
			ProductVariants []variantNode         `json:"productVariants"`
			UserErrors      []apperrors.UserError `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse productVariantsBulkCreate response: %w", err)
	}
	if err := userErrorsToErr("productVariantsBulkCreate", result.ProductVariantsBulkCreate.UserErrors); err != nil {
		return nil, err
	}
	created := make([]domain.StorefrontVariant, 0, len(result.ProductVariantsBulkCreate.ProductVariants))
	for _, node := range result.ProductVariantsBulkCreate.ProductVariants {
		created = append(created, node.toStorefrontVariant())
	}
	return created, nil
}

// BulkUpdateVariantPrices refreshes prices on matched variants.
func (s *StorefrontService) BulkUpdateVariantPrices(ctx context.Context, productID string, updates []domain.PriceUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	inputs := make([]shopify.ProductVariantsBulkInput, 0, len(updates))
	for _, u := range updates {
		id := u.Variant.ID
		price := formatPrice(u.Price)
		inputs = append(inputs, shopify.ProductVariantsBulkInput{ID: &id, Price: &price})
	}
	resp, err := s.client.Execute(ctx, shopify.ProductVariantsBulkUpdateMutation, map[string]interface{}{
		"productId": productID,
		"variants":  inputs,
	})
	if err != nil {
		return fmt.Errorf("productVariantsBulkUpdate: %w", err)
	}
	var result struct {
		ProductVariantsBulkUpdate struct {
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse productVariantsBulkUpdate response: %w", err)
	}
	return userErrorsToErr("productVariantsBulkUpdate", result.ProductVariantsBulkUpdate.UserErrors)
}

// BulkDeleteVariants removes stale variants.
func (s *StorefrontService) BulkDeleteVariants(ctx context.Context, productID string, variantIDs []string) error {
	if len(variantIDs) == 0 {
		return nil
	}
	resp, err := s.client.Execute(ctx, shopify.ProductVariantsBulkDeleteMutation, map[string]interface{}{
		"productId":   productID,
		"variantsIds": variantIDs,
	})
	if err != nil {
		return fmt.Errorf("productVariantsBulkDelete: %w", err)
	}
	var result struct {
		ProductVariantsBulkDelete struct {
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"productVariantsBulkDelete"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse productVariantsBulkDelete response: %w", err)
	}
	return userErrorsToErr("productVariantsBulkDelete", result.ProductVariantsBulkDelete.UserErrors)
}

// UpdateInventoryItem assigns the per-size inventory SKU and tracking flag.
func (s *StorefrontService) UpdateInventoryItem(ctx context.Context, inventoryItemID, sku string, tracked bool) error {
	resp, err := s.client.Execute(ctx, shopify.InventoryItemUpdateMutation, map[string]interface{}{
		"id":    inventoryItemID,
		"input": shopify.InventoryItemInput{SKU: sku, Tracked: tracked},
	})
	if err != nil {
		return fmt.Errorf("inventoryItemUpdate: %w", err)
	}
	var result struct {
		InventoryItemUpdate struct {
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"inventoryItemUpdate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse inventoryItemUpdate response: %w", err)
	}
	return userErrorsToErr("inventoryItemUpdate", result.InventoryItemUpdate.UserErrors)
}

// ReorderOptionValues issues the reorder mutation for the size axis.
func (s *StorefrontService) ReorderOptionValues(ctx context.Context, productID string, orderedValues []string) error {
	values := make([]shopify.OptionValueReorderInput, 0, len(orderedValues))
	for _, v := range orderedValues {
		values = append(values, shopify.OptionValueReorderInput{Name: v})
	}
	resp, err := s.client.Execute(ctx, shopify.ProductOptionsReorderMutation, map[string]interface{}{
		"productId": productID,
		"options": []shopify.OptionReorderInput{
			{Name: SizeOptionName, Values: values},
		},
	})
	if err != nil {
		return fmt.Errorf("productOptionsReorder: %w", err)
	}
	var result struct {
		ProductOptionsReorder struct {
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"productOptionsReorder"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse productOptionsReorder response: %w", err)
	}
	return userErrorsToErr("productOptionsReorder", result.ProductOptionsReorder.UserErrors)
}

// FindCollectionByTitle finds a collection by exact title. Returns nil when
// none exists; a fuzzy search hit with a different title does not count.
func (s *StorefrontService) FindCollectionByTitle(ctx context.Context, title string) (*CollectionInfo, error) {
	query := fmt.Sprintf("title:'%s'", escapeQueryValue(title))
	resp, err := s.client.Execute(ctx, shopify.CollectionsByTitleQuery, map[string]interface{}{"query": query})
	if err != nil {
		return nil, fmt.Errorf("collection search: %w", err)
	}
	var result struct {
		Collections struct {
			Edges []struct {
				Node struct {
					ID      string `json:"id"`
					Title   string `json:"title"`
					RuleSet *struct {
						Rules []struct {
							Column string `json:"column"`
						} `json:"rules"`
					} `json:"ruleSet"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"collections"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("parse collection search response: %w", err)
	}
	if len(result.Collections.Edges) == 0 {
		return nil, nil
	}
	node := result.Collections.Edges[0].Node
	if !strings.EqualFold(strings.TrimSpace(node.Title), strings.TrimSpace(title)) {
		return nil, nil
	}
	return &CollectionInfo{ID: node.ID, Title: node.Title, Smart: node.RuleSet != nil}, nil
}

// CreateSmartCollection creates a rule-based brand collection with a single
// vendor-equals rule.
func (s *StorefrontService) CreateSmartCollection(ctx context.Context, brand string) (string, error) {
	input := shopify.CollectionInput{
		Title: brand,
		RuleSet: &shopify.CollectionRuleSetInput{
			AppliedDisjunctively: false,
			Rules: []shopify.CollectionRuleInput{
				{Column: "VENDOR", Relation: "EQUALS", Condition: brand},
			},
		},
	}
	resp, err := s.client.Execute(ctx, shopify.CollectionCreateMutation, map[string]interface{}{"input": input})
	if err != nil {
		return "", fmt.Errorf("collectionCreate: %w", err)
	}
	var result struct {
		CollectionCreate struct {
			Collection struct {
				ID string `json:"id"`
			} `json:"collection"`
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"collectionCreate"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", fmt.Errorf("parse collectionCreate response: %w", err)
	}
	if err := userErrorsToErr("collectionCreate", result.CollectionCreate.UserErrors); err != nil {
		return "", err
	}
	return result.CollectionCreate.Collection.ID, nil
}

// AddProductToCollection appends a product to a manual collection.
func (s *StorefrontService) AddProductToCollection(ctx context.Context, collectionID, productID string) error {
	resp, err := s.client.Execute(ctx, shopify.CollectionAddProductsMutation, map[string]interface{}{
		"id":         collectionID,
		"productIds": []string{productID},
	})
	if err != nil {
		return fmt.Errorf("collectionAddProducts: %w", err)
	}
	var result struct {
		CollectionAddProducts struct {
			UserErrors []apperrors.UserError `json:"userErrors"`
		} `json:"collectionAddProducts"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("parse collectionAddProducts response: %w", err)
	}
	return userErrorsToErr("collectionAddProducts", result.CollectionAddProducts.UserErrors)
}

// ListSyncedProducts pages through every product carrying the sync marker
// tag. The SKU is recovered from the product's tags.
func (s *StorefrontService) ListSyncedProducts(ctx context.Context) ([]SyncedProduct, error) {
	query := fmt.Sprintf("tag:'%s'", SyncTag)
	var out []SyncedProduct
	cursor := ""
	for {
		variables := map[string]interface{}{
			"first": 50,
			"query": query,
		}
		if cursor != "" {
			variables["after"] = cursor
		}
		resp, err := s.client.Execute(ctx, shopify.SyncedProductsQuery, variables)
		if err != nil {
			return nil, fmt.Errorf("list synced products: %w", err)
		}
		var result struct {
			Products struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Edges []struct {
					Node struct {
						ID    string   `json:"id"`
						Title string   `json:"title"`
						Tags  []string `json:"tags"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"products"`
		}
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return nil, fmt.Errorf("parse synced products response: %w", err)
		}
		for _, edge := range result.Products.Edges {
			out = append(out, SyncedProduct{ID: edge.Node.ID, Title: edge.Node.Title, SKU: skuFromTags(edge.Node.Tags)})
		}
		if !result.Products.PageInfo.HasNextPage || result.Products.PageInfo.EndCursor == "" {
			break
		}
		cursor = result.Products.PageInfo.EndCursor
	}
	return out, nil
}

// skuFromTags recovers the SKU from a synced product's tags. Imports tag
// products with exactly [SyncTag, sku], but operators may add more tags
// later, so a SKU-shaped tag wins over arbitrary extras.
func skuFromTags(tags []string) string {
	fallback := ""
	for _, tag := range tags {
		if tag == SyncTag {
			continue
		}
		if looksLikeSKU(tag) {
			return tag
		}
		if fallback == "" {
			fallback = tag
		}
	}
	return fallback
}

// looksLikeSKU reports whether a tag has the shape of a style code: no
// spaces, only alphanumerics plus -_./ separators, and at least one digit.
func looksLikeSKU(tag string) bool {
	if tag == "" {
		return false
	}
	hasDigit := false
	for _, r := range tag {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r == '-', r == '_', r == '.', r == '/':
		default:
			return false
		}
	}
	return hasDigit
}

func userErrorsToErr(mutation string, userErrors []apperrors.UserError) error {
	if len(userErrors) == 0 {
		return nil
	}
	return &apperrors.ErrStorefrontMutation{Mutation: mutation, UserErrors: userErrors}
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

// escapeQueryValue keeps quotes in titles from breaking the search
// expression.
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", "\\'")
}
