package shopify

// ProductCreateMutation creates a product with one option axis. The create
// typically materializes only a default variant; the missing sizes are
// bulk-created afterwards.
const ProductCreateMutation = `
mutation productCreate($input: ProductInput!, $media: [CreateMediaInput!]) {
  productCreate(input: $input, media: $media) {
    product {
      id
      title
      options {
        id
        name
        optionValues {
          id
          name
        }
      }
      variants(first: 100) {
        edges {
          node {
            id
            price
            inventoryItem {
              id
            }
            selectedOptions {
              name
              value
            }
          }
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductVariantsBulkCreateMutation creates variants with price set at
// creation time.
const ProductVariantsBulkCreateMutation = `
mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants) {
    productVariants {
      id
      price
      inventoryItem {
        id
      }
      selectedOptions {
        name
        value
      }
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductVariantsBulkUpdateMutation refreshes prices on existing variants.
const ProductVariantsBulkUpdateMutation = `
mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants {
      id
      price
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductVariantsBulkDeleteMutation removes stale variants.
const ProductVariantsBulkDeleteMutation = `
mutation productVariantsBulkDelete($productId: ID!, $variantsIds: [ID!]!) {
  productVariantsBulkDelete(productId: $productId, variantsIds: $variantsIds) {
    product {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// InventoryItemUpdateMutation assigns the per-size inventory SKU and
// enables tracking.
const InventoryItemUpdateMutation = `
mutation inventoryItemUpdate($id: ID!, $input: InventoryItemInput!) {
  inventoryItemUpdate(id: $id, input: $input) {
    inventoryItem {
      id
      sku
      tracked
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductOptionsReorderMutation reorders option values; the storefront
// reorders the variant display order to match.
const ProductOptionsReorderMutation = `
mutation productOptionsReorder($productId: ID!, $options: [OptionReorderInput!]!) {
  productOptionsReorder(productId: $productId, options: $options) {
    product {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// CollectionCreateMutation creates a brand collection. With a ruleSet the
// collection is smart and picks up products by vendor automatically.
const CollectionCreateMutation = `
mutation collectionCreate($input: CollectionInput!) {
  collectionCreate(input: $input) {
    collection {
      id
      title
    }
    userErrors {
      field
      message
    }
  }
}
`

// CollectionAddProductsMutation appends a product to a manual collection.
const CollectionAddProductsMutation = `
mutation collectionAddProducts($id: ID!, $productIds: [ID!]!) {
  collectionAddProducts(id: $id, productIds: $productIds) {
    collection {
      id
    }
    userErrors {
      field
      message
    }
  }
}
`

// ProductInput is the input for productCreate.
type ProductInput struct {
	Title          string               `json:"title"`
	Vendor         string               `json:"vendor,omitempty"`
	Status         string               `json:"status,omitempty"`
	Tags           []string             `json:"tags,omitempty"`
	ProductOptions []ProductOptionInput `json:"productOptions,omitempty"`
}

type ProductOptionInput struct {
	Name   string             `json:"name"`
	Values []OptionValueInput `json:"values"`
}

type OptionValueInput struct {
	Name string `json:"name"`
}

// CreateMediaInput attaches the primary product image on create.
type CreateMediaInput struct {
	OriginalSource   string `json:"originalSource"`
	Alt              string `json:"alt,omitempty"`
	MediaContentType string `json:"mediaContentType"`
}

// ProductVariantsBulkInput is used for both bulk create (option values +
// price) and bulk update (id + price).
type ProductVariantsBulkInput struct {
	ID           *string                   `json:"id,omitempty"`
	Price        *string                   `json:"price,omitempty"`
	OptionValues []VariantOptionValueInput `json:"optionValues,omitempty"`
}

type VariantOptionValueInput struct {
	OptionName string `json:"optionName"`
	Name       string `json:"name"`
}

// InventoryItemInput is the input for inventoryItemUpdate.
type InventoryItemInput struct {
	SKU     string `json:"sku"`
	Tracked bool   `json:"tracked"`
}

// OptionReorderInput names an option and the new order of its values.
type OptionReorderInput struct {
	Name   string                    `json:"name"`
	Values []OptionValueReorderInput `json:"values"`
}

type OptionValueReorderInput struct {
	Name string `json:"name"`
}

// CollectionInput is the input for collectionCreate.
type CollectionInput struct {
	Title   string                  `json:"title"`
	RuleSet *CollectionRuleSetInput `json:"ruleSet,omitempty"`
}

type CollectionRuleSetInput struct {
	AppliedDisjunctively bool                  `json:"appliedDisjunctively"`
	Rules                []CollectionRuleInput `json:"rules"`
}

type CollectionRuleInput struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}
