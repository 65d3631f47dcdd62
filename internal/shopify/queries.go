package shopify

// ProductSearchQuery finds a product by a search expression (e.g.
// "tag:'FV5029-100' OR title:'Air Force 1'"); first hit is authoritative.
const ProductSearchQuery = `
query findProduct($query: String!) {
  products(first: 1, query: $query) {
    edges {
      node {
        id
        title
        tags
      }
    }
  }
}
`

// ProductWithVariantsQuery fetches a product's option axis and variant set
// with everything reconciliation needs: price, inventory item, size value.
const ProductWithVariantsQuery = `
query getProductWithVariants($id: ID!) {
  product(id: $id) {
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
          sku
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
}
`

// SyncedProductsQuery pages through products carrying the sync marker tag.
const SyncedProductsQuery = `
query getSyncedProducts($first: Int!, $after: String, $query: String!) {
  products(first: $first, after: $after, query: $query) {
    pageInfo {
      hasNextPage
      endCursor
    }
    edges {
      node {
        id
        title
        tags
      }
    }
  }
}
`

// CollectionsByTitleQuery finds a collection by exact title. ruleSet is
// non-null for smart (rule-based) collections.
const CollectionsByTitleQuery = `
query findCollection($query: String!) {
  collections(first: 1, query: $query) {
    edges {
      node {
        id
        title
        ruleSet {
          rules {
            column
            relation
            condition
          }
        }
      }
    }
  }
}
`
