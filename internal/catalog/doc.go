// Package catalog answers whether a product identity has already been
// produced and records newly produced datasets.
//
// Two backends exist: HTTPCatalog queries a GRQ/Elasticsearch-style search
// index, and SQLiteCatalog keeps a local registry. Gate wraps either one with
// the optimistic policy used by the pipeline: a catalog that cannot answer is
// treated as not having the product.
package catalog
