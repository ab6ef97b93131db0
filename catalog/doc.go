// Package catalog turns a product catalog into engine records and answers
// product recommendation queries on top of the engine.
//
// Products are read from JSON lines or Parquet, formatted into embedding text
// with a [TextTemplate], embedded through an [embed.Provider] and stored with
// their category, brand, price and stock as metadata. A [Recommender] then
// finds similar products, searches by free text and proposes substitutions.
package catalog
