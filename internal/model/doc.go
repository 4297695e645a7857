// Package model defines the catalog, snapshot and discount types shared by
// the scraper, the snapshot stores and the discount analysis.
package model
