package entity

// CatalogItem is one row of the product catalog snapshot.
type CatalogItem struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
