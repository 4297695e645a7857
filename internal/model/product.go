package model

// Product is a catalog entry identified by its external concept id.
type Product struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DisplayName returns the product name, falling back to the id when the
// catalog did not provide one.
func (p Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
