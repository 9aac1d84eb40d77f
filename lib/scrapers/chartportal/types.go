package chartportal

// ProductFilter is the query the portal's search form gets set to.
// ProductType picks the form's top-level mode, the remaining fields are
// optional sub-selects and are left untouched when empty.
type ProductFilter struct {
	ProductType ProductType `json:"product_type"`
	Category    string      `json:"category,omitempty"`
	Type        string      `json:"type,omitempty"`
	Area        string      `json:"area,omitempty"`
	Date        string      `json:"date,omitempty"`
}

// CatalogEntry is one selectable product option exposed by the portal.
// Category is the optgroup label the option sits under, empty when the
// list is flat.
type CatalogEntry struct {
	Id       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ProductCatalogResult is a snapshot of the search form's dropdown
// contents taken after the portal finished repopulating them. Immutable
// once returned.
type ProductCatalogResult struct {
	Products   []CatalogEntry `json:"products"`
	Categories []string       `json:"categories"`
	Types      []string       `json:"types"`
	Areas      []string       `json:"areas"`
}

// TimeStep is one selectable forecast instant of a product. Index is the
// position within the product's current step sequence and is only
// meaningful for the fetch that produced it; after the portal advances
// to the next forecast run the same position holds different content.
type TimeStep struct {
	Label    string `json:"label"`
	Index    int    `json:"index"`
	ImageUrl string `json:"image_url"`
}

// ChartUrlsResult is the outcome of selecting one product. A portal
// response with no usable entries comes back as an empty (non-nil)
// Steps slice, not an error.
type ChartUrlsResult struct {
	ProductName string     `json:"product_name"`
	Date        string     `json:"date"`
	Steps       []TimeStep `json:"steps"`
}

// CatalogAndChartUrlsResult pairs a catalog refresh with a step harvest
// performed under one session lock, so nothing can change the product
// type in between.
type CatalogAndChartUrlsResult struct {
	Catalog   ProductCatalogResult `json:"catalog"`
	ChartUrls ChartUrlsResult      `json:"chart_urls"`
}

// AuthStatus reports whether the browser session currently holds a
// logged-in portal state.
type AuthStatus struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
}
