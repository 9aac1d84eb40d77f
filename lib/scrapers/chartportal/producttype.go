package chartportal

import "log/slog"

// ProductType is the portal's top-level chart grouping. The set is
// closed: the portal's search form only understands the numeric codes
// below and silently ignores anything else, so an unknown type must be
// coerced before it reaches the page.
type ProductType string

const (
	ProductTypeCharts         ProductType = "CHARTS"
	ProductTypeSurface        ProductType = "SURFACE"
	ProductTypeUpperAir       ProductType = "UPPER_AIR"
	ProductTypeAuxChart       ProductType = "AUX_CHART"
	ProductTypeShortForecast  ProductType = "SHORT_FORECAST"
	ProductTypeMediumForecast ProductType = "MEDIUM_FORECAST"
	ProductTypeNumericModel   ProductType = "NUMERIC_MODEL"
	ProductTypeWave           ProductType = "WAVE"
	ProductTypeTyphoon        ProductType = "TYPHOON"
	ProductTypeSatellite      ProductType = "SATELLITE"
	ProductTypeRadar          ProductType = "RADAR"
)

// AllProductTypes lists every type the portal's form knows, in form
// order.
var AllProductTypes = []ProductType{
	ProductTypeCharts,
	ProductTypeSurface,
	ProductTypeUpperAir,
	ProductTypeAuxChart,
	ProductTypeShortForecast,
	ProductTypeMediumForecast,
	ProductTypeNumericModel,
	ProductTypeWave,
	ProductTypeTyphoon,
	ProductTypeSatellite,
	ProductTypeRadar,
}

// FormCode maps the type to the value the portal's mode select expects.
func (t ProductType) FormCode() string {
	switch t {
	case ProductTypeCharts:
		return "10"
	case ProductTypeSurface:
		return "11"
	case ProductTypeUpperAir:
		return "12"
	case ProductTypeAuxChart:
		return "13"
	case ProductTypeShortForecast:
		return "21"
	case ProductTypeMediumForecast:
		return "22"
	case ProductTypeNumericModel:
		return "31"
	case ProductTypeWave:
		return "32"
	case ProductTypeTyphoon:
		return "33"
	case ProductTypeSatellite:
		return "41"
	case ProductTypeRadar:
		return "42"
	}

	// unknown types fall back to the first mode the form offers
	slog.Warn(
		"unknown chart product type, falling back to the first form mode",
		"product_type", string(t),
		"fallback", ProductTypeCharts,
	)
	return ProductTypeCharts.FormCode()
}

func (t ProductType) Valid() bool {
	for _, known := range AllProductTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseProductType resolves a caller-provided name to a known type,
// falling back to ProductTypeCharts for anything unrecognized.
func ParseProductType(name string) ProductType {
	t := ProductType(name)
	if t.Valid() {
		return t
	}
	slog.Warn(
		"unknown chart product type name, falling back",
		"name", name,
		"fallback", ProductTypeCharts,
	)
	return ProductTypeCharts
}
