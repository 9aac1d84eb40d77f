package devenv

// PortalTestConfig lives at dev/.state/chartportal.json5 and points the
// live-portal tests at a real account. The tests skip when it is absent.
type PortalTestConfig struct {
	SearchUrl    string `json:"search_url"`
	LoginUrl     string `json:"login_url"`
	ChartBaseUrl string `json:"chart_base_url"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	// a product id known to currently have chart steps
	TargetProduct string `json:"target_product"`
}
