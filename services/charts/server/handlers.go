package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/services/charts"
)

// Service is the slice of the charts service the REST surface exposes.
type Service interface {
	AuthStatus(ctx context.Context) (chartportal.AuthStatus, error)
	Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error)
	SetCredentials(ctx context.Context, username, password string) error
	Catalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error)
	ChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error)
	CatalogAndChartUrls(ctx context.Context, filter chartportal.ProductFilter, productId string) (chartportal.CatalogAndChartUrlsResult, error)
	ChartUrlsForPpt(ctx context.Context, productType chartportal.ProductType, productId string) (chartportal.ChartUrlsResult, error)
	Image(ctx context.Context, url string) (string, error)
	Download(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error)
	Relink(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error)
}

type errorBody struct {
	Error string `json:"error"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	Stored bool `json:"stored"`
}

type imageResponse struct {
	DataUrl string `json:"data_url"`
}

type downloadsRequest struct {
	Urls []string `json:"urls"`
}

type downloadsResponse struct {
	Paths []string `json:"paths"`
}

type relinkRequest struct {
	ProductType string   `json:"product_type"`
	Saved       []string `json:"saved"`
}

type healthResponse struct {
	Status string `json:"status"`
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(value)
	if err != nil {
		slog.Warn("failed to encode response body", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, chartportal.NotAuthenticated) || errors.Is(err, chartportal.LoginFailed) {
		status = http.StatusUnauthorized
	}
	writeJson(w, status, errorBody{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJson(w, http.StatusBadRequest, errorBody{Error: message})
}

// productTypeFromQuery treats a missing productType as the portal's
// first mode instead of routing through the loud unknown-type fallback.
func productTypeFromQuery(q url.Values) chartportal.ProductType {
	raw := q.Get("productType")
	if raw == "" {
		return chartportal.ProductTypeCharts
	}
	return chartportal.ParseProductType(raw)
}

func filterFromQuery(q url.Values) chartportal.ProductFilter {
	return chartportal.ProductFilter{
		ProductType: productTypeFromQuery(q),
		Category:    q.Get("category"),
		Type:        q.Get("type"),
		Area:        q.Get("area"),
		Date:        q.Get("date"),
	}
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, healthResponse{Status: "ok"})
}

// AuthStatus handles GET /v1/auth/status
func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.AuthStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, status)
}

// Login handles POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	status, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, status)
}

// SetCredentials handles POST /v1/auth/credentials
func (h *Handler) SetCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	if err := h.service.SetCredentials(r.Context(), req.Username, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, credentialsResponse{Stored: true})
}

// Catalog handles GET /v1/catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.Catalog(r.Context(), filterFromQuery(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, catalog)
}

// Charts handles GET /v1/charts
func (h *Handler) Charts(w http.ResponseWriter, r *http.Request) {
	productId := r.URL.Query().Get("productId")
	if productId == "" {
		writeBadRequest(w, "productId is required")
		return
	}

	result, err := h.service.ChartUrls(r.Context(), productId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, result)
}

// CatalogCharts handles GET /v1/catalog-charts
func (h *Handler) CatalogCharts(w http.ResponseWriter, r *http.Request) {
	productId := r.URL.Query().Get("productId")
	if productId == "" {
		writeBadRequest(w, "productId is required")
		return
	}

	result, err := h.service.CatalogAndChartUrls(r.Context(), filterFromQuery(r.URL.Query()), productId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, result)
}

// PptCharts handles GET /v1/ppt/charts
func (h *Handler) PptCharts(w http.ResponseWriter, r *http.Request) {
	productId := r.URL.Query().Get("productId")
	if productId == "" {
		writeBadRequest(w, "productId is required")
		return
	}

	result, err := h.service.ChartUrlsForPpt(r.Context(), productTypeFromQuery(r.URL.Query()), productId)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, result)
}

// Image handles GET /v1/image
func (h *Handler) Image(w http.ResponseWriter, r *http.Request) {
	imageUrl := r.URL.Query().Get("url")
	if imageUrl == "" {
		writeBadRequest(w, "url is required")
		return
	}

	dataUrl, err := h.service.Image(r.Context(), imageUrl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, imageResponse{DataUrl: dataUrl})
}

// Downloads handles POST /v1/downloads
func (h *Handler) Downloads(w http.ResponseWriter, r *http.Request) {
	var req downloadsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	paths, err := h.service.Download(r.Context(), req.Urls, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	writeJson(w, http.StatusOK, downloadsResponse{Paths: paths})
}

// Relink handles POST /v1/relink
func (h *Handler) Relink(w http.ResponseWriter, r *http.Request) {
	var req relinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	productType := chartportal.ProductTypeCharts
	if req.ProductType != "" {
		productType = chartportal.ParseProductType(req.ProductType)
	}

	result, err := h.service.Relink(r.Context(), productType, req.Saved)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJson(w, http.StatusOK, result)
}
