package handler

import (
	"net/http"
	"strings"
)

// Route names, reported to logs, spans and metrics.
const (
	RouteListGoods           = "ListGoods"
	RouteGetGoods            = "GetGoods"
	RouteCreateGoods         = "CreateGoods"
	RouteUpdateGoods         = "UpdateGoods"
	RouteDeleteGoods         = "DeleteGoods"
	RouteListCategories      = "ListCategories"
	RouteListGoodsByCategory = "ListGoodsByCategory"
	RouteListDiscounted      = "ListDiscounted"
	RouteGetTotal            = "GetTotal"
	RouteGetImage            = "GetImage"
	RoutePreflight           = "Preflight"
	RouteNotFound            = "NotFound"
)

const (
	goodsPrefix      = "/api/goods"
	categoriesPrefix = goodsPrefix + "/categories"
	imagePrefix      = "/image"
)

// ServeHTTP dispatches the request to one endpoint handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, serve := h.route(r)
	serve(w, r)
}

// RouteName returns the name of the endpoint that would serve r.
func (h *Handler) RouteName(r *http.Request) string {
	name, _ := h.route(r)
	return name
}

// route matches in a fixed order: the categories prefix overlaps the
// goods prefix and must be checked first.
func (h *Handler) route(r *http.Request) (string, http.HandlerFunc) {
	path := r.URL.Path
	get := r.Method == http.MethodGet

	switch {
	case get && underPrefix(path, categoriesPrefix):
		if category := lastSegment(path, categoriesPrefix); category != "" {
			return RouteListGoodsByCategory, func(w http.ResponseWriter, r *http.Request) {
				h.listGoodsByCategory(w, r, category)
			}
		}
		return RouteListCategories, h.listCategories

	case underPrefix(path, goodsPrefix):
		id := lastSegment(path, goodsPrefix)
		switch r.Method {
		case http.MethodGet:
			if path == goodsPrefix || path == goodsPrefix+"/" {
				return RouteListGoods, h.listGoods
			}
			return RouteGetGoods, func(w http.ResponseWriter, r *http.Request) {
				h.getGoods(w, r, id)
			}
		case http.MethodPost:
			return RouteCreateGoods, h.createGoods
		case http.MethodPatch:
			return RouteUpdateGoods, func(w http.ResponseWriter, r *http.Request) {
				h.updateGoods(w, r, id)
			}
		case http.MethodDelete:
			return RouteDeleteGoods, func(w http.ResponseWriter, r *http.Request) {
				h.deleteGoods(w, r, id)
			}
		}

	case get && underPrefix(path, "/api/discount"):
		return RouteListDiscounted, h.listDiscounted

	case get && underPrefix(path, "/api/categories"):
		return RouteListCategories, h.listCategories

	case get && underPrefix(path, "/api/total"):
		return RouteGetTotal, h.getTotal

	case get && underPrefix(path, imagePrefix):
		name := lastSegment(path, imagePrefix)
		return RouteGetImage, func(w http.ResponseWriter, r *http.Request) {
			h.getImage(w, r, name)
		}
	}

	if r.Method == http.MethodOptions {
		return RoutePreflight, h.preflight
	}
	return RouteNotFound, h.notFound
}

// underPrefix reports whether path is prefix itself or lies below it.
func underPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// lastSegment returns the final path element below prefix, or "" when
// nothing follows the prefix.
func lastSegment(path, prefix string) string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if i := strings.LastIndexByte(rest, '/'); i >= 0 {
		return rest[i+1:]
	}
	return rest
}
