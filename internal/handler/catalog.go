package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/goods-catalog/internal/imagestore"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.goods.ListCategories(r.Context())
	if err != nil {
		fail(w, r, "list categories", err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, c := range categories {
		e.Str(c)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// listGoodsByCategory answers with a bare array, unlike the other listings.
func (h *Handler) listGoodsByCategory(w http.ResponseWriter, r *http.Request, category string) {
	goods, err := h.goods.ListByCategory(r.Context(), category)
	if err != nil {
		fail(w, r, "list goods by category", err)
		return
	}

	var e jx.Encoder
	encodeProducts(&e, goods)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listDiscounted(w http.ResponseWriter, r *http.Request) {
	goods, err := h.goods.ListDiscounted(r.Context())
	if err != nil {
		fail(w, r, "list discounted goods", err)
		return
	}
	writeGoods(w, goods)
}

// getTotal answers with the sum of price*count over the whole catalog.
func (h *Handler) getTotal(w http.ResponseWriter, r *http.Request) {
	goods, err := h.goods.List(r.Context())
	if err != nil {
		fail(w, r, "list goods", err)
		return
	}

	total := decimal.Zero
	for _, p := range goods {
		total = total.Add(p.Value())
	}

	var e jx.Encoder
	e.Float64(total.InexactFloat64())
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getImage(w http.ResponseWriter, r *http.Request, name string) {
	f, err := h.images.Open(name)
	if err != nil {
		if errors.Is(err, imagestore.ErrNotExist) || errors.Is(err, imagestore.ErrInvalidName) {
			writeMessage(w, http.StatusBadRequest, MessageInvalidRequest)
			return
		}
		fail(w, r, "open image", err)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", imagestore.ContentType(name, h.sniffContentType))
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		zctx.From(r.Context()).Warn("Image write interrupted", zap.String("name", name), zap.Error(err))
	}
}

func (h *Handler) preflight(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, MessagePreflight)
}

func (h *Handler) notFound(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusNotFound, MessageNotFound)
}
