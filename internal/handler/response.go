package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/goods-catalog/internal/domain/product"
)

// Client-facing messages.
const (
	MessageNotFound       = "Не найдено"
	MessageServerError    = "Внутренняя ошибка сервера"
	MessageAdded          = "Товар успешно добавлен"
	MessageDeleted        = "Товар успешно удален"
	MessagePreflight      = "Успешный предварительный запрос"
	MessageInvalidRequest = "Неверный запрос"
)

const contentTypeJSON = "application/json"

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	// The status is already sent; a failed write means the client is gone.
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// fail logs err with the request-scoped logger, records it on the active
// span and answers with a generic 500.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	zctx.From(ctx).Error("Request failed",
		zap.String("op", op),
		zap.Error(err),
	)
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)

	writeMessage(w, http.StatusInternalServerError, MessageServerError)
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("category")
	e.Str(p.Category)
	e.FieldStart("price")
	e.Float64(p.Price.InexactFloat64())
	e.FieldStart("count")
	e.Int64(p.Count)
	e.FieldStart("discount")
	e.Float64(p.Discount.InexactFloat64())
	e.FieldStart("image")
	e.Str(p.Image)
	e.ObjEnd()
}

func encodeProducts(e *jx.Encoder, goods []product.Product) {
	e.ArrStart()
	for _, p := range goods {
		encodeProduct(e, p)
	}
	e.ArrEnd()
}

// writeGoods answers with {"goods": [...]}.
func writeGoods(w http.ResponseWriter, goods []product.Product) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("goods")
	encodeProducts(&e, goods)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
