package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

// writeJSON writes an encoded body with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeMessage writes {"error": msg}.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("error")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, e)
}

// writeValidation writes a 400 response listing every invalid field.
func writeValidation(w http.ResponseWriter, verr *product.ValidationError) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("error")
	e.Str(verr.Error())
	e.FieldStart("fields")
	e.ObjStart()
	for _, f := range verr.Fields {
		e.FieldStart(f.Field)
		e.Str(f.Message)
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusBadRequest, e)
}

// writeError maps domain errors to responses. Unknown errors are logged and
// reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *product.ValidationError
		conflict *product.ConflictError
		merchant *product.MerchantNotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.As(err, &conflict):
		writeMessage(w, http.StatusBadRequest, conflict.Error())
	case errors.As(err, &merchant):
		writeMessage(w, http.StatusNotFound, merchant.Error())
	case errors.Is(err, product.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Product not found")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}
