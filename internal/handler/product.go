package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

// ImportProduct handles POST /products/import.
func (h *Handler) ImportProduct(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, verr, err := decodeImportRequest(body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, errMalformed.Error())
		return
	}
	if len(verr.Fields) > 0 {
		writeInvalidPayload(w, r, req, verr)
		return
	}

	res, err := h.catalog.ImportProduct(r.Context(), req)
	if err != nil {
		var notFound *product.MerchantNotFoundError
		if errors.As(err, &notFound) {
			verr := &product.ValidationError{}
			verr.Add("store_url", notFound.Error())
			writeValidation(w, verr)
			return
		}
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeDetail(e, res.Product)
	writeJSON(w, status, e)
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	verr := &product.ValidationError{}

	q := product.ListQuery{
		Active: product.ParseActiveFilter(values.Get("active")),
		Search: values.Get("search"),
	}
	if raw := values.Get("merchant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			verr.Add("merchant_id", "merchant_id must be an integer")
		} else {
			q.MerchantID = &id
		}
	}
	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			verr.Add("page", "Invalid page.")
		} else {
			q.Page = page
		}
	}
	if raw := values.Get("page_size"); raw != "" {
		// Invalid sizes fall back to the default.
		if size, err := strconv.Atoi(raw); err == nil {
			q.PageSize = size
		}
	}
	if len(verr.Fields) > 0 {
		writeValidation(w, verr)
		return
	}

	page, err := h.catalog.ListProducts(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var next, previous string
	if page.HasNext() {
		next = pageLink(r, page.Page+1)
	}
	if page.HasPrevious() {
		previous = pageLink(r, page.Page-1)
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodePage(e, page, next, previous)
	writeJSON(w, http.StatusOK, e)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	d, err := h.catalog.GetProductDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeDetail(e, d)
	writeJSON(w, http.StatusOK, e)
}

// BulkActivate handles POST /products/bulk-activate.
func (h *Handler) BulkActivate(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	req, verr, err := decodeBulkActivateRequest(body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, errMalformed.Error())
		return
	}
	if len(verr.Fields) > 0 {
		writeInvalidPayload(w, r, req, verr)
		return
	}
	if err := product.Validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	updated, err := h.catalog.BulkSetActive(r.Context(), req.ProductIDs, *req.Active)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("message")
	e.Str(fmt.Sprintf("Successfully updated %d products", updated))
	e.FieldStart("updated_count")
	e.Int64(updated)
	e.FieldStart("active")
	e.Bool(*req.Active)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e)
}

// RemoveProduct handles POST /products/{id}/remove.
func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	s, err := h.catalog.DeactivateProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.ObjStart()
	e.FieldStart("message")
	e.Str(fmt.Sprintf("Product %q has been deactivated", s.Title))
	e.FieldStart("product_id")
	e.Int64(s.ID)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, e)
}

// readBody reads the request body up to the configured limit.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		writeMessage(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

// writeInvalidPayload reports decoding type errors together with the
// constraint errors of the fields that did decode.
func writeInvalidPayload(w http.ResponseWriter, r *http.Request, req any, verr *product.ValidationError) {
	if err := product.Validate(req); err != nil {
		var constraints *product.ValidationError
		if !errors.As(err, &constraints) {
			writeError(w, r, err)
			return
		}
		verr.Merge(constraints)
	}
	writeValidation(w, verr)
}

// productID parses the {id} path parameter. Ids that cannot name a product
// are reported as not found.
func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, "Product not found")
		return 0, false
	}
	return id, true
}

// pageLink returns the absolute URL of the given page of the current listing.
// The page parameter is omitted for the first page.
func pageLink(r *http.Request, page int) string {
	values := r.URL.Query()
	if page <= 1 {
		values.Del("page")
	} else {
		values.Set("page", strconv.Itoa(page))
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: values.Encode(),
	}
	return u.String()
}
