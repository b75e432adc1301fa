package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func encodeSummary(e *jx.Encoder, s product.Summary) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(s.ID)
	e.FieldStart("title")
	e.Str(s.Title)
	e.FieldStart("base_price")
	encodeMoney(e, s.BasePrice)
	e.FieldStart("active")
	e.Bool(s.Active)
	e.FieldStart("image_url")
	e.Null()
	e.ObjEnd()
}

func encodeVariant(e *jx.Encoder, v product.Variant) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(v.ID)
	e.FieldStart("external_id")
	e.Str(v.ExternalID)
	e.FieldStart("name")
	e.Str(v.Name)
	e.FieldStart("sku")
	e.Str(v.SKU)
	e.FieldStart("price")
	encodeMoney(e, v.Price)
	e.FieldStart("retail_price")
	encodeMoney(e, v.RetailPrice)
	e.FieldStart("quantity")
	e.Int64(v.Quantity)
	e.FieldStart("active")
	e.Bool(v.Active)
	e.ObjEnd()
}

func encodeDetail(e *jx.Encoder, d *product.Detail) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(d.ID)
	e.FieldStart("external_id")
	e.Str(d.ExternalID)
	e.FieldStart("title")
	e.Str(d.Title)
	e.FieldStart("description")
	e.Str(d.Description)
	e.FieldStart("product_type")
	e.Str(d.ProductType)
	e.FieldStart("active")
	e.Bool(d.Active)
	e.FieldStart("base_price")
	encodeMoney(e, d.BasePrice)
	e.FieldStart("created_at")
	e.Str(d.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("merchant_name")
	e.Str(d.MerchantName)
	e.FieldStart("image_url")
	e.Null()
	e.FieldStart("variants")
	e.ArrStart()
	for _, v := range d.Variants {
		encodeVariant(e, v)
	}
	e.ArrEnd()
	e.ObjEnd()
}

// encodePage writes the paginated list body. Empty links are written as null.
func encodePage(e *jx.Encoder, p *product.Page, next, previous string) {
	e.ObjStart()
	e.FieldStart("count")
	e.Int(p.Count)
	e.FieldStart("next")
	encodeLink(e, next)
	e.FieldStart("previous")
	encodeLink(e, previous)
	e.FieldStart("results")
	e.ArrStart()
	for _, s := range p.Items {
		encodeSummary(e, s)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeLink(e *jx.Encoder, link string) {
	if link == "" {
		e.Null()
		return
	}
	e.Str(link)
}
