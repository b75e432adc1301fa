package handler

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/merchant-catalog/internal/domain/product"
)

const (
	msgNotObject  = "Expected a dictionary of items."
	msgNotList    = "Expected a list of items."
	msgNotString  = "Not a valid string."
	msgNotNumber  = "A valid number is required."
	msgNotInteger = "A valid integer is required."
	msgNotBool    = "Must be a valid boolean."
)

// errMalformed is returned for bodies that are not syntactically valid JSON.
var errMalformed = errors.New("malformed JSON body")

// payloadDecoder reads request bodies into typed payloads. Values of the
// wrong JSON type are recorded as field errors and skipped so that every
// invalid field is reported at once.
type payloadDecoder struct {
	verr product.ValidationError
}

func (p *payloadDecoder) invalid(d *jx.Decoder, path, msg string) error {
	p.verr.Add(path, msg)
	return d.Skip()
}

// object decodes an object, calling fn for every key. Non-objects are
// recorded as field errors.
func (p *payloadDecoder) object(d *jx.Decoder, path string, fn func(d *jx.Decoder, key string) error) (bool, error) {
	if d.Next() != jx.Object {
		return false, p.invalid(d, path, msgNotObject)
	}
	return true, d.Obj(fn)
}

// str accepts strings and numbers, keeping the number's literal text.
func (p *payloadDecoder) str(d *jx.Decoder, path string) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		return "", p.invalid(d, path, msgNotString)
	}
}

// number returns the textual form of a decimal given as a JSON string or
// number. Null and blank strings yield an empty string.
func (p *payloadDecoder) number(d *jx.Decoder, path string) (string, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		return strings.TrimSpace(s), err
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		return "", p.invalid(d, path, msgNotNumber)
	}
}

// integer accepts integral JSON numbers and strings holding one.
func (p *payloadDecoder) integer(d *jx.Decoder, path string) (*int64, error) {
	var text string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		text = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		text = strings.TrimSpace(s)
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, p.invalid(d, path, msgNotInteger)
	}

	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		p.verr.Add(path, msgNotInteger)
		return nil, nil
	}
	return &v, nil
}

// boolean accepts JSON booleans and the strings "true", "false", "1", "0".
func (p *payloadDecoder) boolean(d *jx.Decoder, path string) (*bool, error) {
	switch d.Next() {
	case jx.Bool:
		v, err := d.Bool()
		return &v, err
	case jx.String, jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(strings.Trim(raw.String(), `"`)) {
		case "true", "1":
			v := true
			return &v, nil
		case "false", "0":
			v := false
			return &v, nil
		}
		p.verr.Add(path, msgNotBool)
		return nil, nil
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, p.invalid(d, path, msgNotBool)
	}
}

// decodeImportRequest decodes an import payload. The returned validation
// error only covers JSON type mismatches; constraint checks are left to
// product.Validate.
func decodeImportRequest(data []byte) (*product.ImportRequest, *product.ValidationError, error) {
	var (
		p   payloadDecoder
		req product.ImportRequest
	)
	d := jx.DecodeBytes(data)

	ok, err := p.object(d, "non_field_errors", func(d *jx.Decoder, key string) error {
		switch key {
		case "store_url":
			s, err := p.str(d, "store_url")
			req.StoreURL = s
			return err
		case "product":
			return p.productPayload(d, &req)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, nil, errors.Wrap(errMalformed, err.Error())
	}
	if !ok {
		p.verr = product.ValidationError{}
		p.verr.Add("non_field_errors", "Invalid data. Expected a dictionary.")
	}
	return &req, &p.verr, nil
}

func (p *payloadDecoder) productPayload(d *jx.Decoder, req *product.ImportRequest) error {
	var pp product.ProductPayload
	ok, err := p.object(d, "product", func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			pp.ID, err = p.str(d, "product.id")
		case "title":
			pp.Title, err = p.str(d, "product.title")
		case "description":
			pp.Description, err = p.str(d, "product.description")
		case "product_type":
			pp.ProductType, err = p.str(d, "product.product_type")
		case "variants":
			pp.Variants, err = p.variants(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if ok {
		req.Product = &pp
	}
	return err
}

func (p *payloadDecoder) variants(d *jx.Decoder) ([]product.VariantPayload, error) {
	switch d.Next() {
	case jx.Array:
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, p.invalid(d, "product.variants", msgNotList)
	}

	out := []product.VariantPayload{}
	err := d.Arr(func(d *jx.Decoder) error {
		path := "product.variants[" + strconv.Itoa(len(out)) + "]"
		var v product.VariantPayload
		_, err := p.object(d, path, func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				v.ID, err = p.str(d, path+".id")
			case "title":
				v.Title, err = p.str(d, path+".title")
			case "sku":
				v.SKU, err = p.str(d, path+".sku")
			case "price":
				v.Price, err = p.number(d, path+".price")
			case "compare_at_price":
				v.CompareAtPrice, err = p.number(d, path+".compare_at_price")
			case "inventory_quantity":
				v.InventoryQuantity, err = p.integer(d, path+".inventory_quantity")
			default:
				err = d.Skip()
			}
			return err
		})
		out = append(out, v)
		return err
	})
	return out, err
}

// decodeBulkActivateRequest decodes a bulk activation payload.
func decodeBulkActivateRequest(data []byte) (*product.BulkActivateRequest, *product.ValidationError, error) {
	var (
		p   payloadDecoder
		req product.BulkActivateRequest
	)
	d := jx.DecodeBytes(data)

	ok, err := p.object(d, "non_field_errors", func(d *jx.Decoder, key string) error {
		switch key {
		case "product_ids":
			return p.ids(d, &req)
		case "active":
			v, err := p.boolean(d, "active")
			req.Active = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, nil, errors.Wrap(errMalformed, err.Error())
	}
	if !ok {
		p.verr = product.ValidationError{}
		p.verr.Add("non_field_errors", "Invalid data. Expected a dictionary.")
	}
	return &req, &p.verr, nil
}

func (p *payloadDecoder) ids(d *jx.Decoder, req *product.BulkActivateRequest) error {
	switch d.Next() {
	case jx.Array:
	case jx.Null:
		return d.Null()
	default:
		return p.invalid(d, "product_ids", msgNotList)
	}

	req.ProductIDs = []int64{}
	i := 0
	return d.Arr(func(d *jx.Decoder) error {
		id, err := p.integer(d, "product_ids["+strconv.Itoa(i)+"]")
		i++
		if id != nil {
			req.ProductIDs = append(req.ProductIDs, *id)
		}
		return err
	})
}

// DecodeImportRequest decodes an import payload with the rules of the import
// endpoint. JSON type mismatches are returned as a *product.ValidationError;
// constraint checks are left to the caller.
func DecodeImportRequest(data []byte) (*product.ImportRequest, error) {
	req, verr, err := decodeImportRequest(data)
	if err != nil {
		return nil, err
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return req, nil
}
