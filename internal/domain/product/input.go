package product

import (
	"math"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// Input is a product payload as sent by clients. Numeric fields may arrive
// as JSON numbers or as strings; nil fields were absent from the payload.
type Input struct {
	ID       *string
	Title    *string
	Category *string
	Price    *decimal.Decimal
	Count    *int64
	// Discount is set whenever the key is present. Falsy values
	// (false, null, "", 0) decode to zero.
	Discount *decimal.Decimal
	// Image is the raw image value, usually a data URI. Non-string values
	// decode to "".
	Image string
}

// DecodeInput parses a JSON object into an Input. Unknown keys are skipped.
func DecodeInput(data []byte) (*Input, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return nil, errors.New("product payload must be a JSON object")
	}

	var in Input
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := decodeID(d)
			if err != nil {
				return errors.Wrap(err, "id")
			}
			in.ID = v
		case "title":
			v, err := decodeText(d)
			if err != nil {
				return errors.Wrap(err, "title")
			}
			in.Title = v
		case "category":
			v, err := decodeText(d)
			if err != nil {
				return errors.Wrap(err, "category")
			}
			in.Category = v
		case "price":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			in.Price = v
		case "count":
			v, err := decodeDecimal(d)
			if err != nil {
				return errors.Wrap(err, "count")
			}
			if v != nil {
				if v.LessThan(minCount) || v.GreaterThan(maxCount) {
					return errors.Wrapf(ErrInvalidRequest, "count %s out of range", v)
				}
				n := v.IntPart()
				in.Count = &n
			}
		case "discount":
			v, err := decodeDiscount(d)
			if err != nil {
				return errors.Wrap(err, "discount")
			}
			in.Discount = &v
		case "image":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "image")
			}
			in.Image = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	return &in, nil
}

// Product builds a full product from the input. All of id, title, category,
// price and count must be present.
func (in *Input) Product() (*Product, error) {
	if in.ID == nil || *in.ID == "" || in.Title == nil || in.Category == nil ||
		in.Price == nil || in.Count == nil {
		return nil, ErrInvalidRequest
	}
	p := &Product{
		ID:       *in.ID,
		Title:    *in.Title,
		Category: *in.Category,
		Price:    *in.Price,
		Count:    *in.Count,
	}
	if in.Discount != nil {
		p.Discount = *in.Discount
	}
	return p, nil
}

// Patch builds a partial update from the input. A missing discount resets
// it to zero like a falsy one. The id and image keys are not part of the
// patch: rows are addressed by id and images are stored separately.
func (in *Input) Patch() Patch {
	discount := in.Discount
	if discount == nil {
		zero := decimal.Zero
		discount = &zero
	}
	return Patch{
		Title:    in.Title,
		Category: in.Category,
		Price:    in.Price,
		Count:    in.Count,
		Discount: discount,
	}
}

func decodeID(d *jx.Decoder) (*string, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return &s, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		s := string(n)
		return &s, nil
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeText(d *jx.Decoder) (*string, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return &s, nil
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeDecimal(d *jx.Decoder) (*decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(string(n))
		if err != nil {
			return nil, err
		}
		return &v, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		v, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		return &v, nil
	case jx.Null:
		return nil, d.Null()
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}
}

func decodeDiscount(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Bool:
		v, err := d.Bool()
		if err != nil {
			return decimal.Zero, err
		}
		if v {
			return decimal.Zero, errors.New("unexpected true")
		}
		return decimal.Zero, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		if s = strings.TrimSpace(s); s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		v, err := decodeDecimal(d)
		if err != nil || v == nil {
			return decimal.Zero, err
		}
		return *v, nil
	}
}

// Bounds of the INTEGER count column.
var (
	minCount = decimal.NewFromInt(math.MinInt32)
	maxCount = decimal.NewFromInt(math.MaxInt32)
)
