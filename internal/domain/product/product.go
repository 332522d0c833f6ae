package product

import (
	"context"
	"fmt"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PageSize is the fixed number of products returned per page.
const PageSize = 10

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidRequest is returned when a request pre-condition fails.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrExists is returned when creating a product whose id is taken.
	ErrExists = errors.New("product already exists")
)

// StoreError reports a failure of the underlying data or image storage.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Product is one row of the goods catalog.
type Product struct {
	ID       string
	Title    string
	Category string
	Price    decimal.Decimal
	Count    int64
	Discount decimal.Decimal
	Image    string
}

// Value returns price multiplied by count. Discount is not applied.
func (p Product) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Count))
}

// Patch holds the fields of a partial update. Nil fields are left untouched.
type Patch struct {
	Title    *string
	Category *string
	Price    *decimal.Decimal
	Count    *int64
	Discount *decimal.Decimal
	Image    *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Category == nil && p.Price == nil &&
		p.Count == nil && p.Discount == nil && p.Image == nil
}

// Repository defines storage operations for the goods catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListBySearch(ctx context.Context, term string) ([]Product, error)
	ListByPage(ctx context.Context, page int) ([]Product, error)
	ListBySearchAndPage(ctx context.Context, term string, page int) ([]Product, error)
	ListByCategory(ctx context.Context, category string) ([]Product, error)
	ListDiscounted(ctx context.Context) ([]Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Insert(ctx context.Context, p *Product) error
	UpdateByID(ctx context.Context, id string, patch Patch) error
	DeleteByID(ctx context.Context, id string) error
}

// MaxPage is the largest page whose offset fits in an int. Larger pages are
// treated as MaxPage, which is past the end of any catalog.
const MaxPage = math.MaxInt/PageSize + 1

// Offset converts a 1-based page number into a row offset.
func Offset(page int) int {
	page = min(max(page, 1), MaxPage)
	return (page - 1) * PageSize
}
