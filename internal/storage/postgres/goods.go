package postgres

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/goods-catalog/internal/domain/product"
)

const (
	goodsColumns = `id, title, category, price, count, discount, image`

	listGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods ORDER BY id`

	searchGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods
		WHERE title ILIKE $1 ORDER BY id`

	pageGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods
		ORDER BY id LIMIT $1 OFFSET $2`

	searchPageGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods
		WHERE title ILIKE $1 ORDER BY id LIMIT $2 OFFSET $3`

	categoryGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods
		WHERE category ILIKE $1 ORDER BY id`

	discountedGoodsSQL = `SELECT ` + goodsColumns + ` FROM goods
		WHERE discount <> 0 ORDER BY id`

	listCategoriesSQL = `SELECT DISTINCT category FROM goods ORDER BY category`

	getGoodsByIDSQL = `SELECT ` + goodsColumns + ` FROM goods WHERE id = $1`

	insertGoodsSQL = `INSERT INTO goods (` + goodsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertGoodsSQL = insertGoodsSQL + `
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			price = EXCLUDED.price,
			count = EXCLUDED.count,
			discount = EXCLUDED.discount,
			image = EXCLUDED.image`

	deleteGoodsSQL = `DELETE FROM goods WHERE id = $1`
)

var _ product.Repository = (*GoodsRepository)(nil)

// GoodsRepository implements product.Repository backed by PostgreSQL.
type GoodsRepository struct {
	pool *pgxpool.Pool
}

// NewGoodsRepository returns a GoodsRepository that uses the given pool.
func NewGoodsRepository(pool *pgxpool.Pool) *GoodsRepository {
	return &GoodsRepository{pool: pool}
}

// List returns the whole catalog ordered by ID.
func (r *GoodsRepository) List(ctx context.Context) ([]product.Product, error) {
	return r.query(ctx, "list goods", listGoodsSQL)
}

// ListBySearch returns goods whose title contains term, ignoring case.
func (r *GoodsRepository) ListBySearch(ctx context.Context, term string) ([]product.Product, error) {
	return r.query(ctx, "search goods", searchGoodsSQL, likeContains(term))
}

// ListByPage returns one page of the catalog. Pages start at 1.
func (r *GoodsRepository) ListByPage(ctx context.Context, page int) ([]product.Product, error) {
	return r.query(ctx, "list goods page", pageGoodsSQL, product.PageSize, product.Offset(page))
}

// ListBySearchAndPage applies the title search before paginating.
func (r *GoodsRepository) ListBySearchAndPage(ctx context.Context, term string, page int) ([]product.Product, error) {
	return r.query(ctx, "search goods page", searchPageGoodsSQL,
		likeContains(term), product.PageSize, product.Offset(page))
}

// ListByCategory returns goods whose category equals category, ignoring case.
func (r *GoodsRepository) ListByCategory(ctx context.Context, category string) ([]product.Product, error) {
	return r.query(ctx, "list goods by category", categoryGoodsSQL, likeEscape(category))
}

// ListDiscounted returns goods with a non-zero discount.
func (r *GoodsRepository) ListDiscounted(ctx context.Context) ([]product.Product, error) {
	return r.query(ctx, "list discounted goods", discountedGoodsSQL)
}

// ListCategories returns the distinct category values in their original case.
func (r *GoodsRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, storeError("list categories", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, storeError("list categories", err)
	}
	return categories, nil
}

// GetByID returns a single product. It returns product.ErrNotFound when no
// row has the given id.
func (r *GoodsRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getGoodsByIDSQL, id)
	if err != nil {
		return nil, storeError("get goods "+id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanGoods)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, storeError("get goods "+id, err)
	}
	return &p, nil
}

// Insert adds a new product. A duplicate id fails with a StoreError wrapping
// the unique violation.
func (r *GoodsRepository) Insert(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, insertGoodsSQL, productArgs(p)...); err != nil {
		return storeError("insert goods "+p.ID, err)
	}
	return nil
}

// Upsert inserts p or overwrites the row with the same id.
func (r *GoodsRepository) Upsert(ctx context.Context, p *product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertGoodsSQL, productArgs(p)...); err != nil {
		return storeError("upsert goods "+p.ID, err)
	}
	return nil
}

// UpdateByID applies the non-nil fields of patch. It returns
// product.ErrNotFound when no row has the given id.
func (r *GoodsRepository) UpdateByID(ctx context.Context, id string, patch product.Patch) error {
	query, args := buildUpdate(id, patch)
	tag, err := r.pool.Exec(ctx, query, args)
	if err != nil {
		return storeError("update goods "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// DeleteByID removes a product. It returns product.ErrNotFound when nothing
// was deleted.
func (r *GoodsRepository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteGoodsSQL, id)
	if err != nil {
		return storeError("delete goods "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func (r *GoodsRepository) query(ctx context.Context, op, sql string, args ...any) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	goods, err := pgx.CollectRows(rows, scanGoods)
	if err != nil {
		return nil, storeError(op, err)
	}
	return goods, nil
}

// buildUpdate renders an UPDATE for the fields set in patch. An empty patch
// still matches the row so callers learn whether it exists.
func buildUpdate(id string, patch product.Patch) (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{"id": id}
	var sets []string
	set := func(column string, value any) {
		sets = append(sets, column+" = @"+column)
		args[column] = value
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.Price != nil {
		set("price", *patch.Price)
	}
	if patch.Count != nil {
		set("count", *patch.Count)
	}
	if patch.Discount != nil {
		set("discount", *patch.Discount)
	}
	if patch.Image != nil {
		set("image", *patch.Image)
	}
	if len(sets) == 0 {
		sets = append(sets, "id = id")
	}

	return "UPDATE goods SET " + strings.Join(sets, ", ") + " WHERE id = @id", args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likeEscape quotes LIKE wildcards so term matches literally.
func likeEscape(term string) string {
	return likeEscaper.Replace(term)
}

func likeContains(term string) string {
	return "%" + likeEscape(term) + "%"
}

func productArgs(p *product.Product) []any {
	return []any{p.ID, p.Title, p.Category, p.Price, p.Count, p.Discount, p.Image}
}

func scanGoods(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Title, &p.Category, &p.Price, &p.Count, &p.Discount, &p.Image)
	return p, err
}

func storeError(op string, err error) error {
	return &product.StoreError{Op: op, Err: err}
}
