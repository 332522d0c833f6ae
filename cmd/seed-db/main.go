// Command seed-db loads product catalog dumps into PostgreSQL.
//
//	seed-db --database-url=postgres://... db/seed/goods.json extra.json.gz
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/goods-catalog/internal/imagestore"
	"github.com/xenking/goods-catalog/internal/storage/postgres"
)

const writers = 8

func main() {
	var (
		databaseURL string
		imagesDir   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&imagesDir, "images-dir", "image", "directory for images embedded as data URIs")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		files = []string{"db/seed/goods.json"}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, imagesDir, files); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, imagesDir string, files []string) error {
	goods, err := loadFiles(ctx, files)
	if err != nil {
		return errors.Wrap(err, "load goods")
	}
	if len(goods) == 0 {
		slog.Info("nothing to seed")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	images, err := imagestore.New(imagesDir, noop.NewMeterProvider().Meter("seed-db"))
	if err != nil {
		return errors.Wrap(err, "open image dir")
	}

	return seedGoods(ctx, postgres.NewGoodsRepository(pool), images, goods)
}

// seedGoods upserts goods with a bounded number of concurrent writers.
// Images given as data URIs are written to the image store first.
func seedGoods(ctx context.Context, repo *postgres.GoodsRepository, images *imagestore.Store, goods []entry) error {
	slog.Info("upserting goods", slog.Int("count", len(goods)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(writers)

	for _, e := range goods {
		g.Go(func() error {
			p := e.product
			if strings.HasPrefix(e.image, "data:") {
				path, err := images.Save(ctx, p.ID, e.image)
				switch {
				case errors.Is(err, imagestore.ErrUnsupported):
					slog.Warn("skipping unsupported image", slog.String("id", p.ID))
				case err != nil:
					return errors.Wrapf(err, "save image for %s", p.ID)
				default:
					p.Image = path
				}
			}

			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert goods %s", p.ID)
			}
			slog.Info("upserted goods", slog.String("id", p.ID), slog.String("title", p.Title))
			return nil
		})
	}

	return g.Wait()
}
