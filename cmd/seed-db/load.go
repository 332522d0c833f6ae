package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/goods-catalog/internal/domain/product"
	"github.com/xenking/goods-catalog/internal/imagestore"
)

// bloomFPR is the false positive rate of the filter that spots repeated ids.
const bloomFPR = 0.001

// entry is a decoded product plus the raw image value from the dump, which
// may be a stored path or a data URI.
type entry struct {
	product *product.Product
	image   string
}

// repeatedIDs returns the ids the bloom filter saw more than once. Every
// real duplicate is in the set, plus the occasional false positive.
func repeatedIDs(goods []entry) map[string]struct{} {
	filter := bloom.NewWithEstimates(uint(max(len(goods), 1)), bloomFPR)
	repeated := make(map[string]struct{})
	for _, e := range goods {
		if filter.TestAndAddString(e.product.ID) {
			repeated[e.product.ID] = struct{}{}
		}
	}
	return repeated
}

// dedupe keeps the first entry of every id and reports how many were
// dropped. Only ids in repeatedIDs are tracked exactly.
func dedupe(goods []entry) ([]entry, int) {
	repeated := repeatedIDs(goods)
	if len(repeated) == 0 {
		return goods, 0
	}

	seen := make(map[string]struct{}, len(repeated))
	out := make([]entry, 0, len(goods))
	for _, e := range goods {
		id := e.product.ID
		if _, ok := repeated[id]; ok {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		out = append(out, e)
	}
	return out, len(goods) - len(out)
}

// loadFiles decodes every file in order. Later duplicates of an id are
// skipped, so the first file wins.
func loadFiles(ctx context.Context, files []string) ([]entry, error) {
	var all []entry
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		goods, err := decodeGoods(data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", path)
		}
		slog.Info("loaded file",
			slog.String("path", path),
			slog.Int("goods", len(goods)),
		)
		all = append(all, goods...)
	}

	out, skipped := dedupe(all)
	if skipped > 0 {
		slog.Info("skipped duplicate goods", slog.Int("duplicates", skipped))
	}
	return out, nil
}

// readFile reads path, decompressing it when the name ends in .gz.
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return data, nil
}

// decodeGoods decodes a JSON array of products with the API's input rules.
// Image values other than stored paths and data URIs are dropped.
func decodeGoods(data []byte) ([]entry, error) {
	var out []entry
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		in, err := product.DecodeInput(raw)
		if err != nil {
			return err
		}
		p, err := in.Product()
		if err != nil {
			return errors.Wrapf(err, "goods #%d", len(out))
		}

		e := entry{product: p}
		switch {
		case strings.HasPrefix(in.Image, imagestore.PathPrefix):
			p.Image = in.Image
		case strings.HasPrefix(in.Image, "data:"):
			e.image = in.Image
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
