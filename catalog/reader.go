package catalog

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/parquet-go/parquet-go"
)

// ReadJSONLines decodes one product per JSON value, typically one per line.
func ReadJSONLines(r io.Reader) ([]Product, error) {
	dec := json.NewDecoder(r)

	var products []Product
	for {
		var p Product
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				return products, nil
			}
			return nil, fmt.Errorf("catalog: decode product %d: %w", len(products)+1, err)
		}
		products = append(products, p)
	}
}

// ReadParquet reads every product row of a Parquet file of the given size.
func ReadParquet(r io.ReaderAt, size int64) ([]Product, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("catalog: open parquet: %w", err)
	}

	pr := parquet.NewGenericReader[Product](pf)
	defer func() { _ = pr.Close() }()

	products := make([]Product, 0, pr.NumRows())
	buf := make([]Product, 256)
	for {
		n, err := pr.Read(buf)
		products = append(products, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return products, nil
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read parquet: %w", err)
		}
		if n == 0 {
			return products, nil
		}
	}
}

// WriteParquet writes products as a zstd-compressed Parquet file.
func WriteParquet(w io.Writer, products []Product) error {
	pw := parquet.NewGenericWriter[Product](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(products); err != nil {
		_ = pw.Close()
		return fmt.Errorf("catalog: write parquet: %w", err)
	}
	return pw.Close()
}
