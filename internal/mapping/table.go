package mapping

import (
	"context"
)

// Source loads the storefront-SKU → distributor-barcode mapping. The
// table is external reference data: consulted on every run, never built
// or written by this job.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Table is the loaded mapping with lookups in both directions. Barcodes
// come from the distributor, SKUs belong to the storefront; the two
// identifier spaces only meet here.
type Table struct {
	barcodeBySKU map[string]string
	skuByBarcode map[string]string
}

func NewTable(barcodeBySKU map[string]string) *Table {
	t := &Table{
		barcodeBySKU: make(map[string]string, len(barcodeBySKU)),
		skuByBarcode: make(map[string]string, len(barcodeBySKU)),
	}
	for sku, barcode := range barcodeBySKU {
		t.barcodeBySKU[sku] = barcode
		t.skuByBarcode[barcode] = sku
	}
	return t
}

func Load(ctx context.Context, src Source) (*Table, error) {
	m, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewTable(m), nil
}

func (t *Table) SKUForBarcode(barcode string) (string, bool) {
	sku, ok := t.skuByBarcode[barcode]
	return sku, ok
}

func (t *Table) BarcodeForSKU(sku string) (string, bool) {
	barcode, ok := t.barcodeBySKU[sku]
	return barcode, ok
}

func (t *Table) Len() int {
	return len(t.barcodeBySKU)
}
