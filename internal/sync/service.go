package sync

import (
	"context"
	"errors"
	"time"

	"stocksync_api/internal/distributor"
	"stocksync_api/internal/mapping"
	"stocksync_api/internal/storefront"
	"stocksync_api/pkg/logger"
)

// Distributor is the slice of the distributor client the orchestrator
// consumes. Tests substitute stubs.
type Distributor interface {
	ProductCodes(ctx context.Context) ([]string, error)
	ProductStock(ctx context.Context, code string) (stock int, ok bool, err error)
	ProductData(ctx context.Context, code string) (price, barcode string, err error)
}

// Storefront is the slice of the storefront client the orchestrator
// consumes.
type Storefront interface {
	FindBySKU(ctx context.Context, sku string) (*storefront.ProductRef, error)
	SetInventoryLevel(ctx context.Context, inventoryItemID int64, quantity int, productID int64) error
}

// Service drives one batch run: list distributor codes, then for each
// code fetch stock and barcode, map the barcode to a storefront SKU and
// push the new level. Codes are processed strictly one after another;
// a failure on one code is logged and the run moves on. Only the token
// attempt ceiling aborts the whole run.
type Service struct {
	distributor Distributor
	storefront  Storefront
	table       *mapping.Table

	log      logger.Logger
	crashLog logger.Logger

	retryDelay time.Duration // delay before the single update retry
	sleep      func(time.Duration)
	now        func() time.Time
}

func NewService(d Distributor, s Storefront, table *mapping.Table, log, crashLog logger.Logger) *Service {
	return &Service{
		distributor: d,
		storefront:  s,
		table:       table,
		log:         log,
		crashLog:    crashLog,
		retryDelay:  60 * time.Second,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run executes the batch and always returns the stats record, alongside
// the run-aborting error if there was one.
func (s *Service) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{Start: s.now()}
	defer func() { stats.finish(s.now()) }()

	s.log.Log("starting stock update run (%d mapped products)", s.table.Len())

	codes, err := s.distributor.ProductCodes(ctx)
	if err != nil {
		stats.Errors++
		s.crashLog.Log("failed to retrieve product codes: %v", err)
		return stats, err
	}
	if len(codes) == 0 {
		s.log.Log("no product codes to process")
		return stats, nil
	}
	s.log.Log("retrieved %d product codes to process", len(codes))

	for _, code := range codes {
		stats.CodesProcessed++
		if err := s.processCode(ctx, code, stats); err != nil {
			if errors.Is(err, distributor.ErrTokenLimitExceeded) {
				stats.Errors++
				s.crashLog.Log("token limit exceeded while processing %s, stopping run", code)
				return stats, err
			}
			stats.Errors++
			s.crashLog.Log("processing %s: %v", code, err)
		}
	}

	s.log.Log("stock update run finished: %d codes, %d updated, %d errors, %d warnings",
		stats.CodesProcessed, stats.ProductsUpdated, stats.Errors, stats.Warnings)
	return stats, nil
}

func (s *Service) processCode(ctx context.Context, code string, stats *Stats) error {
	stock, stockOK, err := s.distributor.ProductStock(ctx, code)
	if err != nil {
		return err
	}

	_, barcode, err := s.distributor.ProductData(ctx, code)
	if err != nil {
		return err
	}
	if barcode == "" {
		stats.Warnings++
		s.log.Log("no barcode for product code %s, skipping", code)
		return nil
	}

	sku, found := s.table.SKUForBarcode(barcode)
	if !found {
		stats.Warnings++
		s.log.Log("barcode %s not in mapping table, skipping", barcode)
		return nil
	}

	if !stockOK {
		stats.Warnings++
		s.log.Log("no usable stock level for product code %s, skipping update", code)
		return nil
	}

	ref, err := s.storefront.FindBySKU(ctx, sku)
	if err != nil {
		return err
	}
	if ref == nil {
		stats.Warnings++
		s.log.Log("sku %s (barcode %s) not found on storefront", sku, barcode)
		return nil
	}

	err = s.storefront.SetInventoryLevel(ctx, ref.InventoryItemID, stock, ref.ProductID)
	if err != nil && !errors.Is(err, storefront.ErrValidationRejected) {
		// one long-delay retry per item, then give up on it
		s.log.Log("update failed for product %d, retrying in %s: %v", ref.ProductID, s.retryDelay, err)
		s.sleep(s.retryDelay)
		err = s.storefront.SetInventoryLevel(ctx, ref.InventoryItemID, stock, ref.ProductID)
	}
	if err != nil {
		return err
	}

	stats.ProductsUpdated++
	return nil
}
