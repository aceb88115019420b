// gbptree_bench measures raw node-layout throughput: key inserts into a leaf
// page and pointer-pair rewrites across generation boundaries, with page
// cache metrics exposed over Prometheus.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/yuyangxu/gbptree/core/indexing/gbptree"
	"github.com/yuyangxu/gbptree/core/pagecache"
	"github.com/yuyangxu/gbptree/pkg/logger"
	"github.com/yuyangxu/gbptree/pkg/telemetry"
	"go.uber.org/zap"
)

var (
	pageSize        = flag.Int("page_size", 8192, "Page size in bytes")
	rounds          = flag.Int("rounds", 1000, "Number of fill/drain rounds to run")
	pointerRewrites = flag.Int("pointer_rewrites", 100000, "Number of sibling pointer rewrites to run")
	enableTelemetry = flag.Bool("telemetry", false, "Expose Prometheus metrics while running")
	telemetryPort   = flag.Int("telemetry_port", 2112, "Port for the /metrics endpoint")
	logLevel        = flag.String("log_level", "info", "Minimum log level")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", OutputFile: "stderr"})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	tel, shutdown, err := telemetry.New(telemetry.Config{
		Enabled:        *enableTelemetry,
		ServiceName:    "gbptree_bench",
		PrometheusPort: *telemetryPort,
	})
	if err != nil {
		log.Fatal("failed to set up telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	cache, err := pagecache.New(*pageSize, log, tel.Meter)
	if err != nil {
		log.Fatal("failed to create page cache", zap.Error(err))
	}
	node, err := gbptree.NewTreeNode[uint64, uint64](*pageSize, gbptree.Uint64Layout{})
	if err != nil {
		log.Fatal("failed to create tree node layout", zap.Error(err))
	}

	page, err := cache.AllocatePage()
	if err != nil {
		log.Fatal("failed to allocate page", zap.Error(err))
	}
	cursor, err := cache.NewCursor(page.GetPageID())
	if err != nil {
		log.Fatal("failed to open cursor", zap.Error(err))
	}
	defer cursor.Close()

	runInserts(log, node, cursor)
	runPointerRewrites(log, node, cursor)
}

// runInserts fills the leaf to capacity and drains it again, once per round.
func runInserts(log *zap.Logger, node *gbptree.TreeNode[uint64, uint64], cursor pagecache.PageCursor) {
	stable, unstable := uint64(1), uint64(2)
	tmp := make([]byte, node.ScratchSize())
	max := node.LeafMaxKeyCount()

	start := time.Now()
	var inserted int
	for round := 0; round < *rounds; round++ {
		if err := node.InitializeLeaf(cursor, stable, unstable); err != nil {
			log.Fatal("failed to initialize leaf", zap.Error(err))
		}
		for i := 0; i < max; i++ {
			// Insert at position 0 so every insert shifts the whole
			// array, the worst case for the slot-shift path.
			node.InsertKeyAt(cursor, uint64(i), 0, i, tmp)
			node.InsertValueAt(cursor, uint64(i)*10, 0, i, tmp)
			node.SetKeyCount(cursor, i+1)
		}
		for i := max; i > 0; i-- {
			node.RemoveKeyAt(cursor, 0, i, tmp)
			node.RemoveValueAt(cursor, 0, i, tmp)
			node.SetKeyCount(cursor, i-1)
		}
		inserted += max
	}
	elapsed := time.Since(start)
	log.Info("leaf fill/drain finished",
		zap.Int("rounds", *rounds),
		zap.Int("keys_per_round", max),
		zap.Duration("elapsed", elapsed),
		zap.Float64("inserts_per_sec", float64(inserted)/elapsed.Seconds()))
}

// runPointerRewrites rewrites the right sibling pointer while advancing the
// generation pair, exercising slot alternation.
func runPointerRewrites(log *zap.Logger, node *gbptree.TreeNode[uint64, uint64], cursor pagecache.PageCursor) {
	stable, unstable := uint64(1), uint64(2)

	start := time.Now()
	for i := 0; i < *pointerRewrites; i++ {
		if err := node.SetRightSibling(cursor, uint64(i%1000)+1, stable, unstable); err != nil {
			log.Fatal("sibling rewrite failed", zap.Error(err))
		}
		result, err := node.RightSibling(cursor, stable, unstable)
		if err != nil {
			log.Fatal("sibling read failed", zap.Error(err))
		}
		if result.Pointer != uint64(i%1000)+1 {
			log.Fatal("sibling read returned stale pointer",
				zap.Uint64("got", result.Pointer),
				zap.Uint64("want", uint64(i%1000)+1))
		}
		// Checkpoint every 100 rewrites.
		if i%100 == 99 {
			stable, unstable = unstable, unstable+1
		}
	}
	elapsed := time.Since(start)
	log.Info("pointer rewrites finished",
		zap.Int("rewrites", *pointerRewrites),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rewrites_per_sec", float64(*pointerRewrites)/elapsed.Seconds()))
}
