// Command pbaasd runs the PBaaS bridge submission engine: the cooperative
// worker that aggregates reserve transfers into currency exports, drives
// cross-system imports, and serves a read-only RPC surface over the
// resulting state.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pbaaschain/pbaasd/engine"
	"github.com/pbaaschain/pbaasd/internal/indexdb"
	"github.com/pbaaschain/pbaasd/logger"
	"github.com/pbaaschain/pbaasd/rpc"
)

var log, _ = logger.Get(logger.SubsystemTags.ENGN)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pbaasd: %+v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := Parse()
	if err != nil {
		return err
	}

	logger.InitLogRotators(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		filepath.Join(cfg.LogDir, defaultErrLogFilename),
	)
	logger.SetLogLevels(cfg.DebugLevel)

	eng, err := engine.New(engine.Config{
		DataDir:       cfg.DataDir,
		NetworkName:   cfg.NetworkName,
		DaemonVersion: cfg.DaemonVersion,
	})
	if err != nil {
		return err
	}

	var db *indexdb.DB
	if cfg.DSN != "" {
		db, err = indexdb.Connect(indexdb.Config{DSN: cfg.DSN, MigrationsPath: cfg.MigrationsPath})
		if err != nil {
			return err
		}
		defer db.Close()
	}

	eng.Start()
	defer func() {
		eng.Stop()
		if err := eng.Close(); err != nil {
			log.Errorf("closing engine: %+v", err)
		}
	}()

	server := rpc.NewServer(eng, db, nil)
	server.Start(cfg.Listen)

	log.Infof("pbaasd started: network=%s rpclisten=%s", cfg.NetworkName, cfg.Listen)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Infof("pbaasd shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("shutting down rpc server: %+v", err)
	}
	return nil
}
