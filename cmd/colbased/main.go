// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command colbased runs the column-oriented store's command loop and HTTP
// front-end.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/solidcoredata/colbase/internal/commandloop"
	"github.com/solidcoredata/colbase/internal/config"
	"github.com/solidcoredata/colbase/internal/container"
	"github.com/solidcoredata/colbase/internal/filterrt"
	"github.com/solidcoredata/colbase/internal/httpapi"
	"github.com/solidcoredata/colbase/internal/metrics"
	"github.com/solidcoredata/colbase/internal/start"
)

const listenAddr = ":3030"
const compiledMapFnDir = "queries"

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "colbased: failed to init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("colbased: fatal error", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(env.ConfigRootPath, 0o755); err != nil {
		return fmt.Errorf("ensure config root: %w", err)
	}
	schema, err := config.Load(env.ConfigRootPath)
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	dbDir, err := config.EnsureDataDir(env.StoragePath)
	if err != nil {
		return err
	}

	c, err := container.Open(dbDir, schema)
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}

	queryDir := filepath.Join(env.StoragePath, compiledMapFnDir)
	filter, err := filterrt.New(env.CompilerPath, queryDir)
	if err != nil {
		return fmt.Errorf("init filter runtime: %w", err)
	}

	loop := commandloop.New(c, filter, log)
	reg := metrics.Registry()
	router := httpapi.NewRouter(loop.Queue(), log, reg)

	httpServer := &http.Server{Addr: listenAddr, Handler: router}

	return start.Start(context.Background(), 5*time.Second, func(ctx context.Context) error {
		return start.RunAll(ctx,
			loop.Run,
			func(ctx context.Context) error {
				errCh := make(chan error, 1)
				go func() { errCh <- httpServer.ListenAndServe() }()
				select {
				case <-ctx.Done():
					return httpServer.Close()
				case err := <-errCh:
					return err
				}
			},
		)
	})
}
