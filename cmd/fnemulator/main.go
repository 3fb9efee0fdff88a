// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Command fnemulator serves an in-process mongo function service over the client HTTP API.
//
// Settings come from an optional TOML file, an optional .env file and FNEMU_ variables, in
// increasing order of precedence. Flags given on the command line override all of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikmak/mongo-functions-go/internal/config"
	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/ikmak/mongo-functions-go/internal/emulator/httpapi"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "path of a TOML configuration file")
	envFile    = flag.String("env-file", "", "path of a .env file with FNEMU_ variables")
	addr       = flag.String("addr", "", "listen address, overrides the configuration")
	storage    = flag.String("storage", "", "storage engine (memory, bolt or badger), overrides the configuration")
	dataPath   = flag.String("data", "", "storage path, overrides the configuration")
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *storage != "" {
		cfg.Storage.Engine = *storage
	}
	if *dataPath != "" {
		cfg.Storage.Path = *dataPath
	}
	if err = cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("emulator stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "cannot listen on %s", cfg.Addr)
	}
	return serve(ctx, ln, cfg, logger)
}

// serve runs the emulator on ln until ctx is done, then shuts the server down gracefully.
func serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *logrus.Logger) error {
	em, err := emulator.New(
		emulator.WithStoreConfig(cfg.StoreConfig()),
		emulator.WithServiceName(cfg.Service),
		emulator.WithLogger(logger),
	)
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer func() {
		if err := em.Close(); err != nil {
			logger.WithError(err).Warn("cannot close store")
		}
	}()

	srv := &http.Server{
		Handler: httpapi.New(em, httpapi.Options{
			AppID:  cfg.AppID,
			Tokens: cfg.Tokens,
			Logger: logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":    ln.Addr().String(),
			"app_id":  cfg.AppID,
			"service": cfg.Service,
			"storage": cfg.Storage.Engine,
		}).Info("emulator listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
