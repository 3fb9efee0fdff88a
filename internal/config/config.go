// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package config loads the configuration of the emulator and the command line tools.
//
// Values are read from a TOML file, then overridden by FNEMU_* environment variables. An
// env file may provide variables that are not set in the process environment.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ikmak/mongo-functions-go/internal/emulator"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FNEMU_"

// Config is the emulator configuration.
type Config struct {
	Addr    string   `toml:"addr"`
	AppID   string   `toml:"app_id"`
	Service string   `toml:"service"`
	Tokens  []string `toml:"tokens"`
	Storage Storage  `toml:"storage"`
	Log     Log      `toml:"log"`
}

// Storage selects the emulator storage engine.
type Storage struct {
	Engine   string `toml:"engine"`
	Path     string `toml:"path"`
	Compress bool   `toml:"compress"`
}

// Log configures logging.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:    "127.0.0.1:8080",
		AppID:   "emulator",
		Service: emulator.DefaultServiceName,
		Storage: Storage{Engine: emulator.EngineMemory},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path and the env file at envFile, applies the environment and
// validates the result. Either path may be empty.
func Load(path, envFile string) (*Config, error) {
	return load(path, envFile, os.LookupEnv)
}

func load(path, envFile string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read config file")
		}
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return nil, errors.Wrapf(err, "cannot parse config file %s", path)
		}
	}

	lookup := lookupEnv
	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read env file %s", envFile)
		}
		lookup = func(key string) (string, bool) {
			if v, ok := lookupEnv(key); ok {
				return v, true
			}
			v, ok := fileEnv[key]
			return v, ok
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"ADDR":           &c.Addr,
		"APP_ID":         &c.AppID,
		"SERVICE":        &c.Service,
		"STORAGE_ENGINE": &c.Storage.Engine,
		"STORAGE_PATH":   &c.Storage.Path,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := lookup(EnvPrefix + "STORAGE_COMPRESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Errorf("%sSTORAGE_COMPRESS: invalid boolean %q", EnvPrefix, v)
		}
		c.Storage.Compress = b
	}
	if v, ok := lookup(EnvPrefix + "TOKENS"); ok {
		c.Tokens = nil
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				c.Tokens = append(c.Tokens, tok)
			}
		}
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr: must not be empty")
	case c.AppID == "":
		return errors.New("app_id: must not be empty")
	case c.Service == "":
		return errors.New("service: must not be empty")
	}
	switch strings.ToLower(c.Storage.Engine) {
	case emulator.EngineMemory:
	case emulator.EngineBolt:
		if c.Storage.Path == "" {
			return errors.New("storage.path: required by the bolt engine")
		}
	case emulator.EngineBadger:
	default:
		return errors.Errorf("storage.engine: unknown engine %q", c.Storage.Engine)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Errorf("log.level: %v", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// StoreConfig returns the emulator storage configuration.
func (c *Config) StoreConfig() emulator.StoreConfig {
	return emulator.StoreConfig{
		Engine:   strings.ToLower(c.Storage.Engine),
		Path:     c.Storage.Path,
		Compress: c.Storage.Compress,
	}
}

// NewLogger creates the logger described by the log section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	l := logrus.New()
	l.SetLevel(level)
	if c.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l, nil
}
