// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package httpapi serves the function emulator over the client HTTP API.
package httpapi

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ikmak/mongo-functions-go/x/functions"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const maxRequestSize = 16 << 20

// Caller executes decoded function calls.
type Caller interface {
	Call(ctx context.Context, req *functions.RawRequest) (interface{}, error)
}

// Options configures a Handler.
type Options struct {
	// AppID is the only app the handler answers for.
	AppID string
	// Tokens are the accepted bearer tokens. An empty list accepts every request.
	Tokens []string
	Logger logrus.FieldLogger
}

// Handler is the http.Handler of the emulator.
type Handler struct {
	caller Caller
	appID  string
	tokens [][]byte
	logger logrus.FieldLogger
	mux    *http.ServeMux
}

// New creates a Handler calling into caller.
func New(caller Caller, opts Options) *Handler {
	h := &Handler{
		caller: caller,
		appID:  opts.AppID,
		logger: opts.Logger,
		mux:    http.NewServeMux(),
	}
	for _, tok := range opts.Tokens {
		if tok != "" {
			h.tokens = append(h.tokens, []byte(tok))
		}
	}
	if h.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		h.logger = l
	}
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.HandleFunc("POST /api/client/v2.0/app/{app}/functions/call", h.call)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}

func (h *Handler) authorized(r *http.Request) bool {
	if len(h.tokens) == 0 {
		return true
	}
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	for _, want := range h.tokens {
		if subtle.ConstantTimeCompare([]byte(tok), want) == 1 {
			return true
		}
	}
	return false
}

func (h *Handler) call(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := r.Header.Get(functions.RequestIDHeader)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set(functions.RequestIDHeader, reqID)
	log := h.logger.WithField("request_id", reqID)

	if app := r.PathValue("app"); h.appID != "" && app != h.appID {
		h.fail(w, log, functions.NewServiceError(functions.CodeAppNotFound, "cannot find app using Client App ID '"+app+"'"))
		return
	}
	if !h.authorized(r) {
		h.fail(w, log, functions.NewServiceError(functions.CodeInvalidSession, "invalid session"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		h.fail(w, log, functions.NewServiceError(functions.CodeArgumentsNotAllowed, "cannot read request body: "+err.Error()))
		return
	}
	req, err := functions.DecodeRequest(body)
	if err != nil {
		h.fail(w, log, functions.NewServiceError(functions.CodeArgumentsNotAllowed, err.Error()))
		return
	}
	log = log.WithFields(logrus.Fields{"service": req.Service, "function": req.Name})

	res, err := h.caller.Call(r.Context(), req)
	if err != nil {
		var se *functions.ServiceError
		if !errors.As(err, &se) {
			se = functions.NewServiceError(functions.CodeInternalServerError, err.Error())
		}
		log = log.WithField("duration", time.Since(start))
		h.fail(w, log, se)
		return
	}
	reply, err := functions.EncodeResponse(res)
	if err != nil {
		log.WithError(err).Error("cannot encode function result")
		h.fail(w, log, functions.NewServiceError(functions.CodeInternalServerError, err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(reply)
	log.WithField("duration", time.Since(start)).Info("function call")
}

func statusOf(code string) int {
	switch code {
	case functions.CodeInvalidSession:
		return http.StatusUnauthorized
	case functions.CodeAppNotFound:
		return http.StatusNotFound
	case functions.CodeInternalServerError:
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func (h *Handler) fail(w http.ResponseWriter, log logrus.FieldLogger, se *functions.ServiceError) {
	status := statusOf(se.Code)
	body, err := functions.EncodeServiceError(se)
	if err != nil {
		log.WithError(err).Error("cannot encode service error")
		http.Error(w, se.Error(), status)
		return
	}
	entry := log.WithFields(logrus.Fields{"status": status, "error_code": se.Code})
	if status >= http.StatusInternalServerError {
		entry.Error(se.Message)
	} else {
		entry.Info(se.Message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
