// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package httpapi is the HTTP front-end: request decoding, multipart
// parsing and status-code mapping for the command/response contract. It
// never touches storage directly — every request crosses the bounded
// command queue.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solidcoredata/colbase/internal/command"
	"github.com/solidcoredata/colbase/internal/container"
	"github.com/solidcoredata/colbase/internal/filterrt"
	"github.com/solidcoredata/colbase/internal/layout"
)

const maxMapFnUploadBytes = 5_000_000

// Server wires the command loop's queue to an HTTP surface.
type Server struct {
	queue chan<- interface{}
	log   *zap.Logger
}

// NewRouter builds the mux.Router for the full HTTP surface: GET /,
// POST /index, POST /add_map/{name}, GET /query/{name}, GET /metrics.
func NewRouter(queue chan<- interface{}, log *zap.Logger, reg *prometheus.Registry) *mux.Router {
	s := &Server{queue: queue, log: log}

	r := mux.NewRouter()
	r.Use(correlationMiddleware(log))
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("root"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/index", s.handleIndex).Methods(http.MethodPost)
	r.HandleFunc("/add_map/{name}", s.handleAddMapFn).Methods(http.MethodPost)
	r.HandleFunc("/query/{name}", s.handleQuery).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func correlationMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := uuid.NewString()
			log.Debug("request", zap.String("correlation_id", id), zap.String("method", r.Method), zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}

type indexRequest struct {
	Fields []string      `json:"fields"`
	Values []interface{} `json:"values"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req indexRequest
	if err := dec.Decode(&req); err != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	reply := make(chan error, 1)
	s.queue <- command.Index{
		Params: container.IndexParams{Fields: req.Fields, Values: req.Values},
		Reply:  reply,
	}

	if err := <-reply; err != nil {
		switch err.(type) {
		case *container.InvalidFieldsError, *container.InvalidDataTypeError, *container.FieldCountMismatchError:
			writeJSONStatus(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.log.Error("index failed", zap.Error(err))
			writeJSONStatus(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	writeJSONStatus(w, http.StatusOK, "ok")
}

func (s *Server) handleAddMapFn(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := r.ParseMultipartForm(maxMapFnUploadBytes); err != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("data")
	if err != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, "missing \"data\" part")
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "application/octet-stream" {
		s.log.Warn("add_map_fn: invalid content type", zap.String("content_type", ct))
		writeJSONStatus(w, http.StatusUnprocessableEntity, "data part must be application/octet-stream")
		return
	}

	source, err := io.ReadAll(file)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	reply := make(chan error, 1)
	s.queue <- command.AddMapFn{Name: name, Source: string(source), Reply: reply}

	err = <-reply
	switch err.(type) {
	case nil:
		writeJSONStatus(w, http.StatusCreated, "Created")
	case filterrt.InvalidCodeError:
		writeJSONStatus(w, http.StatusUnprocessableEntity, "Invalid Code")
	case *filterrt.CompilerError:
		writeJSONStatus(w, http.StatusUnprocessableEntity, "Failed to compile code:\n"+err.Error())
	default:
		s.log.Error("add_map_fn failed", zap.String("name", name), zap.Error(err))
		writeJSONStatus(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	reply := make(chan command.InvokeMapResult, 1)
	s.queue <- command.InvokeMap{Name: name, Reply: reply}

	result := <-reply
	if result.Err != nil {
		s.log.Error("invoke_map failed", zap.String("name", name), zap.Error(result.Err))
		writeJSONStatus(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	out := make([]map[string]interface{}, len(result.Rows))
	for i, row := range result.Rows {
		out[i] = rowToView(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func rowToView(row layout.Row) map[string]interface{} {
	view := make(map[string]interface{}, len(row))
	for name, c := range row {
		view[name] = c.Value()
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message)
}
