// Package http implements a small JSON debug gateway over pkg/dtm.Device:
// a route table (serveMux / addRoute) over the register unit instead of
// an object dictionary.
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/twdtm/dtm/pkg/dtm"
	"github.com/twdtm/dtm/pkg/frame"
)

// RequestHandler serves a single registered route.
type RequestHandler func(w http.ResponseWriter, r *http.Request)

// Server exposes a Device's CSR/ADDR/DATA/BUFF registers and connection
// state over a JSON REST surface, for bench debugging without a wire
// harness.
type Server struct {
	logger   *slog.Logger
	device   *dtm.Device
	serveMux *http.ServeMux
	routes   map[string]RequestHandler
}

// NewServer builds a Server over device. The routes, mirroring the CiA
// 309-5 layout, are: GET /state, GET|POST /csr, GET|POST /addr,
// GET /data, GET /buff, POST /reset.
func NewServer(device *dtm.Device, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "[HTTP]")

	s := &Server{logger: logger, device: device}
	s.serveMux = http.NewServeMux()
	s.serveMux.HandleFunc("/", s.dispatch)
	s.routes = make(map[string]RequestHandler)

	s.logger.Info("initializing debug gateway endpoints")
	s.addRoute("state", s.handleState)
	s.addRoute("csr", s.handleCSR)
	s.addRoute("addr", s.handleAddr)
	s.addRoute("data", s.handleData)
	s.addRoute("buff", s.handleBuff)
	s.addRoute("reset", s.handleReset)
	s.logger.Info("finished initializing")

	return s
}

// ListenAndServe blocks, serving the gateway on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.serveMux)
}

// ServeHTTP makes Server an http.Handler directly, e.g. for httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.serveMux.ServeHTTP(w, r)
}

func (s *Server) addRoute(route string, handler RequestHandler) {
	s.logger.Debug("registering route", "route", route)
	s.routes[route] = handler
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	route := strings.Trim(r.URL.Path, "/")
	handler, ok := s.routes[route]
	if !ok {
		writeError(w, http.StatusNotFound, ErrGwBadRoute)
		return
	}
	handler(w, r)
}

type stateResponse struct {
	State string `json:"state"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, stateResponse{State: s.device.State().String()})
}

type valueRequest struct {
	Value string `json:"value"`
}

type valueResponse struct {
	Value string `json:"value"`
}

func (s *Server) handleCSR(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, valueResponse{Value: hex32(s.device.CSR())})
	case http.MethodPost:
		v, err := readValue32(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrGwBadBody)
			return
		}
		s.device.Write(frame.CmdWriteCSR, encode32(v))
		writeJSON(w, valueResponse{Value: hex32(v)})
	default:
		writeError(w, http.StatusMethodNotAllowed, ErrGwBadMethod)
	}
}

func (s *Server) handleAddr(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, valueResponse{Value: fmt.Sprintf("0x%x", s.device.Addr())})
	case http.MethodPost:
		v, err := readValue32(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrGwBadBody)
			return
		}
		s.device.Write(frame.CmdWriteAddr, encode32(v))
		writeJSON(w, valueResponse{Value: fmt.Sprintf("0x%x", v)})
	default:
		writeError(w, http.StatusMethodNotAllowed, ErrGwBadMethod)
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrGwBadMethod)
		return
	}
	writeJSON(w, valueResponse{Value: hex32(decode32(s.device.Read(frame.CmdReadData)))})
}

func (s *Server) handleBuff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, ErrGwBadMethod)
		return
	}
	writeJSON(w, valueResponse{Value: hex32(decode32(s.device.Read(frame.CmdReadBuff)))})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, ErrGwBadMethod)
		return
	}
	s.device.Reset()
	writeJSON(w, stateResponse{State: s.device.State().String()})
}

func readValue32(r *http.Request) (uint32, error) {
	var req valueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(req.Value), 0, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err *GatewayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

func hex32(v uint32) string { return fmt.Sprintf("0x%x", v) }

func encode32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func decode32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(b); i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}
