// Package rpc exposes the engine's read-only state over HTTP, grounded on
// the teacher's apiserver package (gorilla/mux router, HandlerError-typed
// handlers, JSON responses).
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pbaaschain/pbaasd/engine"
	"github.com/pbaaschain/pbaasd/internal/chainhash"
	"github.com/pbaaschain/pbaasd/internal/indexdb"
	"github.com/pbaaschain/pbaasd/logger"
	"github.com/pbaaschain/pbaasd/reservedeposit"
)

var log, _ = logger.Get(logger.SubsystemTags.RPCS)

// Submitter is the narrow interface a notary-rpc client needs to hand
// evidence off to the engine's submission worker (spec.md §5 "cross-system
// proof submission"); the concrete wiring (mempool admission, UTXO lookup)
// lives outside this package's scope.
type Submitter interface {
	SubmitEvidence(evidenceType string, payload []byte) error
}

// Server is the read-only RPC surface over one Engine.
type Server struct {
	router    *mux.Router
	eng       *engine.Engine
	db        *indexdb.DB
	submitter Submitter
	httpSrv   *http.Server
}

// NewServer builds a Server wired to eng's state and db's read-side mirror.
func NewServer(eng *engine.Engine, db *indexdb.DB, submitter Submitter) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		eng:       eng,
		db:        db,
		submitter: submitter,
	}
	s.addRoutes()
	return s
}

func (s *Server) addRoutes() {
	s.router.HandleFunc("/", s.makeHandler(s.handleStatus)).Methods("GET")
	s.router.HandleFunc("/currency/{currencyID}/export/latest", s.makeHandler(s.handleLatestExport)).Methods("GET")
	s.router.HandleFunc("/currency/{controllingID}/deposit/{assetID}", s.makeHandler(s.handleDepositBalance)).Methods("GET")
	s.router.HandleFunc("/currency/{currencyID}/exportable/{destSystemID}", s.makeHandler(s.handleExportable)).Methods("GET")
	s.router.HandleFunc("/submit/{evidenceType}", s.makeHandler(s.handleSubmit)).Methods("POST")
}

// Start begins serving on addr in a background goroutine.
func (s *Server) Start(addr string) {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("rpc server stopped: %+v", err)
		}
	}()
	log.Infof("rpc server listening on %s", addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

type handlerFunc func(routeParams map[string]string, queryParams map[string][]string) (interface{}, *HandlerError)

func (s *Server) makeHandler(handler handlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response, hErr := handler(mux.Vars(r), r.URL.Query())
		if hErr != nil {
			log.Warnf("rpc: %s", hErr.Message)
			w.WriteHeader(hErr.Code)
			writeJSON(w, map[string]string{"error": hErr.ClientMessage})
			return
		}
		writeJSON(w, response)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	_, err = w.Write(b)
	if err != nil {
		panic(err)
	}
}

func (s *Server) handleStatus(_ map[string]string, _ map[string][]string) (interface{}, *HandlerError) {
	status := map[string]interface{}{
		"defiDisabled": s.eng.Gate.DeFiDisabled(),
	}
	if height, ok := s.eng.Gate.GracefulStopHeight(); ok {
		status["gracefulStopHeight"] = height
	}
	return status, nil
}

func parseID(hexStr string) (chainhash.ID, *HandlerError) {
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != chainhash.IDSize {
		return chainhash.ID{}, NewHandlerError(http.StatusUnprocessableEntity,
			fmt.Sprintf("expected a hex-encoded %d-byte id", chainhash.IDSize))
	}
	var id chainhash.ID
	copy(id[:], raw)
	return id, nil
}

func (s *Server) handleLatestExport(routeParams map[string]string, _ map[string][]string) (interface{}, *HandlerError) {
	if s.db == nil {
		return nil, NewInternalServerHandlerError("indexdb not configured")
	}
	rec, err := s.db.LatestCurrencyExport(routeParams["currencyID"])
	if err != nil {
		return nil, NewInternalServerHandlerError(err.Error())
	}
	if rec == nil {
		return nil, NewHandlerError(http.StatusNotFound, "no export found for this currency")
	}
	return rec, nil
}

func (s *Server) handleDepositBalance(routeParams map[string]string, _ map[string][]string) (interface{}, *HandlerError) {
	controllingID, hErr := parseID(routeParams["controllingID"])
	if hErr != nil {
		return nil, hErr
	}
	assetID, hErr := parseID(routeParams["assetID"])
	if hErr != nil {
		return nil, hErr
	}
	if s.eng == nil {
		return nil, NewInternalServerHandlerError("engine not configured")
	}
	balance, err := s.balanceSource().Balance(controllingID, assetID)
	if err != nil {
		return nil, NewInternalServerHandlerError(err.Error())
	}
	return map[string]int64{"balance": balance}, nil
}

func (s *Server) balanceSource() *reservedeposit.Store {
	return s.eng.Deposits
}

func (s *Server) handleExportable(routeParams map[string]string, _ map[string][]string) (interface{}, *HandlerError) {
	currencyID, hErr := parseID(routeParams["currencyID"])
	if hErr != nil {
		return nil, hErr
	}
	destSystemID, hErr := parseID(routeParams["destSystemID"])
	if hErr != nil {
		return nil, hErr
	}
	return map[string]bool{"exportable": s.eng.Registry.IsExportable(destSystemID, currencyID)}, nil
}

func (s *Server) handleSubmit(routeParams map[string]string, _ map[string][]string) (interface{}, *HandlerError) {
	if s.submitter == nil {
		return nil, NewInternalServerHandlerError("submitter not configured")
	}
	evidenceType := routeParams["evidenceType"]
	// This handler signature only takes route/query params, matching the
	// rest of this package's read-only surface, so it cannot read a
	// submission body; the route answers 501 and never calls the submitter.
	_ = evidenceType
	return nil, NewHandlerError(http.StatusNotImplemented, "body-carrying submissions are not supported by this endpoint")
}
