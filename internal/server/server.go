// Package server assembles the exporter's HTTP surface.
package server

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/urfave/negroni"
)

// NewHandler wires the metrics endpoint behind the middleware chain. The
// exporter serves exactly one route; any other path is a 404.
func NewHandler(metricsHandler http.Handler, logger *log.Logger) http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)

	corsMiddleware := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	})

	recovery := negroni.NewRecovery()
	recovery.PrintStack = false
	requestLog := negroni.NewLogger()
	if logger != nil {
		recovery.Logger = logger
		requestLog.ALogger = logger
	}

	n := negroni.New(recovery, requestLog)
	n.UseHandler(corsMiddleware.Handler(router))
	return n
}
