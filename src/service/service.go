package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/mosaicnetworks/meshchat/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes a read-only view of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	service.registerHandlers()

	service.server = &http.Server{
		Addr:    bindAddress,
		Handler: service.mux,
	}

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering meshchat API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/members", s.makeHandler(s.GetMembers))
	s.mux.HandleFunc("/messages", s.makeHandler(s.GetMessages))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the API handlers, for use with an existing server.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call. It returns nil after
// Close.
func (s *Service) Serve() error {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving meshchat API")

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
		return err
	}
	return nil
}

// Close stops the server started by Serve.
func (s *Service) Close() error {
	return s.server.Close()
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.GetStats())
}

// GetMembers returns the roster.
func (s *Service) GetMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Store().Members())
}

// GetMessages returns the message log, oldest first.
func (s *Service) GetMessages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.node.Store().Messages())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)

	encoder.Encode(v)
}
