package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"gihan9a/morphcast/internal/broadcast"
	"gihan9a/morphcast/internal/config"
	"gihan9a/morphcast/internal/dom"
	"gihan9a/morphcast/internal/morph"
)

const blankDocument = "<html><head></head><body></body></html>"

// MorphServer hosts one live document. Batches arrive over websocket, HTTP or
// the batch directory and are applied by a single sequencer; events fan out
// to websocket clients and document changes to subscribers.
type MorphServer struct {
	config       *config.Config
	seq          *broadcast.Sequencer
	hub          *hub
	upgrader     websocket.Upgrader
	reverseProxy *httputil.ReverseProxy
	watcher      *fsnotify.Watcher

	mu            sync.RWMutex
	subscriptions map[string]*Subscription

	// touched only from sequencer callbacks
	docSeq uint64
}

// NewMorphServer loads the document and wires the sequencer to the transports.
func NewMorphServer(cfg *config.Config) (*MorphServer, error) {
	doc, err := loadDocument(cfg.Server.Document)
	if err != nil {
		return nil, err
	}

	controller := morph.NewController(morph.Options{
		PermanentAttribute: cfg.Morph.PermanentAttribute,
		RootAttribute:      cfg.Morph.RootAttribute,
	})
	server := &MorphServer{
		config: cfg,
		seq: broadcast.New(doc, controller, broadcast.Options{
			QueueSize:           cfg.Morph.QueueSize,
			MaxOpenTransactions: cfg.Morph.MaxOpenTransactions,
		}),
		hub: newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBuffer,
			WriteBufferSize: cfg.WebSocket.WriteBuffer,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		subscriptions: make(map[string]*Subscription),
	}
	server.seq.Observe(server.hub.publish)
	server.seq.OnBatch(server.documentChanged)

	if cfg.Server.BatchDir != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create file watcher: %w", err)
		}
		server.watcher = watcher
	}

	if cfg.ProxyURL != nil {
		server.setupProxy()
	}

	return server, nil
}

func loadDocument(path string) (*dom.Document, error) {
	markup := blankDocument
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading document: %w", err)
		}
		markup = string(data)
		glog.Infof("[server]loaded document %s\n", path)
	}
	doc, err := dom.ParseDocument(markup)
	if err != nil {
		return nil, fmt.Errorf("invalid document %s: %w", path, err)
	}
	return doc, nil
}

// Run drives the hub, the batch watcher and the sequencer until ctx is done.
func (s *MorphServer) Run(ctx context.Context) error {
	go s.hub.run(ctx)
	if s.watcher != nil {
		go s.watchBatches(ctx)
	}
	return s.seq.Run(ctx)
}

// Sequencer exposes the batch sequencer for in-process callers.
func (s *MorphServer) Sequencer() *broadcast.Sequencer {
	return s.seq
}

// Close cleans up resources used by the server
func (s *MorphServer) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

// SetupRoutes configures the HTTP routes for the server
func (s *MorphServer) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	router.HandleFunc("/document", s.handleDocument).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/batch", s.handleBatch).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	return router
}
