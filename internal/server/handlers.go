package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"gihan9a/morphcast/internal/broadcast"
	"gihan9a/morphcast/internal/dom"
	"gihan9a/morphcast/internal/utils"
	"gihan9a/morphcast/pkg/morphproto"
)

const maxBatchBytes = 4 << 20

// handleDocument serves the rendered document, or with "Subscribe: true" a
// stream of tree snapshots and patches.
func (s *MorphServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.preflight(w, r) {
		return
	}

	if r.Header.Get("Subscribe") == "true" {
		s.handleSubscribe(w, r)
		return
	}

	var html []byte
	err := s.seq.View(r.Context(), func(doc *dom.Document) {
		html = []byte(doc.String())
	})
	if err != nil {
		http.Error(w, "Document unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Version", utils.Version(html))
	w.Header().Set("Parents", "")
	w.Write(html)
}

func (s *MorphServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := &Subscription{
		ID:      utils.NewID(),
		W:       w,
		F:       flusher,
		updates: make(chan docState, 1),
	}
	// the view can run after View has returned for a cancelled request
	err := s.seq.View(r.Context(), func(doc *dom.Document) {
		if r.Context().Err() != nil {
			return
		}
		sub.last = s.captureState(doc)
		s.AddSubscription(sub)
	})
	if err == nil {
		err = r.Context().Err()
	}
	if err != nil {
		s.RemoveSubscription(sub.ID)
		http.Error(w, "Document unavailable", http.StatusServiceUnavailable)
		return
	}
	defer s.RemoveSubscription(sub.ID)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Range-Request-Allow-Units", "json")
	w.Header().Set("Subscribe", "true")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(209)

	if err := sub.sendFullUpdate(sub.last); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case st := <-sub.updates:
			sub.update(st)
		}
	}
}

// handleBatch applies one batch and answers with its events.
func (s *MorphServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.preflight(w, r) {
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading batch: %v", err), http.StatusBadRequest)
		return
	}
	var wire morphproto.Batch
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		wire, err = morphproto.DecodeBatchYAML(data)
	} else {
		wire, err = morphproto.DecodeBatch(data)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	events, err := s.seq.Apply(r.Context(), broadcast.FromWire(wire))
	if err != nil {
		http.Error(w, "Batch not applied", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		glog.Infof("[http]write events: %v\n", err)
	}
}

func (s *MorphServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "ok")
}

// handleNotFound forwards unknown routes upstream when a proxy is configured.
func (s *MorphServer) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if s.reverseProxy != nil {
		glog.V(1).Infof("[proxy]%s %s\n", r.Method, r.URL.Path)
		s.reverseProxy.ServeHTTP(w, r)
		return
	}
	http.Error(w, "Resource not found", http.StatusNotFound)
}

// preflight adds CORS headers when enabled and answers OPTIONS requests.
func (s *MorphServer) preflight(w http.ResponseWriter, r *http.Request) bool {
	if s.config.CORS.Enabled {
		s.addCORSHeaders(w)
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// addCORSHeaders adds CORS headers to the response
func (s *MorphServer) addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", s.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", s.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", s.config.CORS.AllowHeaders)
	w.Header().Set("Access-Control-Expose-Headers", "Version, Parents")
	if s.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", s.config.CORS.MaxAge))
}
