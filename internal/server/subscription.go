package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang/glog"
	"github.com/wI2L/jsondiff"

	"gihan9a/morphcast/internal/dom"
	"gihan9a/morphcast/internal/utils"
)

// docState is the document as of one applied batch.
type docState struct {
	seq      uint64
	snapshot []byte // JSON tree, the unit of subscription patches
	html     []byte
	version  string
}

// Subscription is a client mirroring the document tree.
type Subscription struct {
	ID      string
	W       http.ResponseWriter
	F       http.Flusher
	updates chan docState
	last    docState
}

// captureState renders doc. It runs on the sequencer goroutine.
func (s *MorphServer) captureState(doc *dom.Document) docState {
	snapshot, err := json.Marshal(doc.Root)
	if err != nil {
		glog.Errorf("[sub]snapshot: %v\n", err)
	}
	html := []byte(doc.String())
	return docState{
		seq:      s.docSeq,
		snapshot: snapshot,
		html:     html,
		version:  utils.Version(html),
	}
}

// documentChanged is the sequencer's after-batch hook.
func (s *MorphServer) documentChanged(doc *dom.Document) {
	s.docSeq++

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.subscriptions) == 0 {
		return
	}
	st := s.captureState(doc)
	for _, sub := range s.subscriptions {
		sub.offer(st)
	}
}

// offer replaces any undelivered state with st.
func (sub *Subscription) offer(st docState) {
	for {
		select {
		case sub.updates <- st:
			return
		default:
		}
		select {
		case <-sub.updates:
		default:
		}
	}
}

// AddSubscription registers sub. Call it from the sequencer goroutine so no
// batch falls between the initial state and the first update.
func (s *MorphServer) AddSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[sub.ID] = sub
	glog.Infof("[sub]added %s\n", sub.ID)
}

// RemoveSubscription removes a subscription
func (s *MorphServer) RemoveSubscription(subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscriptions[subID]; ok {
		delete(s.subscriptions, subID)
		glog.Infof("[sub]removed %s\n", subID)
	}
}

func (s *MorphServer) subscriptionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscriptions)
}

// update writes st as a patch against the last state sent, falling back to a
// full snapshot when no patch can be computed.
func (sub *Subscription) update(st docState) {
	if st.seq <= sub.last.seq || st.version == sub.last.version {
		return
	}
	if err := sub.sendPatchUpdate(st); err != nil {
		glog.Infof("[sub]%s patch failed: %v, sending full update\n", sub.ID, err)
		if err := sub.sendFullUpdate(st); err != nil {
			glog.Infof("[sub]%s: %v\n", sub.ID, err)
			return
		}
	}
	sub.last = st
}

// sendFullUpdate sends a full snapshot to a subscriber
func (sub *Subscription) sendFullUpdate(st docState) error {
	fmt.Fprintf(sub.W, "Version: %s\r\n", st.version)
	fmt.Fprintf(sub.W, "Parents: \r\n")
	fmt.Fprintf(sub.W, "Content-Length: %d\r\n", len(st.snapshot))
	fmt.Fprintf(sub.W, "\r\n")
	if _, err := sub.W.Write(st.snapshot); err != nil {
		return err
	}
	fmt.Fprintf(sub.W, "\r\n\r\n\r\n\r\n\r\n")
	sub.F.Flush()
	return nil
}

// sendPatchUpdate sends the JSON-patch from the last state to st
func (sub *Subscription) sendPatchUpdate(st docState) error {
	patch, err := jsondiff.CompareJSON(sub.last.snapshot, st.snapshot)
	if err != nil {
		return err
	}
	if len(patch) == 0 {
		return nil
	}

	fmt.Fprintf(sub.W, "Version: %s\r\n", st.version)
	fmt.Fprintf(sub.W, "Parents: %s\r\n", sub.last.version)
	if len(patch) > 1 {
		fmt.Fprintf(sub.W, "Patches: %d\r\n\r\n", len(patch))
	}
	for i, op := range patch {
		if i > 0 {
			fmt.Fprintf(sub.W, "\r\n\r\n")
		}
		value, err := json.Marshal(op.Value)
		if err != nil {
			return err
		}
		fmt.Fprintf(sub.W, "Content-Length: %d\r\n", len(value))
		fmt.Fprintf(sub.W, "Content-Range: json %s %s\r\n", op.Type, op.Path)
		fmt.Fprintf(sub.W, "\r\n")
		sub.W.Write(value)
	}
	fmt.Fprintf(sub.W, "\r\n\r\n\r\n\r\n\r\n")
	sub.F.Flush()
	return nil
}
