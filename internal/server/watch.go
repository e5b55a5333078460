package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"

	"gihan9a/morphcast/internal/broadcast"
	"gihan9a/morphcast/internal/utils"
	"gihan9a/morphcast/pkg/morphproto"
)

// SetupWatchers recursively adds the batch directory to the watcher
func (s *MorphServer) SetupWatchers() error {
	if s.watcher == nil {
		return nil
	}
	dir := s.config.Server.BatchDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return s.watcher.Add(path)
		}
		return nil
	})
}

func isBatchFile(path string) bool {
	for _, suffix := range []string{".batch.json", ".batch.yaml", ".batch.yml"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// watchBatches submits batch files as they are written. A file whose content
// has not changed since it was last submitted is skipped, which folds the
// create and write events of a single save.
func (s *MorphServer) watchBatches(ctx context.Context) {
	submitted := make(map[string]string)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !isBatchFile(event.Name) || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}

			data, err := os.ReadFile(event.Name)
			if err != nil {
				glog.Infof("[watch]read %s: %v\n", event.Name, err)
				continue
			}
			if len(data) == 0 {
				continue
			}
			version := utils.Version(data)
			if submitted[event.Name] == version {
				continue
			}

			var wire morphproto.Batch
			if strings.HasSuffix(event.Name, ".json") {
				wire, err = morphproto.DecodeBatch(data)
			} else {
				wire, err = morphproto.DecodeBatchYAML(data)
			}
			if err != nil {
				// a partial write; the next write event retries
				glog.Infof("[watch]%s: %v\n", event.Name, err)
				continue
			}
			submitted[event.Name] = version

			glog.Infof("[watch]submitting %s, %d operations\n", event.Name, len(wire.Operations))
			if err := s.seq.Submit(ctx, broadcast.FromWire(wire)); err != nil {
				return
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			glog.Infof("[watch]watcher error: %v\n", err)
		}
	}
}
