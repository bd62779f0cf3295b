package nodetype

import (
	"time"

	"github.com/kevinsdooapp/modeshape/internal/log"
	pathpkg "github.com/kevinsdooapp/modeshape/internal/path"
	"github.com/kevinsdooapp/modeshape/internal/watcher"
)

// Watcher reloads the registry when a node type definition file changes on
// disk. File events are debounced by the underlying watcher because editors
// fire several writes per save.
type Watcher struct {
	fw       *watcher.Watcher
	registry *Registry
	resolver pathpkg.Resolver
	filename string
	done     chan struct{}
}

// WatchFile starts watching a node type definition file, installing a new
// snapshot on every successful reload. A reload that fails to parse keeps
// the previous snapshot in place.
func WatchFile(registry *Registry, filename string, resolver pathpkg.Resolver, debounce time.Duration) (*Watcher, error) {
	fw, err := watcher.New(watcher.Config{Path: filename, DebounceDur: debounce})
	if err != nil {
		return nil, err
	}
	onChange, err := fw.Start()
	if err != nil {
		_ = fw.Stop()
		return nil, err
	}
	w := &Watcher{
		fw:       fw,
		registry: registry,
		resolver: resolver,
		filename: filename,
		done:     make(chan struct{}),
	}
	go w.loop(onChange)
	return w, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fw.Stop()
}

func (w *Watcher) loop(onChange <-chan struct{}) {
	for {
		select {
		case <-w.done:
			return
		case _, ok := <-onChange:
			if !ok {
				return
			}
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	types, err := LoadTypesFile(w.filename, w.resolver)
	if err != nil {
		log.ErrorErr(log.CatTypes, "reloading node types failed, keeping current snapshot", err, "file", w.filename)
		return
	}
	if _, err := w.registry.Replace(types); err != nil {
		log.ErrorErr(log.CatTypes, "installing reloaded node types failed", err, "file", w.filename)
	}
}
