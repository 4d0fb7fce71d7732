package archive

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the archive directory and forwards the date of every
// .json day file that is created or written there to Dates, whoever
// wrote it (this process's own Archiver included). A date is dropped
// when Dates already holds 64 unread entries.
type Watcher struct {
	watcher *fsnotify.Watcher
	Dates   chan string
	logger  *slog.Logger
}

// NewWatcher starts watching dir.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{watcher: fw, Dates: make(chan string, 64), logger: logger}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".tmp") {
				continue
			}
			date := strings.TrimSuffix(name, ".json")
			select {
			case w.Dates <- date:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("archive watcher error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
