package storage

import (
	"os"

	"github.com/anne-gert/TimeKeeper/internal/debuglog"
)

// backupWorker mirrors log contents to a secondary path off the critical
// path of a write cycle. Requests coalesce: while one write is in flight,
// newer contents replace any still-queued contents, so a slow destination
// (a network share, say) costs at most one trailing write.
type backupWorker struct {
	path     string
	requests chan []byte
	done     chan struct{}
}

func newBackupWorker(path string) *backupWorker {
	w := &backupWorker{
		path:     path,
		requests: make(chan []byte, 1),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *backupWorker) loop() {
	defer close(w.done)
	for data := range w.requests {
		if err := os.WriteFile(w.path, data, 0o644); err != nil {
			debuglog.Printf("backup write %s: %v", w.path, err)
		}
	}
}

// request queues the full log contents for mirroring. Each request carries
// the complete file, so dropping a superseded request loses nothing. The
// store serializes callers, which keeps the drain-then-send dance safe.
func (w *backupWorker) request(data []byte) {
	select {
	case w.requests <- data:
		return
	default:
	}
	select {
	case <-w.requests:
	default:
	}
	w.requests <- data
}

// close flushes any queued request and waits for the worker to finish.
func (w *backupWorker) close() {
	close(w.requests)
	<-w.done
}
