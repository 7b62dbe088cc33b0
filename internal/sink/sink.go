// Package sink serializes all writes against the backup directory.
//
// The directory is a single shared resource: exactly one worker goroutine
// applies operations in strict submission order, finishing each fully
// before starting the next. An individual failure is logged and does not
// stop the worker; later backups are worth more than strict propagation.
package sink

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/shelfmark/shelfmark/internal/logger"
	"github.com/shelfmark/shelfmark/internal/utils"
)

// Operation is one unit of work against the backup directory.
type Operation interface{ isOperation() }

// WriteText writes (or appends to) a UTF-8 text file.
type WriteText struct {
	Name    string
	Content string
	Append  bool
}

// WriteBlob writes a binary file, replacing any existing content.
type WriteBlob struct {
	Name string
	Data []byte
}

// Remove deletes a file. A missing file is not an error.
type Remove struct {
	Name string
}

// Verify writes and immediately deletes a probe file, reporting whether the
// directory is still writable on Reply.
type Verify struct {
	Reply chan bool
}

func (WriteText) isOperation() {}
func (WriteBlob) isOperation() {}
func (Remove) isOperation()    {}
func (Verify) isOperation()    {}

const probeFileName = "TEST"

// Sink is the serialized writer for one backup directory.
type Sink struct {
	dir    string
	logger logger.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Operation
	closed bool
	done   chan struct{}
}

// New starts a sink draining into dir.
func New(dir string, log logger.Logger) *Sink {
	s := &Sink{
		dir:    dir,
		logger: log,
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Enqueue submits an operation. Returns false if the sink was shut down.
func (s *Sink) Enqueue(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, op)
	s.cond.Signal()
	return true
}

// VerifyAccess probes the directory for write permission and blocks until
// every previously submitted operation has been applied and the probe ran.
func (s *Sink) VerifyAccess() bool {
	reply := make(chan bool, 1)
	if !s.Enqueue(Verify{Reply: reply}) {
		return false
	}
	return <-reply
}

// Shutdown closes the intake and waits for the worker to drain the queue.
// All previously submitted operations are applied before it returns.
func (s *Sink) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		op := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.apply(op)
	}
}

func (s *Sink) apply(op Operation) {
	switch o := op.(type) {
	case WriteText:
		if err := s.writeFile(o.Name, []byte(o.Content), o.Append); err != nil {
			s.logger.Error("failed to write file",
				logger.String("file", o.Name), logger.Error(err))
		}
	case WriteBlob:
		if err := s.writeFile(o.Name, o.Data, false); err != nil {
			s.logger.Error("failed to write image",
				logger.String("file", o.Name), logger.Error(err))
		}
	case Remove:
		err := os.Remove(filepath.Join(s.dir, o.Name))
		if err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove file",
				logger.String("file", o.Name), logger.Error(err))
		}
	case Verify:
		err := s.writeFile(probeFileName, []byte(probeFileName), false)
		if err == nil {
			err = os.Remove(filepath.Join(s.dir, probeFileName))
		}
		if err != nil {
			s.logger.Error("backup directory probe failed", logger.Error(err))
		}
		o.Reply <- err == nil
	}
}

// writeFile performs one full open → write → close cycle.
func (s *Sink) writeFile(name string, data []byte, appendTo bool) error {
	flags := os.O_CREATE | os.O_WRONLY
	if appendTo {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(filepath.Join(s.dir, name), flags, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		utils.Close(f)
		return err
	}
	return f.Close()
}
