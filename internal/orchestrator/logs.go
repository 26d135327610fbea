package orchestrator

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"chainpad/internal/container"
	"chainpad/internal/errors"
	"chainpad/internal/logger"
)

// LogEntry is one line of service output
type LogEntry struct {
	Service string    `json:"service"`
	Line    string    `json:"line"`
	At      time.Time `json:"at"`
}

const maxLogLine = 1024 * 1024

// StreamLogs follows the output of the named services (all running
// services when none are named) and multiplexes it onto one channel. The
// channel closes when every stream ends or ctx is cancelled.
func (o *Orchestrator) StreamLogs(ctx context.Context, services ...string) (<-chan LogEntry, error) {
	o.mu.Lock()
	targets := map[string]*container.Handle{}
	if len(services) == 0 {
		for name, st := range o.services {
			if st.handle != nil {
				targets[name] = st.handle
			}
		}
	} else {
		for _, name := range services {
			st, ok := o.services[name]
			if !ok {
				o.mu.Unlock()
				return nil, errors.ServiceNotFound(name)
			}
			if st.handle != nil {
				targets[name] = st.handle
			}
		}
	}
	o.mu.Unlock()

	out := make(chan LogEntry, 256)
	var wg sync.WaitGroup
	var readers []io.ReadCloser

	for name, handle := range targets {
		rc, err := handle.StreamLogs(ctx)
		if err != nil {
			container.LogRuntimeWarning(err, "stream-logs")
			continue
		}
		readers = append(readers, rc)

		wg.Add(1)
		go func(name string, rc io.ReadCloser) {
			defer wg.Done()
			defer rc.Close()

			scanner := bufio.NewScanner(rc)
			scanner.Buffer(make([]byte, 64*1024), maxLogLine)
			for scanner.Scan() {
				entry := LogEntry{Service: name, Line: scanner.Text(), At: time.Now()}
				select {
				case out <- entry:
				case <-ctx.Done():
					return
				}
			}
			if err := scanner.Err(); err != nil && ctx.Err() == nil {
				logger.WithFields(logger.Fields{"service": name}).
					WithError(err).Debug("Log stream ended")
			}
		}(name, rc)
	}

	go func() {
		<-ctx.Done()
		for _, rc := range readers {
			rc.Close()
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}
