/*
File Name:  Logger.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner

A fire-and-forget log sink (spec.md §6's "Log sink" collaborator
interface), wrapping the stdlib log.Logger the way the teacher's
Config.go/InitLog does, plus fan-out to any subscriber of the node's
Stdout multiWriter (e.g. the status API's WebSocket feed).
*/

package node

import (
	"io"
	"log"
	"os"
)

// Logger is the single write(line) sink described in spec.md §6.
type Logger struct {
	backend *log.Logger
	file    *os.File
}

// newLogger opens filename in append mode (creating it if necessary) and
// returns a Logger that writes to both the file and extra, if either is
// set. An empty filename disables file logging; output still goes to
// extra (and, if extra is also nil, is discarded).
func newLogger(filename string, extra io.Writer) (logger *Logger, err error) {
	var writers []io.Writer

	var file *os.File
	if filename != "" {
		if file, err = os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	if extra != nil {
		writers = append(writers, extra)
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = io.MultiWriter(writers...)
	}

	return &Logger{backend: log.New(out, "", log.Ldate|log.Ltime), file: file}, nil
}

// Write emits a single log line. It never returns an error to the caller;
// logging must not be able to perturb the reactive core.
func (l *Logger) Write(line string) {
	if l == nil || l.backend == nil {
		return
	}
	l.backend.Println(line)
}

// Close closes the underlying log file, if one is open.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
