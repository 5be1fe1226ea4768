package main

import (
	"io"
	"log/slog"
	"os"
)

var (
	osExit = os.Exit
	exit   = osExit
)

// resources tracks opened connections so every exit path closes them,
// including os.Exit, which skips deferred calls.
type resources struct {
	log     *slog.Logger
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func (r *resources) add(name string, c io.Closer) {
	r.closers = append(r.closers, namedCloser{name: name, c: c})
}

// close releases resources in reverse order of acquisition.
func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		nc := r.closers[i]
		if err := nc.c.Close(); err != nil {
			r.log.Error("close failed", "resource", nc.name, "err", err)
		}
	}
	r.closers = nil
}

func (r *resources) fatal(msg string, err error) {
	r.log.Error(msg, "err", err)
	r.close()
	exit(1)
}
