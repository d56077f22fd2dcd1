package cmd

import (
	"encoding/json"
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
)

// startupParams are the options shared by every command, plus the loggers
// built from them
type startupParams struct {
	verbose     bool
	traceFile   string
	monitorAddr string

	out   *log.Logger
	trace *log.Logger

	traceCloser io.Closer
}

// newStartupParams reads the shared options. Output goes to w; the trace
// file (if any) is created fresh.
func newStartupParams(w io.Writer) (*startupParams, error) {
	sp := &startupParams{
		verbose:     settings.GetBool("verbose"),
		traceFile:   settings.GetString("trace"),
		monitorAddr: settings.GetString("monitor"),
		out:         log.New(w, "", 0),
	}

	if sp.traceFile != "" {
		f, err := os.Create(sp.traceFile)
		if err != nil {
			return nil, errors.Wrapf(err, "Could not create trace file %s", sp.traceFile)
		}
		sp.trace = log.New(f, "", 0)
		sp.traceCloser = f
	}

	return sp, nil
}

// Close flushes and closes the trace file
func (sp *startupParams) Close() error {
	if sp.traceCloser == nil {
		return nil
	}
	err := sp.traceCloser.Close()
	sp.traceCloser = nil
	sp.trace = nil
	return err
}

// traceJSON writes one JSON line to the trace file, if there is one
func (sp *startupParams) traceJSON(rec interface{}) {
	if sp.trace == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		sp.out.Printf("Could not encode trace record: %v\n", err)
		return
	}
	sp.trace.Println(string(data))
}
