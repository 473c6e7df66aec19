// Package pktlog saves received/transmitted packets to a CSV log file,
// ported from the teacher's log_init/log_write/log_term (log.go).
//
// Where the teacher kept the open file and current name in package-level
// globals (g_log_fp, g_open_fname) guarded implicitly by being called
// only from the single protocol thread, this version owns that state on
// a *Logger instance behind a mutex, since tncore's channel supervisor
// may log from more than one goroutine. Daily file-name generation uses
// github.com/lestrrat-go/strftime instead of time.Format's reference
// layout, matching strftime-style date patterns the way the rest of
// this corpus's config-driven naming does.
package pktlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/dwlog"
)

const header = "chan,utime,isotime,source,destination,heard,kind,ns,nr,pf,retries,infolen\n"

// dailyPattern is the strftime pattern used for daily log file names,
// mirroring the teacher's "%Y-%m-%d.log" (there written via Go's
// reference-time layout as "2006-01-02.log").
const dailyPattern = "%Y-%m-%d.log"

// Logger writes one CSV row per logged packet. The zero value is not
// usable; construct with New.
type Logger struct {
	mu         sync.Mutex
	dailyNames bool
	path       string // Directory (daily names) or full file path (single file).
	fp         *os.File
	openName   string
}

// New mirrors log_init: dailyNames selects automatic daily file names
// under the directory path, or false for a single fixed file at path.
// An empty path disables logging entirely.
func New(dailyNames bool, path string) (*Logger, error) {
	l := &Logger{dailyNames: dailyNames}
	if path == "" {
		return l, nil
	}

	if dailyNames {
		stat, err := os.Stat(path)
		switch {
		case err == nil && stat.IsDir():
			l.path = path
		case err == nil:
			dwlog.Errf("pktlog: log file location %q is not a directory, using \".\"", path)
			l.path = "."
		default:
			if mkErr := os.Mkdir(path, 0755); mkErr == nil {
				dwlog.Infof("pktlog: log file location %q created", path)
				l.path = path
			} else {
				dwlog.Errf("pktlog: failed to create log file location %q: %v, using \".\"", path, mkErr)
				l.path = "."
			}
		}
	} else {
		dwlog.Infof("pktlog: log file is %q", path)
		l.path = path
	}
	return l, nil
}

// Entry is one logged packet (spec.md §7's packet-logging component,
// trimmed to the fields meaningful for a raw AX.25/FX.25/IL2P channel
// rather than direwolf's APRS-specific decode).
type Entry struct {
	Channel     int
	Time        time.Time
	Source      string
	Destination string
	Heard       string // Last digipeater to have repeated this frame, if any.
	Kind        ax25.Kind
	NS, NR      int
	PF          bool
	Retries     int
	InfoLen     int
}

// Write appends one CSV row, opening (or rotating, for daily names) the
// log file as needed. A no-op if logging is disabled.
func (l *Logger) Write(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return
	}
	now := e.Time.UTC()

	if l.dailyNames {
		fname, err := strftime.Format(dailyPattern, now)
		if err != nil {
			dwlog.Errf("pktlog: bad daily name pattern: %v", err)
			return
		}
		if l.fp != nil && fname != l.openName {
			l.closeLocked()
		}
		if l.fp == nil {
			full := filepath.Join(l.path, fname)
			alreadyThere := fileExists(full)

			dwlog.Infof("pktlog: opening log file %q", fname)
			f, err := os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
			if err != nil {
				dwlog.Errf("pktlog: can't open log file %q: %v", full, err)
				l.openName = ""
				return
			}
			l.fp = f
			l.openName = fname
			if !alreadyThere {
				fmt.Fprint(l.fp, header)
			}
		}
	} else if l.fp == nil {
		alreadyThere := fileExists(l.path)
		dwlog.Infof("pktlog: opening log file %q", l.path)
		f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
		if err != nil {
			dwlog.Errf("pktlog: can't open log file %q: %v", l.path, err)
			l.path = ""
			return
		}
		l.fp = f
		if !alreadyThere {
			fmt.Fprint(l.fp, header)
		}
	}

	if l.fp == nil {
		return
	}

	pf := "0"
	if e.PF {
		pf = "1"
	}
	w := csv.NewWriter(l.fp)
	_ = w.Write([]string{
		strconv.Itoa(e.Channel),
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		e.Source, e.Destination, e.Heard,
		strconv.Itoa(int(e.Kind)),
		strconv.Itoa(e.NS), strconv.Itoa(e.NR), pf,
		strconv.Itoa(e.Retries), strconv.Itoa(e.InfoLen),
	})
	w.Flush()
	if err := w.Error(); err != nil {
		dwlog.Errf("pktlog: CSV write error: %v", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close closes any open log file (call on shutdown or date rollover).
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeLocked()
}

func (l *Logger) closeLocked() {
	if l.fp == nil {
		return
	}
	name := l.openName
	if !l.dailyNames {
		name = l.path
	}
	dwlog.Infof("pktlog: closing log file %q", name)
	l.fp.Close()
	l.fp = nil
	l.openName = ""
}
