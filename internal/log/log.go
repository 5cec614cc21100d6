// Package log wraps logrus into one shared, structured logger so every
// package in this module logs through the same formatter and level
// configuration instead of each reaching for the standard library's log
// package independently.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the global log level (wired to cmd/bgpd's `-log-level`
// flag).
func SetLevel(level logrus.Level) { root().SetLevel(level) }

// Component returns a logger scoped to a named subsystem (e.g. "fsm",
// "transport", "rib"), matching a single peer or package's log lines
// with a `component` field for filtering.
func Component(name string) *logrus.Entry {
	return root().WithField("component", name)
}

// Peer returns a logger scoped to one neighbor, nesting under its
// component so a single peer's full lifecycle can be grepped out of a
// busy multi-peer daemon's log.
func Peer(component, peerAddr string) *logrus.Entry {
	return root().WithFields(logrus.Fields{"component": component, "peer": peerAddr})
}
