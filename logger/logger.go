// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires every engine subsystem to a single logs.Backend and
// gives each one a stable four-letter tag for SetLogLevel/SetLogLevels.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"github.com/pbaaschain/pbaasd/internal/logs"
)

// logWriter outputs to both stdout and the write-end of the log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		LogRotator.Write(p)
	}
	return len(p), nil
}

// errLogWriter outputs to both stdout and the error-only log rotator.
type errLogWriter struct{}

func (errLogWriter) Write(p []byte) (n int, err error) {
	if initiated {
		os.Stdout.Write(p)
		ErrLogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem. A single backend is shared by all of them so that
// SetLogLevels can flip every subsystem at once (e.g. from an RPC debug-level
// call) without the caller knowing the full subsystem set.
var (
	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(logWriter{}),
		logs.NewErrorBackendWriter(errLogWriter{}),
	})

	// LogRotator and ErrLogRotator must be set via InitLogRotators before
	// any logger obtained from this package is used.
	LogRotator    *rotator.Rotator
	ErrLogRotator *rotator.Rotator

	engnLog = backendLog.Logger(SubsystemTags.ENGN)
	xferLog = backendLog.Logger(SubsystemTags.XFER)
	exptLog = backendLog.Logger(SubsystemTags.EXPT)
	imptLog = backendLog.Logger(SubsystemTags.IMPT)
	ldgrLog = backendLog.Logger(SubsystemTags.LDGR)
	lnchLog = backendLog.Logger(SubsystemTags.LNCH)
	profLog = backendLog.Logger(SubsystemTags.PROF)
	feelLog = backendLog.Logger(SubsystemTags.FEEL)
	regiLog = backendLog.Logger(SubsystemTags.REGI)
	arbtLog = backendLog.Logger(SubsystemTags.ARBT)
	upgrLog = backendLog.Logger(SubsystemTags.UPGR)
	utilLog = backendLog.Logger(SubsystemTags.UTIL)
	rpcsLog = backendLog.Logger(SubsystemTags.RPCS)

	initiated = false
)

// SubsystemTags is an enum of all subsystem tags recognized by this package.
var SubsystemTags = struct {
	ENGN, XFER, EXPT, IMPT, LDGR, LNCH, PROF, FEEL, REGI, ARBT, UPGR, UTIL, RPCS string
}{
	ENGN: "ENGN", // engine / submission worker
	XFER: "XFER", // reservetransfer, transferhash
	EXPT: "EXPT", // export
	IMPT: "IMPT", // importer
	LDGR: "LDGR", // reservedeposit ledger
	LNCH: "LNCH", // launch state machine
	PROF: "PROF", // proof adapter
	FEEL: "FEEL", // fee lottery
	REGI: "REGI", // currency-export registry
	ARBT: "ARBT", // arbitrage hook
	UPGR: "UPGR", // upgrade / oracle gate
	UTIL: "UTIL", // util/panics
	RPCS: "RPCS", // rpc server
}

// subsystemLoggers maps each subsystem tag to its logger.
var subsystemLoggers = map[string]*logs.Logger{
	SubsystemTags.ENGN: engnLog,
	SubsystemTags.XFER: xferLog,
	SubsystemTags.EXPT: exptLog,
	SubsystemTags.IMPT: imptLog,
	SubsystemTags.LDGR: ldgrLog,
	SubsystemTags.LNCH: lnchLog,
	SubsystemTags.PROF: profLog,
	SubsystemTags.FEEL: feelLog,
	SubsystemTags.REGI: regiLog,
	SubsystemTags.ARBT: arbtLog,
	SubsystemTags.UPGR: upgrLog,
	SubsystemTags.UTIL: utilLog,
	SubsystemTags.RPCS: rpcsLog,
}

// Get returns the logger registered for subsystemTag, or creates (and
// remembers) a fresh LevelInfo logger for an unrecognized tag so that
// ad-hoc subsystems never hit a nil logger.
func Get(subsystemTag string) (*logs.Logger, bool) {
	if l, ok := subsystemLoggers[subsystemTag]; ok {
		return l, true
	}
	l := backendLog.Logger(subsystemTag)
	subsystemLoggers[subsystemTag] = l
	return l, false
}

// InitLogRotators initializes the logging rotators that write logs to
// logFile and errLogFile. It must be called before any logger obtained from
// this package is used.
func InitLogRotators(logFile, errLogFile string) {
	initiated = true
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the logging level for the given subsystem. Unrecognized
// subsystems are not rejected: Get creates a logger for them. An
// unrecognized level name sets LevelInfo.
func SetLogLevel(subsystemTag string, logLevel string) {
	logger, _ := Get(subsystemTag)
	level, _ := logs.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets every currently-registered subsystem logger to logLevel.
func SetLogLevels(logLevel string) {
	for subsystemTag := range subsystemLoggers {
		SetLogLevel(subsystemTag, logLevel)
	}
}
