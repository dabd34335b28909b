package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename = "pbaasd.conf"
	defaultLogFilename    = "pbaasd.log"
	defaultErrLogFilename = "pbaasd_err.log"
	defaultListen         = "0.0.0.0:8770"
	defaultDebugLevel     = "info"
	defaultDaemonVersion  = 1
)

var (
	defaultHomeDir   = appDataDir("pbaasd")
	defaultDataDir   = filepath.Join(defaultHomeDir, "data")
	defaultLogDir    = filepath.Join(defaultHomeDir, "logs")
	activeConfig     *Config
)

// Config defines pbaasd's command-line and config-file options, grounded on
// the daemon-config pattern the teacher's cmd and kasparovd packages share:
// a flat go-flags struct with defaulted paths resolved after parsing.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store reserve-deposit ledger data"`
	LogDir     string `long:"logdir" description:"Directory to log output to"`
	Listen     string `long:"rpclisten" description:"RPC address to listen on"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	NetworkName string `long:"network" description:"Network/system identity this daemon runs as" required:"true"`

	DaemonVersion uint32 `long:"daemonversion" description:"This daemon's protocol version, gated by the upgrade table"`

	DSN            string `long:"dsn" description:"MySQL DSN for the read-side index mirror; leave empty to run without one"`
	MigrationsPath string `long:"migrationspath" description:"Path to the index-mirror's SQL migration files"`
}

// ActiveConfig returns the most recently parsed configuration.
func ActiveConfig() *Config {
	return activeConfig
}

// Parse parses CLI arguments (and, if present, a config file) into a Config,
// applying defaults the way cmd/addsubnetwork and kasparovd resolve theirs.
func Parse() (*Config, error) {
	cfg := &Config{
		DataDir:       defaultDataDir,
		LogDir:        defaultLogDir,
		Listen:        defaultListen,
		DebugLevel:    defaultDebugLevel,
		DaemonVersion: defaultDaemonVersion,
	}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}

	if cfg.NetworkName == "" {
		return nil, errors.New("--network is required")
	}

	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.Wrapf(err, "creating directory %s", dir)
		}
	}

	activeConfig = cfg
	return cfg, nil
}

func appDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", fmt.Sprintf(".%s", appName))
	}
	return filepath.Join(home, fmt.Sprintf(".%s", appName))
}
