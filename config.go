// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrutil/v2"
	"github.com/decred/walletscenario/internal/cfgutil"
	"github.com/decred/walletscenario/scenario"
	"github.com/decred/walletscenario/simnet"
	"github.com/decred/walletscenario/version"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "walletscenario.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "walletscenario.log"
	defaultJournalName    = "journal.yaml"
	defaultBackend        = backendSimnet
	defaultNodes          = 3

	backendSimnet = "simnet"
	backendDcrd   = "dcrd"
)

var (
	defaultAppDataDir = dcrutil.AppDataDir("walletscenario", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

type config struct {
	// General application behavior
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	AppDataDir  string `short:"A" long:"appdata" description:"Application data directory for config, journals and logs"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	NoFileLog   bool   `long:"nofilelogging" description:"Disable file logging"`
	Journal     string `long:"journal" description:"Write the YAML run journal to this file"`

	// Network options
	Backend      string        `short:"b" long:"backend" description:"Node backend {simnet, dcrd}"`
	Nodes        int           `long:"nodes" description:"Number of nodes in the network (the wallet scenario needs at least 3)"`
	SyncTimeout  time.Duration `long:"synctimeout" description:"Time allowed for the nodes to converge at every sync barrier"`
	PollInterval time.Duration `long:"pollinterval" description:"Delay between rounds of the sync barrier"`

	// Scenario amounts
	FirstPayment  *cfgutil.AmountFlag `long:"firstpayment" description:"First payment from A to C"`
	SecondPayment *cfgutil.AmountFlag `long:"secondpayment" description:"Second payment from A to C"`
	FeeSlack      *cfgutil.AmountFlag `long:"feeslack" description:"Fees A may pay on top of both payments before its balance check fails"`
	SweepFee      *cfgutil.AmountFlag `long:"sweepfee" description:"Fee deducted from every sweep output"`

	SimnetOpts simnetOptions `group:"Simulated network options" namespace:"simnet"`
	DcrdOpts   dcrdOptions   `group:"Process network options" namespace:"dcrd"`
}

type simnetOptions struct {
	DataDir                string              `long:"datadir" description:"Persist node chains below this directory (memory only when empty)"`
	Latency                time.Duration       `long:"latency" description:"Delay of every relayed block and transaction"`
	BlockOneSubsidy        *cfgutil.AmountFlag `long:"blockonesubsidy" description:"Subsidy of the first block"`
	BaseSubsidy            *cfgutil.AmountFlag `long:"subsidy" description:"Subsidy of every later block"`
	CoinbaseMaturity       int64               `long:"maturity" description:"Blocks a coinbase must be buried under before it may be spent"`
	FreeRelayConfirmations int64               `long:"freerelayconfs" description:"Confirmations an input needs to be relayed without a fee"`
	RelayFee               *cfgutil.AmountFlag `long:"relayfee" description:"Fee required when an input has fewer confirmations"`
}

type dcrdOptions struct {
	DcrdExe     string `long:"dcrdexe" description:"Path to the dcrd executable"`
	WalletExe   string `long:"dcrwalletexe" description:"Path to the dcrwallet executable"`
	BasePort    int    `long:"baseport" description:"First of three ports reserved by every node"`
	WorkingDir  string `long:"workingdir" description:"Directory holding the node data directories (temporary when empty)"`
	DebugOutput bool   `long:"debugoutput" description:"Show dcrd and dcrwallet output"`
}

// cleanAndExpandPath expands environement variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// NOTE: The os.ExpandEnv doesn't work with Windows cmd.exe-style
	// %VARIABLE%, but they variables can still be expanded via POSIX-style
	// $VARIABLE.
	path = os.ExpandEnv(path)

	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	path = path[1:]

	var pathSeparators string
	if runtime.GOOS == "windows" {
		pathSeparators = string(os.PathSeparator) + "/"
	} else {
		pathSeparators = string(os.PathSeparator)
	}

	userName := ""
	if i := strings.IndexAny(path, pathSeparators); i != -1 {
		userName = path[:i]
		path = path[i:]
	}

	homeDir := ""
	var u *user.User
	var err error
	if userName == "" {
		u, err = user.Current()
	} else {
		u, err = user.Lookup(userName)
	}
	if err == nil {
		homeDir = u.HomeDir
	}
	// Fallback to CWD if user lookup fails or user has no home directory.
	if homeDir == "" {
		homeDir = "."
	}

	return filepath.Join(homeDir, path)
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// defaultConfig returns the configuration used when no options are given.
func defaultConfig() config {
	wo := scenario.DefaultWalletOptions()
	sp := simnet.WalletTestParams()
	return config{
		ConfigFile:    defaultConfigFile,
		AppDataDir:    defaultAppDataDir,
		DebugLevel:    defaultLogLevel,
		LogDir:        defaultLogDir,
		Backend:       defaultBackend,
		Nodes:         defaultNodes,
		SyncTimeout:   scenario.DefaultSyncTimeout,
		PollInterval:  scenario.DefaultPollInterval,
		FirstPayment:  cfgutil.NewAmountFlag(wo.FirstPayment),
		SecondPayment: cfgutil.NewAmountFlag(wo.SecondPayment),
		FeeSlack:      cfgutil.NewAmountFlag(wo.FeeSlack),
		SweepFee:      cfgutil.NewAmountFlag(wo.SweepFee),
		SimnetOpts: simnetOptions{
			BlockOneSubsidy:        cfgutil.NewAmountFlag(sp.BlockOneSubsidy),
			BaseSubsidy:            cfgutil.NewAmountFlag(sp.BaseSubsidy),
			CoinbaseMaturity:       sp.CoinbaseMaturity,
			FreeRelayConfirmations: sp.FreeRelayConfirmations,
			RelayFee:               cfgutil.NewAmountFlag(sp.RelayFee),
		},
	}
}

// walletOptions returns the scenario amounts selected by cfg.
func (cfg *config) walletOptions() scenario.WalletOptions {
	wo := scenario.DefaultWalletOptions()
	wo.FirstPayment = cfg.FirstPayment.Amount
	wo.SecondPayment = cfg.SecondPayment.Amount
	wo.FeeSlack = cfg.FeeSlack.Amount
	wo.SweepFee = cfg.SweepFee.Amount
	return wo
}

// syncOptions returns the barrier settings selected by cfg.
func (cfg *config) syncOptions() scenario.SyncOptions {
	return scenario.SyncOptions{
		Timeout:      cfg.SyncTimeout,
		PollInterval: cfg.PollInterval,
	}
}

// simnetParams returns the ledger rules selected by cfg.
func (cfg *config) simnetParams() *simnet.Params {
	p := simnet.WalletTestParams()
	o := &cfg.SimnetOpts
	p.BlockOneSubsidy = o.BlockOneSubsidy.Amount
	p.BaseSubsidy = o.BaseSubsidy.Amount
	p.CoinbaseMaturity = o.CoinbaseMaturity
	p.FreeRelayConfirmations = o.FreeRelayConfirmations
	p.RelayFee = o.RelayFee.Amount
	return p
}

// validate checks option values and cleans paths.
func (cfg *config) validate() error {
	switch cfg.Backend {
	case backendSimnet, backendDcrd:
	default:
		return fmt.Errorf("unknown backend %q -- supported backends "+
			"are %s and %s", cfg.Backend, backendSimnet, backendDcrd)
	}
	if cfg.Nodes < 3 {
		return fmt.Errorf("the wallet scenario needs at least 3 nodes, "+
			"not %d", cfg.Nodes)
	}
	if cfg.SyncTimeout <= 0 {
		return fmt.Errorf("synctimeout must be positive")
	}
	if cfg.PollInterval <= 0 || cfg.PollInterval > cfg.SyncTimeout {
		return fmt.Errorf("pollinterval must be positive and no longer " +
			"than synctimeout")
	}
	if cfg.FirstPayment.Amount <= 0 || cfg.SecondPayment.Amount <= 0 {
		return fmt.Errorf("payments must be positive")
	}
	if cfg.FeeSlack.Amount < 0 || cfg.SweepFee.Amount < 0 {
		return fmt.Errorf("feeslack and sweepfee may not be negative")
	}
	o := &cfg.SimnetOpts
	if o.CoinbaseMaturity < 0 || o.FreeRelayConfirmations < 0 {
		return fmt.Errorf("simnet.maturity and simnet.freerelayconfs " +
			"may not be negative")
	}
	if o.BlockOneSubsidy.Amount < 0 || o.BaseSubsidy.Amount < 0 || o.RelayFee.Amount < 0 {
		return fmt.Errorf("simnet amounts may not be negative")
	}

	cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.Journal == "" {
		cfg.Journal = filepath.Join(cfg.AppDataDir, defaultJournalName)
	}
	cfg.Journal = cleanAndExpandPath(cfg.Journal)
	if o.DataDir != "" {
		o.DataDir = cleanAndExpandPath(o.DataDir)
	}
	if cfg.DcrdOpts.WorkingDir != "" {
		cfg.DcrdOpts.WorkingDir = cleanAndExpandPath(cfg.DcrdOpts.WorkingDir)
	}
	return nil
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//      1) Start with a default config with sane settings
//      2) Pre-parse the command line to check for an alternative config file
//      3) Load configuration file overwriting defaults with any specified options
//      4) Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, []string, error) {
	loadConfigError := func(err error) (*config, []string, error) {
		return nil, nil, err
	}

	cfg := defaultConfig()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		e, ok := err.(*flags.Error)
		if ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return loadConfigError(err)
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	// Load additional config from file.  A missing default config file is
	// not an error.
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := preCfg.ConfigFile
	if configFilePath == defaultConfigFile && preCfg.AppDataDir != defaultAppDataDir {
		configFilePath = filepath.Join(preCfg.AppDataDir, defaultConfigFilename)
	}
	configFilePath = cleanAndExpandPath(configFilePath)
	exists, err := cfgutil.FileExists(configFilePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return loadConfigError(err)
	}
	if exists {
		err = flags.NewIniParser(parser).ParseFile(configFilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n", err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return loadConfigError(err)
		}
	} else if preCfg.ConfigFile != defaultConfigFile {
		err := fmt.Errorf("config file %s does not exist", configFilePath)
		fmt.Fprintln(os.Stderr, err)
		return loadConfigError(err)
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return loadConfigError(err)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if err := cfg.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}

	// Initialize the log rotator and set the debug levels.
	if !cfg.NoFileLog {
		err = initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return loadConfigError(err)
		}
	}
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("%s: %v", "loadConfig", err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return loadConfigError(err)
	}

	return &cfg, remainingArgs, nil
}
