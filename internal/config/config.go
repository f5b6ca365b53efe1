// Package config loads cmd/swapd's configuration, following lnd.go's own
// loadConfig/defaultConfigFilename idiom: flag parsing via go-flags,
// defaults filled in before parsing, and a log-level string translated
// into the shared btclog backend via internal/build.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/lightninglabs/xmrswap/internal/build"
)

const (
	defaultConfigFilename = "swapd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultBitcoinRPCHost = "localhost:8332"
	defaultMoneroRPCHost  = "http://localhost:18082/json_rpc"
	defaultListenAddress  = ":10901"
	defaultCancelTimelock = 144  // ~24h of Bitcoin blocks
	defaultPunishTimelock = 144  // a further ~24h after tx_cancel confirms
	defaultBitcoinConfs   = 1
	defaultMoneroConfs    = 10
)

var defaultDataDir = filepath.Join(defaultHomeDir(), defaultDataDirname)

// Config is the full set of settings a swapd instance needs, populated
// from defaults, a config file, and command-line flags, in that order of
// increasing precedence - the same layering loadConfig applies.
type Config struct {
	ConfigFile    string `long:"configfile" description:"Path to configuration file"`
	DataDir       string `long:"datadir" description:"Directory to store the swapdb persisted-state database in"`
	LogLevel      string `long:"loglevel" description:"Logging level for all subsystems"`
	ListenAddress string `long:"listen" description:"Host:port to listen on for counterparty swap connections"`

	BitcoinRPCHost string `long:"bitcoin.rpchost" description:"Host:port of the btcd/bitcoind RPC server"`
	BitcoinRPCUser string `long:"bitcoin.rpcuser" description:"Username for the Bitcoin RPC server"`
	BitcoinRPCPass string `long:"bitcoin.rpcpass" description:"Password for the Bitcoin RPC server"`

	MoneroRPCHost string `long:"monero.rpchost" description:"URL of the monero-wallet-rpc JSON-RPC endpoint"`

	CancelTimelock uint32 `long:"cancel_timelock" description:"Blocks after tx_lock confirms before tx_cancel becomes valid"`
	PunishTimelock uint32 `long:"punish_timelock" description:"Blocks after tx_cancel confirms before tx_punish becomes valid"`

	BitcoinConfs uint32 `long:"bitcoin_confs" description:"Confirmations required before treating a Bitcoin transaction as final"`
	MoneroConfs  uint32 `long:"monero_confs" description:"Confirmations required before treating a Monero transfer as final"`
}

// defaultConfig returns a Config populated with every default value, the
// starting point loadConfig fills in from a config file and flags.
func defaultConfig() Config {
	return Config{
		ConfigFile:     filepath.Join(defaultHomeDir(), defaultConfigFilename),
		DataDir:        defaultDataDir,
		LogLevel:       defaultLogLevel,
		ListenAddress:  defaultListenAddress,
		BitcoinRPCHost: defaultBitcoinRPCHost,
		MoneroRPCHost:  defaultMoneroRPCHost,
		CancelTimelock: defaultCancelTimelock,
		PunishTimelock: defaultPunishTimelock,
		BitcoinConfs:   defaultBitcoinConfs,
		MoneroConfs:    defaultMoneroConfs,
	}
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".xmrswap")
}

// LoadConfig parses args (typically os.Args[1:]) over the defaults, reads
// the resulting config file if present, then re-parses args so
// command-line flags take final precedence - the same three-pass
// structure lnd.go's loadConfig uses. It also wires cfg.LogLevel into the
// shared logging backend before returning.
func LoadConfig(args []string) (*Config, error) {
	cfg := defaultConfig()

	preParser := flags.NewParser(&cfg, flags.Default&^flags.HelpFlag|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		fileParser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", cfg.ConfigFile, err)
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("config: creating data directory: %w", err)
	}

	build.SetLogLevel(cfg.LogLevel)

	return &cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.CancelTimelock == 0 {
		return fmt.Errorf("config: cancel_timelock must be positive")
	}
	if cfg.PunishTimelock == 0 {
		return fmt.Errorf("config: punish_timelock must be positive")
	}
	if cfg.BitcoinConfs == 0 {
		return fmt.Errorf("config: bitcoin_confs must be positive")
	}
	if cfg.MoneroConfs == 0 {
		return fmt.Errorf("config: monero_confs must be positive")
	}
	return nil
}
