// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2021 The Ergvein developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/ergvein/filters"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogFilename = "gcsfilter.log"
	defaultLogLevel    = "info"
	defaultRPCServer   = "localhost"
)

var (
	btcdHomeDir      = btcutil.AppDataDir("btcd", false)
	gcsfilterHomeDir = btcutil.AppDataDir("gcsfilter", false)
	defaultLogDir    = filepath.Join(gcsfilterHomeDir, "logs")
	defaultRPCCert   = filepath.Join(btcdHomeDir, "rpc.cert")
	activeNetParams  = &mainNetParams
)

// params is used to group parameters for various networks such as the main
// network and test networks.
type params struct {
	*chaincfg.Params
	rpcPort string
}

var (
	mainNetParams       = params{&chaincfg.MainNetParams, "8334"}
	testNet3Params      = params{&chaincfg.TestNet3Params, "18334"}
	regressionNetParams = params{&chaincfg.RegressionNetParams, "18334"}
	simNetParams        = params{&chaincfg.SimNetParams, "18556"}
)

// config defines the configuration options for gcsfilter.
//
// See loadConfig for details on the configuration load process.
type config struct {
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`

	RPCUser        string `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword    string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCServer      string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	RPCCert        string `short:"c" long:"rpccert" description:"RPC server certificate chain for validation"`
	NoTLS          bool   `long:"notls" description:"Disable TLS"`
	Proxy          string `long:"proxy" description:"Connect to the RPC server via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser      string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass      string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	TestNet3       bool   `long:"testnet" description:"Use the test network"`
	RegressionTest bool   `long:"regtest" description:"Use the regression test network"`
	SimNet         bool   `long:"simnet" description:"Use the simulation test network"`

	Block   string `short:"b" long:"block" description:"Build the filter of the block with this hash"`
	Height  int64  `long:"height" default:"-1" description:"Build the filter of the main chain block at this height"`
	Mempool bool   `long:"mempool" description:"Build the filter of the node's mempool"`
	K0      uint64 `long:"k0" description:"First SipHash key half of the mempool filter"`
	K1      uint64 `long:"k1" description:"Second SipHash key half of the mempool filter"`

	ErgoBlock string `long:"ergoblock" description:"File holding the hex encoded transactions section of an Ergo block; unsized version 0 ErgoTrees must have a constant root"`
	ErgoID    string `long:"ergoid" description:"Hex encoded identifier of the Ergo block"`
	ErgoBoxes string `long:"ergoboxes" description:"File of '<box id> <ergo tree>' hex pairs resolving the boxes spent by the Ergo block"`

	Filter   string `long:"filter" description:"Hex encoded filter to match against instead of building one"`
	Currency string `long:"currency" default:"BTC" description:"Currency of --filter {BTC, ERGO}"`
	BlockID  string `long:"blockid" description:"Block hash (BTC) or identifier (ERGO) keying --filter"`

	DBFile     string `long:"dbfile" description:"Filter database used to reuse and store built block filters"`
	PrevHeader string `long:"prevheader" description:"Filter header of the previous block; the header of the block filter is printed and stored with it"`

	Match []string `short:"m" long:"match" description:"Hex encoded script to match against the filter; may be repeated"`
	All   bool     `long:"all" description:"Require every --match script instead of any"`

	currency   filters.Currency
	query      [][]byte
	prevHeader *chainhash.Hash
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(gcsfilterHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		RPCServer:  defaultRPCServer,
		RPCCert:    defaultRPCCert,
		Height:     -1,
		Currency:   filters.BTC.String(),
	}

	// Parse command line options.
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	funcName := "loadConfig"
	fail := func(err error) (*config, []string, error) {
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.  Count number
	// of network flags passed; assign active network params while we're
	// at it.
	numNets := 0
	if cfg.TestNet3 {
		numNets++
		activeNetParams = &testNet3Params
	}
	if cfg.RegressionTest {
		numNets++
		activeNetParams = &regressionNetParams
	}
	if cfg.SimNet {
		numNets++
		activeNetParams = &simNetParams
	}
	if numNets > 1 {
		str := "%s: the testnet, regtest, and simnet params can't be " +
			"used together -- choose one of the three"
		return fail(fmt.Errorf(str, funcName))
	}

	// Exactly one filter source is required.
	numModes := 0
	if cfg.Block != "" || cfg.Height >= 0 {
		numModes++
	}
	if cfg.Mempool {
		numModes++
	}
	if cfg.ErgoBlock != "" {
		numModes++
	}
	if cfg.Filter != "" {
		numModes++
	}
	if numModes != 1 || (cfg.Block != "" && cfg.Height >= 0) {
		str := "%s: choose exactly one of --block, --height, --mempool, " +
			"--ergoblock or --filter"
		return fail(fmt.Errorf(str, funcName))
	}

	if cfg.ErgoBlock != "" && cfg.ErgoID == "" {
		str := "%s: --ergoblock requires --ergoid"
		return fail(fmt.Errorf(str, funcName))
	}
	if cfg.Filter != "" && cfg.BlockID == "" {
		str := "%s: --filter requires --blockid"
		return fail(fmt.Errorf(str, funcName))
	}

	if cfg.PrevHeader != "" {
		if cfg.Mempool {
			str := "%s: --prevheader cannot be used with --mempool"
			return fail(fmt.Errorf(str, funcName))
		}
		cfg.prevHeader, err = chainhash.NewHashFromStr(cfg.PrevHeader)
		if err != nil {
			str := "%s: invalid --prevheader: %v"
			return fail(fmt.Errorf(str, funcName, err))
		}
	}

	cfg.currency, err = filters.ParseCurrency(cfg.Currency)
	if err != nil {
		return fail(fmt.Errorf("%s: %v", funcName, err))
	}

	for _, m := range cfg.Match {
		script, err := hex.DecodeString(m)
		if err != nil {
			str := "%s: invalid --match script %q: %v"
			return fail(fmt.Errorf(str, funcName, m, err))
		}
		cfg.query = append(cfg.query, script)
	}

	// Validate debug log level.
	if !validLogLevel(cfg.DebugLevel) {
		str := "%s: the specified debug level [%v] is invalid"
		return fail(fmt.Errorf(str, funcName, cfg.DebugLevel))
	}

	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)
	if cfg.DBFile != "" {
		cfg.DBFile = cleanAndExpandPath(cfg.DBFile)
	}

	// Add default port to RPC server based on the network if needed.
	cfg.RPCServer = normalizeAddress(cfg.RPCServer, activeNetParams.rpcPort)

	return &cfg, remainingArgs, nil
}
