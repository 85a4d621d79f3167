package config

import (
	"flag"
	"os"
	"sync"
)

const (
	defaultServerAddress = ":8080"
	defaultDatabaseDSN   = ""
	defaultRPCURL        = "https://mainnet.base.org"
	defaultWalletAddress = "0x0c0feb248548e33571584809113891818d4b0805"
	defaultAgentName     = "babeta"
	defaultNetwork       = "base-mainnet"
	defaultTokenContract = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	defaultLogLevel      = "debug"
)

type Config struct {
	ServerAddr    string
	DatabaseDSN   string
	RPCURL        string
	WalletAddress string
	AgentName     string
	Network       string
	TokenContract string
	LogLevel      string
}

var (
	once      sync.Once
	singleton *Config
)

// New returns new Config. It parses command line and environment variables only once.
func New() (*Config, error) {
	once.Do(func() {
		cfg := Config{}

		// initialize flags
		flag.StringVar(&cfg.ServerAddr, "a", defaultServerAddress, "provider server address")
		flag.StringVar(&cfg.DatabaseDSN, "d", defaultDatabaseDSN, "order database DSN (empty for in-memory store)")
		flag.StringVar(&cfg.RPCURL, "r", defaultRPCURL, "payment network RPC URL")
		flag.StringVar(&cfg.WalletAddress, "w", defaultWalletAddress, "provider wallet address")
		flag.StringVar(&cfg.AgentName, "n", defaultAgentName, "provider agent name")
		flag.StringVar(&cfg.LogLevel, "l", defaultLogLevel, "log level")

		cfg.Network = defaultNetwork
		cfg.TokenContract = defaultTokenContract

		flag.Parse()

		// if environment variable is set, then using it
		if runAddrEnv := os.Getenv("RUN_ADDRESS"); runAddrEnv != "" {
			cfg.ServerAddr = runAddrEnv
		}
		if dataBaseURIEnv := os.Getenv("DATABASE_URI"); dataBaseURIEnv != "" {
			cfg.DatabaseDSN = dataBaseURIEnv
		}
		if rpcURLEnv := os.Getenv("IVXP_RPC_URL"); rpcURLEnv != "" {
			cfg.RPCURL = rpcURLEnv
		}
		if walletEnv := os.Getenv("IVXP_WALLET_ADDRESS"); walletEnv != "" {
			cfg.WalletAddress = walletEnv
		}
		if agentNameEnv := os.Getenv("IVXP_AGENT_NAME"); agentNameEnv != "" {
			cfg.AgentName = agentNameEnv
		}
		if networkEnv := os.Getenv("IVXP_NETWORK"); networkEnv != "" {
			cfg.Network = networkEnv
		}
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			cfg.LogLevel = logLevelEnv
		}

		singleton = &cfg
	})

	return singleton, nil
}
