package config

import (
	"flag"
	"net/url"
	"time"

	"github.com/golang/glog"
)

// ServerConfig holds listener and document options
type ServerConfig struct {
	Port     int
	Document string // HTML file the live document is loaded from; empty starts blank
	BatchDir string // directory watched for *.batch.json and *.batch.yaml files
}

// MorphConfig holds the declarative attribute names and sequencer limits
type MorphConfig struct {
	PermanentAttribute  string
	RootAttribute       string
	MaxOpenTransactions int
	QueueSize           int
}

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	GenerateCert bool
	Hosts        []string
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// WebSocketConfig holds options for the /ws endpoint
type WebSocketConfig struct {
	ReadBuffer   int
	WriteBuffer  int
	SendBuffer   int // events queued per client before it is dropped
	WriteTimeout time.Duration
}

// Config holds the application configuration
type Config struct {
	Server        ServerConfig
	Morph         MorphConfig
	ProxyURL      *url.URL
	InsecureProxy bool
	TLS           TLSConfig
	CORS          CORSConfig
	WebSocket     WebSocketConfig
}

// ParseFlags parses command line flags and merges with config file
func ParseFlags() (*Config, error) {
	configFlag := flag.String("config", "config.yml", "Path to configuration file")
	generateConfigFlag := flag.Bool("generate-config", false, "Generate a default configuration file")
	configFilePathFlag := flag.String("config-path", "config.yml", "Path where config file should be generated")

	// overrides for the config file
	docFlag := flag.String("document", "", "HTML file holding the initial document (overrides config)")
	dirFlag := flag.String("d", "", "Directory watched for batch files (overrides config)")
	portFlag := flag.Int("p", 0, "Port to listen on (overrides config)")

	flag.Parse()

	if *generateConfigFlag {
		glog.Infof("[config]generating default configuration file at %s\n", *configFilePathFlag)
		if err := SaveDefaultConfig(*configFilePathFlag); err != nil {
			return nil, err
		}
	}

	config, err := LoadConfig(*configFlag)
	if err != nil {
		glog.Warningf("[config]could not load config file: %v\n", err)
		glog.Infof("[config]using default configuration\n")
		config = Default()
	}

	if *docFlag != "" {
		config.Server.Document = *docFlag
	}
	if *dirFlag != "" {
		config.Server.BatchDir = *dirFlag
	}
	if *portFlag != 0 {
		config.Server.Port = *portFlag
	}

	return config, nil
}
