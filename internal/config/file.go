package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gihan9a/morphcast/internal/morph"
)

// FileConfig represents the structure of the configuration file
type FileConfig struct {
	Server struct {
		Port     int    `yaml:"port"`
		Document string `yaml:"document"`
		BatchDir string `yaml:"batch_dir"`
	} `yaml:"server"`

	Morph struct {
		PermanentAttribute  string `yaml:"permanent_attribute"`
		RootAttribute       string `yaml:"root_attribute"`
		MaxOpenTransactions int    `yaml:"max_open_transactions"`
		QueueSize           int    `yaml:"queue_size"`
	} `yaml:"morph"`

	Proxy struct {
		URL            string `yaml:"url"`
		InsecureVerify bool   `yaml:"insecure_verify"`
	} `yaml:"proxy"`

	TLS struct {
		Enabled      bool     `yaml:"enabled"`
		CertFile     string   `yaml:"cert_file"`
		KeyFile      string   `yaml:"key_file"`
		GenerateCert bool     `yaml:"generate_cert"`
		Hosts        []string `yaml:"hosts,omitempty"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool   `yaml:"enabled"`
		AllowOrigins     string `yaml:"allow_origins"`
		AllowMethods     string `yaml:"allow_methods"`
		AllowHeaders     string `yaml:"allow_headers"`
		AllowCredentials bool   `yaml:"allow_credentials"`
		MaxAge           int    `yaml:"max_age"`
	} `yaml:"cors"`

	WebSocket struct {
		ReadBuffer   int    `yaml:"read_buffer"`
		WriteBuffer  int    `yaml:"write_buffer"`
		SendBuffer   int    `yaml:"send_buffer"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"websocket"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
		},
		Morph: MorphConfig{
			PermanentAttribute:  morph.DefaultPermanentAttribute,
			RootAttribute:       morph.DefaultRootAttribute,
			MaxOpenTransactions: 1024,
			QueueSize:           64,
		},
		TLS: TLSConfig{
			CertFile: "cert/cert.pem",
			KeyFile:  "cert/key.pem",
			Hosts:    []string{"localhost", "127.0.0.1"},
		},
		CORS: CORSConfig{
			AllowOrigins: "*",
			AllowMethods: "GET, POST, OPTIONS",
			AllowHeaders: "Content-Type, Subscribe, Version, Parents",
			MaxAge:       86400,
		},
		WebSocket: WebSocketConfig{
			ReadBuffer:   4096,
			WriteBuffer:  4096,
			SendBuffer:   256,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	config := Default()
	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if fileConfig.Server.Port != 0 {
		config.Server.Port = fileConfig.Server.Port
	}
	config.Server.Document = fileConfig.Server.Document
	config.Server.BatchDir = fileConfig.Server.BatchDir

	if fileConfig.Morph.PermanentAttribute != "" {
		config.Morph.PermanentAttribute = fileConfig.Morph.PermanentAttribute
	}
	if fileConfig.Morph.RootAttribute != "" {
		config.Morph.RootAttribute = fileConfig.Morph.RootAttribute
	}
	if fileConfig.Morph.MaxOpenTransactions > 0 {
		config.Morph.MaxOpenTransactions = fileConfig.Morph.MaxOpenTransactions
	}
	if fileConfig.Morph.QueueSize > 0 {
		config.Morph.QueueSize = fileConfig.Morph.QueueSize
	}

	if fileConfig.Proxy.URL != "" {
		proxyURL, err := url.Parse(fileConfig.Proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		config.ProxyURL = proxyURL
		config.InsecureProxy = fileConfig.Proxy.InsecureVerify
	}

	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}
	config.TLS.GenerateCert = fileConfig.TLS.GenerateCert
	if len(fileConfig.TLS.Hosts) > 0 {
		config.TLS.Hosts = fileConfig.TLS.Hosts
	}

	config.CORS.Enabled = fileConfig.CORS.Enabled
	if fileConfig.CORS.AllowOrigins != "" {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if fileConfig.CORS.AllowMethods != "" {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if fileConfig.CORS.AllowHeaders != "" {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	if fileConfig.WebSocket.ReadBuffer > 0 {
		config.WebSocket.ReadBuffer = fileConfig.WebSocket.ReadBuffer
	}
	if fileConfig.WebSocket.WriteBuffer > 0 {
		config.WebSocket.WriteBuffer = fileConfig.WebSocket.WriteBuffer
	}
	if fileConfig.WebSocket.SendBuffer > 0 {
		config.WebSocket.SendBuffer = fileConfig.WebSocket.SendBuffer
	}
	if fileConfig.WebSocket.WriteTimeout != "" {
		d, err := time.ParseDuration(fileConfig.WebSocket.WriteTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid websocket write_timeout: %w", err)
		}
		config.WebSocket.WriteTimeout = d
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	def := Default()
	var fileConfig FileConfig

	fileConfig.Server.Port = def.Server.Port
	fileConfig.Server.Document = "index.html"
	fileConfig.Server.BatchDir = "batches"

	fileConfig.Morph.PermanentAttribute = def.Morph.PermanentAttribute
	fileConfig.Morph.RootAttribute = def.Morph.RootAttribute
	fileConfig.Morph.MaxOpenTransactions = def.Morph.MaxOpenTransactions
	fileConfig.Morph.QueueSize = def.Morph.QueueSize

	fileConfig.TLS.CertFile = def.TLS.CertFile
	fileConfig.TLS.KeyFile = def.TLS.KeyFile
	fileConfig.TLS.Hosts = def.TLS.Hosts

	fileConfig.CORS.AllowOrigins = def.CORS.AllowOrigins
	fileConfig.CORS.AllowMethods = def.CORS.AllowMethods
	fileConfig.CORS.AllowHeaders = def.CORS.AllowHeaders
	fileConfig.CORS.MaxAge = def.CORS.MaxAge

	fileConfig.WebSocket.ReadBuffer = def.WebSocket.ReadBuffer
	fileConfig.WebSocket.WriteBuffer = def.WebSocket.WriteBuffer
	fileConfig.WebSocket.SendBuffer = def.WebSocket.SendBuffer
	fileConfig.WebSocket.WriteTimeout = def.WebSocket.WriteTimeout.String()

	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	out := "# morphcast server configuration\n" +
		"# proxy.url forwards unknown routes to the page renderer\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(out), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
