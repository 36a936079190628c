package common

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/util"
)

// AppName - Application name.
const AppName = "Niobium"

// AppVersion - Application version.
const AppVersion = "0.1.0"

// AppAuthor - Application author.
const AppAuthor = "HON95"

// PrometheusNamespace - Prometheus metrics namespace.
const PrometheusNamespace = "niobium"

// ARP sources, i.e. how MAC addresses are resolved to IP addresses on the gateway.
const (
	ARPSourceSSH  = "ssh"
	ARPSourceSNMP = "snmp"
)

// Config - The config.
type Config struct {
	GatewayAddress        string  `json:"gateway_address" yaml:"gateway_address"`
	GatewayPort           uint    `json:"gateway_port" yaml:"gateway_port"`
	GatewayUsername       string  `json:"gateway_username" yaml:"gateway_username"` // Optional, defaults to the device credential
	GatewayPassword       string  `json:"gateway_password" yaml:"gateway_password"` // Optional, defaults to the device credential
	SSHPort               uint    `json:"ssh_port" yaml:"ssh_port"`
	ConnectTimeoutSeconds float64 `json:"connect_timeout" yaml:"connect_timeout"`
	CommandTimeoutSeconds float64 `json:"command_timeout" yaml:"command_timeout"` // Zero disables
	LegacySSHAlgorithms   bool    `json:"legacy_ssh_algorithms" yaml:"legacy_ssh_algorithms"`
	OutputPath            string  `json:"output_path" yaml:"output_path"`
	ARPSource             string  `json:"arp_source" yaml:"arp_source"`
	SNMPCommunity         string  `json:"snmp_community" yaml:"snmp_community"`
	SNMPPort              uint    `json:"snmp_port" yaml:"snmp_port"`
	HTTPEndpoint          string  `json:"http_endpoint" yaml:"http_endpoint"`       // Empty disables
	MetricsTextfile       string  `json:"metrics_textfile" yaml:"metrics_textfile"` // Empty disables
	InfluxDBURL           string  `json:"influxdb_url" yaml:"influxdb_url"`         // Empty disables
	InfluxDBToken         string  `json:"influxdb_token" yaml:"influxdb_token"`
	InfluxDBOrg           string  `json:"influxdb_org" yaml:"influxdb_org"`
	InfluxDBBucket        string  `json:"influxdb_bucket" yaml:"influxdb_bucket"`
}

// ConnectTimeout - Bound for TCP connect, SSH handshake, authentication and prompt discovery.
func (config Config) ConnectTimeout() time.Duration {
	return secondsToDuration(config.ConnectTimeoutSeconds)
}

// CommandTimeout - Bound for a single command on an open session. Zero means unbounded.
func (config Config) CommandTimeout() time.Duration {
	return secondsToDuration(config.CommandTimeoutSeconds)
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Validate - Check the config for values that can't work.
func (config Config) Validate() error {
	if config.GatewayAddress == "" {
		return fmt.Errorf("gateway address missing")
	}
	if config.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("non-positive connect timeout not allowed")
	}
	if config.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("negative command timeout not allowed")
	}
	if config.OutputPath == "" {
		return fmt.Errorf("output path missing")
	}
	switch config.ARPSource {
	case ARPSourceSSH:
	case ARPSourceSNMP:
		if config.SNMPCommunity == "" {
			return fmt.Errorf("SNMP community missing for ARP source %q", ARPSourceSNMP)
		}
		if config.SNMPPort > 65535 {
			return fmt.Errorf("SNMP port out of range: %v", config.SNMPPort)
		}
	default:
		return fmt.Errorf("unknown ARP source: %q", config.ARPSource)
	}
	if config.InfluxDBURL != "" && (config.InfluxDBOrg == "" || config.InfluxDBBucket == "") {
		return fmt.Errorf("InfluxDB org and bucket required when InfluxDB URL is set")
	}
	return nil
}

// LoadConfig - Load configuration file into the global config. Defaults to defaults if path is empty.
// JSON and YAML are supported, chosen by file extension.
func LoadConfig(path string) bool {
	if path != "" {
		log.WithFields(log.Fields{
			"config_path": path,
		}).Info("Loading config")

		var ok bool
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			ok = util.ParseYAMLFile(&GlobalConfig, path)
		default:
			ok = util.ParseJSONFile(&GlobalConfig, path)
		}
		if !ok {
			return false
		}
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.WithError(err).Error("Invalid config")
		return false
	}

	return true
}
