package common

// Global non-constant variables go here.

// GlobalConfig - Global singleton, holds defaults until a config file is loaded.
var GlobalConfig = Config{
	GatewayAddress:        "10.14.241.65",
	GatewayPort:           22,
	SSHPort:               22,
	ConnectTimeoutSeconds: 10.0,
	CommandTimeoutSeconds: 60.0,
	OutputPath:            "mac_table.xlsx",
	ARPSource:             ARPSourceSSH,
	SNMPCommunity:         "public",
	SNMPPort:              161,
	InfluxDBBucket:        "niobium",
}
