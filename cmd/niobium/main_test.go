package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
	"github.com/xuri/excelize/v2"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/scraping"
	"dev.hon.one/niobium/session"
)

func withGlobalConfig(t *testing.T) {
	t.Helper()
	saved := common.GlobalConfig
	t.Cleanup(func() { common.GlobalConfig = saved })
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	command := newCommand(&stdout)
	command.ExitErrHandler = func(context.Context, *cli.Command, error) {}
	err := command.Run(context.Background(), append([]string{"niobium"}, args...))
	return stdout.String(), err
}

func TestUsage(t *testing.T) {
	for _, args := range [][]string{{}, {"a.csv", "b.csv"}} {
		output, err := runCommand(t, args...)
		require.NoError(t, err)
		assert.Contains(t, output, "The CSV should be in the format below")
		assert.Contains(t, output, "ipaddr,username,password\n192.168.50.14,admin,cisco\n10.43.20.21,admin,cisco\n")
	}
}

func TestMalformedCredentials(t *testing.T) {
	withGlobalConfig(t)
	path := filepath.Join(t.TempDir(), "devices.csv")
	require.NoError(t, os.WriteFile(path, []byte("ip,user,pass\n10.0.0.5,admin,cisco\n"), 0o600))
	common.GlobalConfig.OutputPath = filepath.Join(t.TempDir(), "out.xlsx")

	output, err := runCommand(t, path)
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, output, "Invalid header in CSV file")
	assert.NotContains(t, output, "Connecting to switch")
	assert.NoFileExists(t, common.GlobalConfig.OutputPath)
}

func TestCollectUnreachableDevice(t *testing.T) {
	withGlobalConfig(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := fmt.Sprintf("ssh_port: %d\nconnect_timeout: 2\n", port)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	csvPath := filepath.Join(dir, "devices.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("ipaddr,username,password\n127.0.0.1,admin,cisco\n"), 0o600))
	outputPath := filepath.Join(dir, "inventory.xlsx")

	output, err := runCommand(t, "--config", configPath, "--output", outputPath, "--gateway", "127.0.0.1", csvPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Connecting to switch 127.0.0.1\n")
	assert.Contains(t, output, "127.0.0.1  Fail Device Unreachable/SSH not enabled\n")
	assert.Contains(t, output, "Review collected information in "+outputPath)
	assert.Contains(t, output, "Elapsed time: ")

	file, err := excelize.OpenFile(outputPath)
	require.NoError(t, err)
	defer file.Close()
	rows, err := file.GetRows("Devices")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "", "", "", "127.0.0.1", "", "Fail Device Unreachable/SSH not enabled"}, rows[1])
	assert.Equal(t, []string{"Devices"}, file.GetSheetList())
}

func TestNewARPSource(t *testing.T) {
	config := common.GlobalConfig
	config.GatewayAddress = "10.0.0.1"
	dialer := session.SSHDialer{}

	source, ok := newARPSource(config, dialer).(*scraping.SSHARPSource)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", source.Address)
	assert.Equal(t, uint(22), source.Port)

	config.ARPSource = common.ARPSourceSNMP
	snmpSource, ok := newARPSource(config, dialer).(*scraping.SNMPARPSource)
	require.True(t, ok)
	assert.Equal(t, uint16(161), snmpSource.Port)
	assert.Equal(t, "public", snmpSource.Community)
}
