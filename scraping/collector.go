package scraping

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/extract"
	"dev.hon.one/niobium/session"
)

var ciscoSerialRegex = regexp.MustCompile(`Processor\sboard\sID\s(\S+)`)
var ciscoModelRegex = regexp.MustCompile(`[Cc]isco\s(\S+).*memory.`)
var ciscoImageRegex = regexp.MustCompile(`System\simage\sfile\sis\s"([^ "]+)`)
var ciscoHostnameRegex = regexp.MustCompile(`(\S+)\suptime`)

const (
	commandShowVersion    = "show version"
	commandShowInterfaces = "show interfaces status"
	commandShowMACTable   = "show mac address-table interface %v"
)

// VLAN column value of trunk ports in "show interfaces status"
const trunkVLAN = "trunk"

var interfaceTemplate = extract.MustLookup(extract.InterfaceStatus)
var macTemplate = extract.MustLookup(extract.MACTable)
var arpTemplate = extract.MustLookup(extract.ARPTable)

// Collector - Collects identity and interface table of Cisco IOS switches.
type Collector struct {
	Dialer   session.Dialer
	Port     uint      // SSH port of the devices, 0 for default
	Gateway  ARPSource // Opened lazily, at most once per device
	Progress io.Writer // Operator progress lines, may be nil
}

type extractionError struct {
	field string
}

func (err *extractionError) Error() string {
	return fmt.Sprintf("%v not found in %q output", err.field, commandShowVersion)
}

type gatewayError struct {
	err error
}

func (err *gatewayError) Error() string {
	return fmt.Sprintf("gateway: %v", err.err)
}

func (err *gatewayError) Unwrap() error {
	return err.err
}

// Collect - Collect one device. Classified failures (unreachable, authentication, extraction, gateway)
// are reported in the outcome. Any other error is returned and the outcome should be discarded.
func (collector *Collector) Collect(ctx context.Context, credential common.DeviceCredential) (common.CollectionOutcome, error) {
	startTime := time.Now()
	outcome := common.CollectionOutcome{
		Summary:   common.DeviceSummary{Address: credential.Address},
		StartTime: startTime,
	}
	collector.progressf("Connecting to switch %v\n", credential.Address)

	interfaces, err := collector.collect(ctx, credential, &outcome.Summary)
	outcome.Duration = time.Since(startTime)
	if err != nil {
		status, classified := classifyFailure(err)
		if !classified {
			return outcome, err
		}
		logDeviceFailure(credential.Address, string(status), err)
		if status != common.StatusGatewayUnreachable {
			outcome.Summary = common.DeviceSummary{Address: credential.Address}
		}
		outcome.Summary.Status = status
		collector.progressf("%v  %v\n", credential.Address, status.Description())
		return outcome, nil
	}

	outcome.Summary.Status = common.StatusSuccess
	outcome.Interfaces = interfaces
	outcome.Hostname = outcome.Summary.Hostname
	log.WithFields(log.Fields{
		"device":     credential.Address,
		"hostname":   outcome.Hostname,
		"interfaces": len(interfaces),
		"duration":   outcome.Duration,
	}).Debug("Device collected")
	collector.progressf("Collection successful from switch %v\n", credential.Address)
	return outcome, nil
}

// Fills in the summary as far as it gets.
func (collector *Collector) collect(ctx context.Context, credential common.DeviceCredential, summary *common.DeviceSummary) ([]common.InterfaceRecord, error) {
	device, err := collector.Dialer.Dial(ctx, session.Target{
		Address:  credential.Address,
		Port:     collector.Port,
		Username: credential.Username,
		Password: credential.Password,
	})
	if err != nil {
		return nil, err
	}
	defer device.Close()

	// Identity
	versionOutput, err := device.Run(ctx, commandShowVersion)
	if err != nil {
		return nil, err
	}
	if err := parseVersion(versionOutput, summary); err != nil {
		return nil, err
	}

	// Interfaces
	interfaceOutput, err := device.Run(ctx, commandShowInterfaces)
	if err != nil {
		return nil, err
	}

	var resolver ARPResolver
	defer func() {
		if resolver != nil {
			resolver.Close()
		}
	}()

	var records []common.InterfaceRecord
	for row := range extract.Extract(interfaceTemplate, interfaceOutput) {
		port := row.Get("port")
		macOutput, err := device.Run(ctx, fmt.Sprintf(commandShowMACTable, port))
		if err != nil {
			return nil, err
		}
		macRows := extract.Extract(macTemplate, macOutput)
		macs := extract.Column(macRows, "mac")
		if log.IsLevelEnabled(log.TraceLevel) {
			log.WithFields(log.Fields{
				"device":    credential.Address,
				"port":      port,
				"mac_table": extract.Join(macRows, " ", ", "),
			}).Trace("Extracted MAC table")
		}
		bindings := make([]common.MACBinding, len(macs))
		for i, mac := range macs {
			bindings[i].MAC = mac
		}

		// Trunks carry other switches' hosts, resolving them would be misleading
		vlan := row.Get("vlan")
		if vlan == trunkVLAN {
			records = append(records, common.NewInterfaceRecord(port, row.Get("name"), row.Get("status"), vlan, bindings, false))
			continue
		}

		for i := range bindings {
			if resolver == nil {
				resolver, err = collector.Gateway.Open(ctx, credential)
				if err != nil {
					resolver = nil
					return nil, &gatewayError{err: err}
				}
			}
			addresses, err := resolver.Resolve(ctx, bindings[i].MAC)
			if err != nil {
				return nil, &gatewayError{err: err}
			}
			bindings[i].IP = strings.Join(addresses, " ")
		}
		records = append(records, common.NewInterfaceRecord(port, row.Get("name"), row.Get("status"), vlan, bindings, true))
	}

	log.WithFields(log.Fields{
		"device":     credential.Address,
		"interfaces": len(records),
	}).Trace("Collected interface table")
	return records, nil
}

// All four identity fields must be found, the summary is untouched otherwise.
func parseVersion(output string, summary *common.DeviceSummary) error {
	fields := []struct {
		name  string
		regex *regexp.Regexp
		value string
	}{
		{name: "serial number", regex: ciscoSerialRegex},
		{name: "product ID", regex: ciscoModelRegex},
		{name: "system image", regex: ciscoImageRegex},
		{name: "hostname", regex: ciscoHostnameRegex},
	}
	for i := range fields {
		result := fields[i].regex.FindStringSubmatch(output)
		if result == nil {
			return &extractionError{field: fields[i].name}
		}
		fields[i].value = result[1]
	}

	summary.SerialNumber = fields[0].value
	summary.ProductID = fields[1].value
	summary.FirmwareImage = fields[2].value
	summary.Hostname = fields[3].value
	return nil
}

// Map a collection failure to a device status. False if the failure is not one a device can cause.
func classifyFailure(err error) (common.Status, bool) {
	var gatewayErr *gatewayError
	if errors.As(err, &gatewayErr) {
		return common.StatusGatewayUnreachable, true
	}
	var extractionErr *extractionError
	if errors.As(err, &extractionErr) {
		return common.StatusExtractionError, true
	}
	kind, ok := session.KindOf(err)
	if !ok {
		return "", false
	}
	switch kind {
	case session.KindAuthentication:
		return common.StatusAuthFailed, true
	case session.KindTimeout, session.KindTransport:
		return common.StatusUnreachable, true
	}
	return "", false
}

func logDeviceFailure(address string, message string, err error) {
	log.WithError(err).WithFields(log.Fields{
		"device": address,
	}).Tracef("Device error: %v", message)
}

func (collector *Collector) progressf(format string, args ...interface{}) {
	if collector.Progress == nil {
		return
	}
	fmt.Fprintf(collector.Progress, format, args...)
}
