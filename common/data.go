package common

import (
	"strings"
	"time"
)

// Status - Terminal state of one device collection.
type Status string

// Device collection statuses. The set is closed, every summary carries exactly one of these.
const (
	StatusSuccess            Status = "Success"
	StatusUnreachable        Status = "Unreachable"
	StatusAuthFailed         Status = "AuthFailed"
	StatusExtractionError    Status = "ExtractionError"
	StatusGatewayUnreachable Status = "GatewayUnreachable"
)

// Statuses - All statuses, in report order.
var Statuses = []Status{
	StatusSuccess,
	StatusUnreachable,
	StatusAuthFailed,
	StatusExtractionError,
	StatusGatewayUnreachable,
}

// Description - Operator-facing text for the status, as shown in the report.
func (status Status) Description() string {
	switch status {
	case StatusSuccess:
		return "Success"
	case StatusUnreachable:
		return "Fail Device Unreachable/SSH not enabled"
	case StatusAuthFailed:
		return "Fail Authentication"
	case StatusExtractionError:
		return "Regex match error. Missing info for device"
	case StatusGatewayUnreachable:
		return "Fail Gateway Unreachable"
	}
	return string(status)
}

// DeviceCredential - Address and login for one inventory target.
type DeviceCredential struct {
	Address  string
	Username string
	Password string
}

// DeviceSummary - Identity of one device plus the outcome of collecting it.
type DeviceSummary struct {
	ProductID     string
	SerialNumber  string
	FirmwareImage string
	Address       string
	Hostname      string
	Status        Status
}

// MACBinding - A MAC address learned on an interface and the IP address(es) it resolved to.
// IP is empty when the gateway had no entry. Multiple addresses are space separated.
type MACBinding struct {
	MAC string
	IP  string
}

// InterfaceRecord - One row of a device's interface table.
// Built once after MAC extraction and resolution, never modified afterwards.
type InterfaceRecord struct {
	Name        string
	Description string
	LinkStatus  string
	VLAN        string
	Bindings    []MACBinding
	Resolved    bool // False when resolution was skipped, e.g. for trunks
}

// NewInterfaceRecord - Build a record, copying the bindings so the caller can't alias them.
func NewInterfaceRecord(name, description, linkStatus, vlan string, bindings []MACBinding, resolved bool) InterfaceRecord {
	return InterfaceRecord{
		Name:        name,
		Description: description,
		LinkStatus:  linkStatus,
		VLAN:        vlan,
		Bindings:    append([]MACBinding(nil), bindings...),
		Resolved:    resolved,
	}
}

// MACList - Comma separated MAC addresses, in table order.
func (record InterfaceRecord) MACList() string {
	macs := make([]string, len(record.Bindings))
	for i, binding := range record.Bindings {
		macs[i] = binding.MAC
	}
	return strings.Join(macs, ",")
}

// IPList - Comma separated IP addresses, positionally aligned with MACList.
// Empty entirely if resolution was skipped.
func (record InterfaceRecord) IPList() string {
	if !record.Resolved {
		return ""
	}
	ips := make([]string, len(record.Bindings))
	for i, binding := range record.Bindings {
		ips[i] = binding.IP
	}
	return strings.Join(ips, ",")
}

// CollectionOutcome - Result of collecting a single device.
// Hostname is only set for successful collections and is the key of the interface table.
type CollectionOutcome struct {
	Summary    DeviceSummary
	Interfaces []InterfaceRecord
	Hostname   string
	StartTime  time.Time
	Duration   time.Duration
}

// DeviceTable - Interface table of one successfully collected device.
type DeviceTable struct {
	Hostname   string
	Address    string
	Interfaces []InterfaceRecord
}
