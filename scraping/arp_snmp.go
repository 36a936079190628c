package scraping

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
)

// ipNetToMediaPhysAddress, indexed by ifIndex and IPv4 address
const oidIPNetToMediaPhysAddress = ".1.3.6.1.2.1.4.22.1.2"

// SNMPARPSource - Resolves through the gateway's ARP table over SNMPv2c.
// The table is walked once per Open and served from memory afterwards.
type SNMPARPSource struct {
	Address   string
	Port      uint16
	Community string
	Timeout   time.Duration
}

// Open - Walk the gateway's ARP table.
func (source *SNMPARPSource) Open(ctx context.Context, credential common.DeviceCredential) (ARPResolver, error) {
	client := &gosnmp.GoSNMP{
		Target:         source.Address,
		Port:           source.Port,
		Community:      source.Community,
		Version:        gosnmp.Version2c,
		Timeout:        source.Timeout,
		Retries:        1,
		MaxOids:        gosnmp.MaxOids,
		MaxRepetitions: 25,
		Context:        ctx,
	}
	if client.Port == 0 {
		client.Port = 161
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to SNMP agent %v: %w", source.Address, err)
	}
	defer client.Conn.Close()

	resolver := &snmpARPResolver{table: make(map[string][]string)}
	err := client.BulkWalk(oidIPNetToMediaPhysAddress, func(pdu gosnmp.SnmpPDU) error {
		mac, ip, ok := parseARPPDU(pdu)
		if !ok {
			return nil
		}
		resolver.table[mac] = append(resolver.table[mac], ip)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk ARP table of %v: %w", source.Address, err)
	}

	log.WithFields(log.Fields{
		"device":  credential.Address,
		"gateway": source.Address,
		"entries": len(resolver.table),
	}).Trace("Walked gateway ARP table")
	return resolver, nil
}

type snmpARPResolver struct {
	table map[string][]string
}

func (resolver *snmpARPResolver) Resolve(ctx context.Context, mac string) ([]string, error) {
	normalized, ok := normalizeMAC(mac)
	if !ok {
		return nil, nil
	}
	return append([]string(nil), resolver.table[normalized]...), nil
}

func (resolver *snmpARPResolver) Close() error {
	return nil
}

// Get the MAC (Cisco form) and IPv4 address from one ipNetToMediaPhysAddress entry.
func parseARPPDU(pdu gosnmp.SnmpPDU) (string, string, bool) {
	if pdu.Type != gosnmp.OctetString || !strings.HasPrefix(pdu.Name, oidIPNetToMediaPhysAddress+".") {
		return "", "", false
	}
	rawMAC, ok := pdu.Value.([]byte)
	if !ok || len(rawMAC) != 6 {
		return "", "", false
	}

	// Index is <ifIndex>.<a>.<b>.<c>.<d>
	index := strings.Split(strings.TrimPrefix(pdu.Name, oidIPNetToMediaPhysAddress+"."), ".")
	if len(index) != 5 {
		return "", "", false
	}
	ip := net.ParseIP(strings.Join(index[1:], "."))
	if ip == nil || ip.To4() == nil {
		return "", "", false
	}

	return formatCiscoMAC(net.HardwareAddr(rawMAC)), ip.String(), true
}

// Accepts colon, hyphen and dotted forms.
func normalizeMAC(raw string) (string, bool) {
	mac, err := net.ParseMAC(strings.TrimSpace(raw))
	if err != nil || len(mac) != 6 {
		return "", false
	}
	return formatCiscoMAC(mac), true
}

func formatCiscoMAC(mac net.HardwareAddr) string {
	return fmt.Sprintf("%02x%02x.%02x%02x.%02x%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
