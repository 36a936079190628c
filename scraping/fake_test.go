package scraping

import (
	"context"
	"fmt"
	"os"
	"sync"

	"dev.hon.one/niobium/session"
)

// Scripted device, commands map to canned output.
type fakeDevice struct {
	outputs  map[string]string
	failures map[string]error
	dialErr  error
}

type fakeDialer struct {
	mutex   sync.Mutex
	devices map[string]*fakeDevice
	dialed  []string
	open    int
	ran     []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{devices: make(map[string]*fakeDevice)}
}

func (dialer *fakeDialer) add(address string, device *fakeDevice) {
	dialer.devices[address] = device
}

func (dialer *fakeDialer) Dial(ctx context.Context, target session.Target) (session.Session, error) {
	dialer.mutex.Lock()
	defer dialer.mutex.Unlock()
	dialer.dialed = append(dialer.dialed, target.Address)
	device, found := dialer.devices[target.Address]
	if !found {
		return nil, &session.Error{Kind: session.KindTimeout, Address: target.Address, Op: "connect", Err: os.ErrDeadlineExceeded}
	}
	if device.dialErr != nil {
		return nil, device.dialErr
	}
	dialer.open++
	return &fakeSession{dialer: dialer, address: target.Address, device: device}, nil
}

func (dialer *fakeDialer) openSessions() int {
	dialer.mutex.Lock()
	defer dialer.mutex.Unlock()
	return dialer.open
}

type fakeSession struct {
	dialer  *fakeDialer
	address string
	device  *fakeDevice
	closed  bool
}

func (fake *fakeSession) Run(ctx context.Context, command string) (string, error) {
	fake.dialer.mutex.Lock()
	fake.dialer.ran = append(fake.dialer.ran, fake.address+": "+command)
	fake.dialer.mutex.Unlock()
	if fake.closed {
		return "", fmt.Errorf("session closed")
	}
	if err, found := fake.device.failures[command]; found {
		return "", err
	}
	return fake.device.outputs[command], nil
}

func (fake *fakeSession) Close() error {
	fake.dialer.mutex.Lock()
	defer fake.dialer.mutex.Unlock()
	if !fake.closed {
		fake.closed = true
		fake.dialer.open--
	}
	return nil
}

func (fake *fakeSession) Address() string {
	return fake.address
}

const fakeVersionOutput = `Cisco IOS Software, C2960X Software (C2960X-UNIVERSALK9-M), Version 15.2(7)E4, RELEASE SOFTWARE (fc2)
Technical Support: http://www.cisco.com/techsupport

ROM: Bootstrap program is C2960X boot loader
access-sw1 uptime is 12 weeks, 3 days, 4 hours, 11 minutes
System returned to ROM by power-on
System image file is "flash:c2960x-universalk9-mz.152-7.E4.bin"

cisco WS-C2960X-48FPD-L (APM86XXX) processor (revision D0) with 524288K bytes of memory.
Processor board ID FOC1234X0AB
Last reset from power-on`

const fakeInterfaceOutput = `Port      Name               Status       Vlan       Duplex  Speed Type
Gi1/0/1   desk 12            connected    20         a-full a-1000 10/100/1000BaseTX
Gi1/0/2                      notconnect   20           auto   auto 10/100/1000BaseTX
Gi1/0/48  uplink             connected    trunk      a-full a-1000 10/100/1000BaseTX`

func fakeMACOutput(port string, macs ...string) string {
	output := "          Mac Address Table\n-------------------------------------------\n\n" +
		"Vlan    Mac Address       Type        Ports\n----    -----------       --------    -----\n"
	for _, mac := range macs {
		output += fmt.Sprintf("  20    %v    DYNAMIC     %v\n", mac, port)
	}
	return output + fmt.Sprintf("Total Mac Addresses for this criterion: %d\n", len(macs))
}

func fakeARPOutput(entries ...[2]string) string {
	output := ""
	for _, entry := range entries {
		output += fmt.Sprintf("Internet  %v          3   %v  ARPA   Vlan20\n", entry[0], entry[1])
	}
	return output
}

// A healthy switch with one access port with two hosts, one empty port and one trunk.
func newFakeSwitch() *fakeDevice {
	return &fakeDevice{
		outputs: map[string]string{
			commandShowVersion:    fakeVersionOutput,
			commandShowInterfaces: fakeInterfaceOutput,
			"show mac address-table interface Gi1/0/1":  fakeMACOutput("Gi1/0/1", "0011.2233.4455", "0011.2233.4466"),
			"show mac address-table interface Gi1/0/2":  fakeMACOutput("Gi1/0/2"),
			"show mac address-table interface Gi1/0/48": fakeMACOutput("Gi1/0/48", "00aa.bbcc.0001", "00aa.bbcc.0002", "00aa.bbcc.0003"),
		},
	}
}

func newFakeGateway() *fakeDevice {
	return &fakeDevice{
		outputs: map[string]string{
			// Rows for other MACs must be ignored
			"show ip arp | include 0011.2233.4455": fakeARPOutput([2]string{"10.0.20.11", "0011.2233.4455"}, [2]string{"10.0.20.99", "0011.2233.4499"}),
			"show ip arp | include 0011.2233.4466": fakeARPOutput([2]string{"10.0.20.12", "0011.2233.4466"}, [2]string{"10.0.20.13", "0011.2233.4466"}),
		},
	}
}
