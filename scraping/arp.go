package scraping

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"dev.hon.one/niobium/common"
	"dev.hon.one/niobium/extract"
	"dev.hon.one/niobium/session"
)

const commandShowARP = "show ip arp | include %v"

// ARPSource - Opens MAC to IP resolvers on the gateway.
type ARPSource interface {
	// Open - Open a resolver for one device's resolve phase. The device credential is the fallback gateway login.
	Open(ctx context.Context, credential common.DeviceCredential) (ARPResolver, error)
}

// ARPResolver - Resolves MAC addresses (Cisco dotted form) to IP addresses.
type ARPResolver interface {
	// Resolve - All IP addresses the gateway has for the MAC. Empty if none.
	Resolve(ctx context.Context, mac string) ([]string, error)
	Close() error
}

// SSHARPSource - Resolves through "show ip arp" on the gateway over an SSH session.
type SSHARPSource struct {
	Dialer   session.Dialer
	Address  string
	Port     uint
	Username string // Optional
	Password string // Optional
}

// Open - Log in to the gateway.
func (source *SSHARPSource) Open(ctx context.Context, credential common.DeviceCredential) (ARPResolver, error) {
	target := session.Target{
		Address:  source.Address,
		Port:     source.Port,
		Username: source.Username,
		Password: source.Password,
	}
	if target.Username == "" {
		target.Username = credential.Username
		target.Password = credential.Password
	}

	log.WithFields(log.Fields{
		"device":  credential.Address,
		"gateway": source.Address,
	}).Trace("Connecting to gateway")
	gatewaySession, err := source.Dialer.Dial(ctx, target)
	if err != nil {
		return nil, err
	}
	return &sshARPResolver{session: gatewaySession}, nil
}

type sshARPResolver struct {
	session session.Session
}

func (resolver *sshARPResolver) Resolve(ctx context.Context, mac string) ([]string, error) {
	output, err := resolver.session.Run(ctx, fmt.Sprintf(commandShowARP, mac))
	if err != nil {
		return nil, err
	}
	// "include" is a substring match, so keep only rows for this exact MAC
	var addresses []string
	for tuple := range extract.Extract(arpTemplate, output) {
		if strings.EqualFold(tuple.Get("mac"), mac) {
			addresses = append(addresses, tuple.Get("address"))
		}
	}
	log.WithFields(log.Fields{
		"gateway":   resolver.session.Address(),
		"mac":       mac,
		"addresses": addresses,
	}).Trace("Resolved MAC address")
	return addresses, nil
}

func (resolver *sshARPResolver) Close() error {
	return resolver.session.Close()
}
