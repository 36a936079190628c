package common

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Required credential source columns.
const (
	CredentialFieldAddress  = "ipaddr"
	CredentialFieldUsername = "username"
	CredentialFieldPassword = "password"
)

// CredentialExample - Expected credential source shape with two example rows.
const CredentialExample = "ipaddr,username,password\n" +
	"192.168.50.14,admin,cisco\n" +
	"10.43.20.21,admin,cisco\n"

// ErrCredentialSourceMalformed - The credential source header is missing required fields.
var ErrCredentialSourceMalformed = errors.New("invalid header in CSV file")

// LoadCredentials - Load device credentials from a CSV file.
func LoadCredentials(path string) ([]DeviceCredential, error) {
	log.WithFields(log.Fields{
		"credentials_path": path,
	}).Trace("Loading credentials")

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	defer file.Close()

	credentials, err := ParseCredentials(file)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"credentials_path": path,
		"credential_count": len(credentials),
	}).Info("Loaded credentials")

	return credentials, nil
}

// ParseCredentials - Parse CSV with a header naming ipaddr, username and password, in any order.
// Only the header shape is validated; row contents are taken as-is.
func ParseCredentials(reader io.Reader) ([]DeviceCredential, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrCredentialSourceMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials header: %w", err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, found := columns[name]; !found {
			columns[name] = i
		}
	}
	var missing []string
	for _, field := range []string{CredentialFieldAddress, CredentialFieldUsername, CredentialFieldPassword} {
		if _, found := columns[field]; !found {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v", ErrCredentialSourceMalformed, strings.Join(missing, ", "))
	}

	// Passwords are taken verbatim, surrounding spaces may be part of them
	column := func(record []string, field string) string {
		index := columns[field]
		if index >= len(record) {
			return ""
		}
		if field == CredentialFieldPassword {
			return record[index]
		}
		return strings.TrimSpace(record[index])
	}

	var credentials []DeviceCredential
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		credentials = append(credentials, DeviceCredential{
			Address:  column(record, CredentialFieldAddress),
			Username: column(record, CredentialFieldUsername),
			Password: column(record, CredentialFieldPassword),
		})
	}

	return credentials, nil
}

func isBlankRecord(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
