package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

// machineIDFiles are the host identifier sources, in preference order.
var machineIDFiles = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// MachineID returns a host identifier stable across process restarts. It
// prefers the systemd machine id, falling back to a hash of the hostname on
// hosts that have neither id file.
func MachineID() string {
	for _, path := range machineIDFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}

	sum := sha256.Sum256([]byte(hostname))
	return hex.EncodeToString(sum[:16])
}
