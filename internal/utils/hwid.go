package utils

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// HWID identifies this machine without exposing the raw machine id.
var HWID = deviceID()

func deviceID() string {
	if id, err := machineid.ProtectedID("skywriter"); err == nil && id != "" {
		if len(id) > 16 {
			id = id[:16]
		}
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "unknown"
}
