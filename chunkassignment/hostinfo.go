package chunkassignment

import "os"

// HostInfoMethod selects how a rank's locality tag is determined.
// Ported from openPMD-api's host_info::Method; HOSTNAME is the only
// method implemented upstream as of this writing.
type HostInfoMethod int

const Hostname HostInfoMethod = 0

// ByMethod resolves the locality tag for this process using method.
func ByMethod(method HostInfoMethod) (string, error) {
	switch method {
	case Hostname:
		return os.Hostname()
	default:
		return os.Hostname()
	}
}
