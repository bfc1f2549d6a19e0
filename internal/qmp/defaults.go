package qmp

import (
	"fmt"
	"path/filepath"
)

// DefaultSocketDir is where Proxmox exposes per-VM QMP sockets
const DefaultSocketDir = "/var/run/qemu-server"

// SocketPath returns the QMP socket for a VM id, or socketPath when set
func SocketPath(vmid, socketPath string) string {
	if socketPath != "" {
		return socketPath
	}
	return filepath.Join(DefaultSocketDir, fmt.Sprintf("%s.qmp", vmid))
}
