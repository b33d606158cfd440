package netmgr

import (
	"bytes"
	"strings"
)

const subsystemNet = "net"

// uevent is one kernel object event.
type uevent struct {
	action    string
	subsystem string
	env       map[string]string
}

// parseUEvent decodes "ACTION@DEVPATH\0KEY=VALUE\0...". Messages relayed by
// udevd carry a binary "libudev" header and are skipped.
func parseUEvent(data []byte) (uevent, bool) {
	if len(data) == 0 || bytes.HasPrefix(data, []byte("libudev")) {
		return uevent{}, false
	}

	parts := bytes.Split(data, []byte{0})
	action, _, ok := strings.Cut(string(parts[0]), "@")
	if !ok || action == "" {
		return uevent{}, false
	}

	ev := uevent{action: action, env: make(map[string]string, len(parts)-1)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.env[key] = value
	}
	ev.subsystem = ev.env["SUBSYSTEM"]
	return ev, true
}

// concerns reports whether ev is about network interface iface.
func (ev uevent) concerns(iface string) bool {
	return ev.subsystem == subsystemNet && ev.env["INTERFACE"] == iface
}
