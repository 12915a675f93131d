package utils

import "strings"

// AttachHexPrefix takes a hex string and returns it with a "0x" prefix, adding one only if it is not yet present.
func AttachHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") {
		return s
	}
	return "0x" + s
}
