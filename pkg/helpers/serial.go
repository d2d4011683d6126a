// ComicSync Core
// Copyright (c) 2025 The ComicSync Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of ComicSync Core.
//
// ComicSync Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// ComicSync Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with ComicSync Core.  If not, see <http://www.gnu.org/licenses/>.

package helpers

import (
	"fmt"
	"runtime"
	"strings"

	"go.bug.st/serial"
)

// GetSerialDeviceList returns candidate actuator ports, filtered per OS to
// USB serial adapters. The configuration surface pairs this with a probe to
// present only usable devices.
func GetSerialDeviceList() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list: %w", err)
	}

	var prefixes []string
	switch runtime.GOOS {
	case "linux":
		prefixes = []string{"/dev/ttyUSB", "/dev/ttyACM"}
	case "darwin":
		prefixes = []string{"/dev/tty.usbserial", "/dev/tty.usbmodem"}
	case "windows":
		prefixes = []string{"COM"}
	default:
		return ports, nil
	}

	devices := make([]string, 0, len(ports))
	for _, port := range ports {
		for _, prefix := range prefixes {
			if strings.HasPrefix(port, prefix) {
				devices = append(devices, port)
				break
			}
		}
	}
	return devices, nil
}
