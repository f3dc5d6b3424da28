// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package r60afd1

// Checksum returns the low byte of the sum of data. On the wire it covers
// every byte from the start marker through the end of the payload.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
