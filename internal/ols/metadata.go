package ols

import (
	"fmt"
	"io"
)

// Metadata is the decoded result of the CMD_METADATA TLV stream. Fields
// left zero were simply never sent by the device.
type Metadata struct {
	DeviceName      string
	Version         string
	MaxSamples      uint32
	MaxSamplerateHz uint32
	ProtocolVersion uint32
	NumProbes       int
}

// readMetadata decodes the CMD_METADATA response from r.
//
// The original firmware protocol terminates the stream with a 0x00 key and
// otherwise runs until the device stops talking; parsing that literally
// means an unresponsive or malfunctioning device can hang the reader
// forever. This reimplementation caps the loop at maxMetadataTokens
// entries and returns whatever was decoded so far if the cap is hit,
// rather than looping until the device sends a terminator.
func readMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	var version []string

	for i := 0; i < maxMetadataTokens; i++ {
		key, err := readByte(r)
		if err != nil {
			return m, fmt.Errorf("ols: read metadata key: %w", err)
		}
		if key == 0x00 {
			break
		}

		kind := key >> 5
		token := key & 0x1f

		switch kind {
		case 0:
			s, err := readCString(r)
			if err != nil {
				return m, fmt.Errorf("ols: read metadata string (key 0x%02x): %w", key, err)
			}
			switch token {
			case 0x01:
				m.DeviceName += s
			case 0x02:
				version = append(version, "FPGA version "+s)
			case 0x03:
				version = append(version, "Ancillary version "+s)
			}
		case 1:
			v, err := readUint32BE(r)
			if err != nil {
				return m, fmt.Errorf("ols: read metadata uint32 (key 0x%02x): %w", key, err)
			}
			switch token {
			case 0x00:
				m.NumProbes = int(v)
			case 0x01:
				m.MaxSamples = v
			case 0x03:
				m.MaxSamplerateHz = v
			case 0x04:
				m.ProtocolVersion = v
			}
		case 2:
			v, err := readByte(r)
			if err != nil {
				return m, fmt.Errorf("ols: read metadata byte (key 0x%02x): %w", key, err)
			}
			switch token {
			case 0x00:
				m.NumProbes = int(v)
			case 0x01:
				m.ProtocolVersion = uint32(v)
			}
		default:
			// unknown TLV type: nothing more can be safely skipped without
			// knowing its length, so stop here as the real driver effectively
			// does by breaking out on an unreadable stream.
			i = maxMetadataTokens
		}
	}

	for _, v := range version {
		if m.Version != "" {
			m.Version += ", "
		}
		m.Version += v
	}

	return m, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readCString(r io.Reader) (string, error) {
	var out []byte
	for {
		b, err := readByte(r)
		if err != nil {
			return "", err
		}
		if b == 0x00 {
			break
		}
		out = append(out, b)
	}
	return string(out), nil
}

// readUint32BE reads 4 bytes as the firmware sends them (most significant
// byte first), mirroring ols.c's raw-read-then-reverse32 round trip.
func readUint32BE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}
