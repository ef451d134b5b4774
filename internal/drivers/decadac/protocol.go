// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package decadac drives the Harvard DecaDAC, a 20-channel rack DAC behind
// a serial-to-TCP bridge. The instrument echoes every command: responses
// have the form "<cmd><value>!", so writes are asks and the reply must be
// verified against the command that produced it.
package decadac

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrProtocol reports an unexpected response from the DAC.
	ErrProtocol = errors.New("decadac: protocol error")
	// ErrAddress reports an out-of-bounds memory address.
	ErrAddress = errors.New("decadac: invalid address")
)

// maxAddr is the highest documented DAC memory address (EEPROM id block).
const maxAddr = 1107296266

// codeSteps is the DAC resolution: codes run 0..65535, midrange 32768.
const codeSteps = 65535

// parseEcho strips the echoed command letter and the trailing '!' from a
// response, returning the value in between.
func parseEcho(resp string) (string, error) {
	resp = strings.TrimSpace(resp)
	if len(resp) < 2 || !strings.HasSuffix(resp, "!") {
		return "", fmt.Errorf("%w: unexpected terminator on response %q, should end with '!'", ErrProtocol, resp)
	}
	return resp[1 : len(resp)-1], nil
}

// parseEchoInt parses the numeric payload of an echoed response.
func parseEchoInt(resp string) (int64, error) {
	payload, err := parseEcho(resp)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: non-numeric payload in %q", ErrProtocol, resp)
	}
	return n, nil
}

// voltToCode converts a voltage to the DAC code for a channel range.
func voltToCode(volt, minVal, maxVal float64) (int64, error) {
	if volt < minVal || volt > maxVal {
		return 0, fmt.Errorf("cannot convert voltage %v V to a code, value out of range (%v V - %v V)", volt, minVal, maxVal)
	}
	frac := (volt - minVal) / (maxVal - minVal)
	code := int64(frac*codeSteps + 0.5)
	if code < 0 || code > codeSteps {
		return 0, fmt.Errorf("voltage %v V resulted in code %d, outside the allowed range", volt, code)
	}
	return code, nil
}

// codeToVolt converts a DAC code back to a voltage.
func codeToVolt(code int64, minVal, maxVal float64) float64 {
	frac := float64(code) / codeSteps
	return frac*(maxVal-minVal) + minVal
}

func checkAddr(addr int64) error {
	if addr < 0 || addr > maxAddr {
		return fmt.Errorf("%w: %d", ErrAddress, addr)
	}
	return nil
}
