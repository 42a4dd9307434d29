// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Openbeamline Authors

package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// ErrBadReply is returned when the motion controller answers with something
// other than the expected acknowledgement or position line. Callers treat
// the value as unknown rather than propagating garbage into the record.
var ErrBadReply = errors.New("malformed reply from motion controller")

// Serial drives an ASCII motion controller over a serial line:
//
//	MV <target> <speed>   ->  "OK" | "ERR <reason>"
//	POS?                  ->  "<float>"
//
// One command is in flight at a time; the record's motion dispatch already
// runs off the field-update critical path.
type Serial struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	rd   *bufio.Reader
}

// OpenSerial opens the motion controller port at 8N1.
func OpenSerial(portName string, baudRate int) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return newSerial(port), nil
}

// newSerial wraps an already-open stream; split out for tests.
func newSerial(port io.ReadWriteCloser) *Serial {
	return &Serial{port: port, rd: bufio.NewReader(port)}
}

// Move commands the controller to the raw target at the given raw speed
// and waits for its acknowledgement.
func (s *Serial) Move(ctx context.Context, target, speed float64) error {
	reply, err := s.transact(ctx, fmt.Sprintf("MV %g %g\r\n", target, speed))
	if err != nil {
		return err
	}
	if reply == "OK" {
		return nil
	}
	if reason, ok := strings.CutPrefix(reply, "ERR "); ok {
		return fmt.Errorf("move rejected by controller: %s", reason)
	}
	return fmt.Errorf("%w: %q", ErrBadReply, reply)
}

// RawPosition queries the current raw position.
func (s *Serial) RawPosition(ctx context.Context) (float64, error) {
	reply, err := s.transact(ctx, "POS?\r\n")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadReply, reply)
	}
	return v, nil
}

// Close releases the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

// transact writes one command line and reads one reply line.
func (s *Serial) transact(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := s.port.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("write to controller: %w", err)
	}
	line, err := s.rd.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read from controller: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
