// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package suproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Record limits enforced by ReadRequest.
const (
	MaxNameLength  = 20
	MaxValueLength = 256
)

// Well-known field names.
const (
	FieldUID     = "uid"
	FieldPID     = "pid"
	FieldToUID   = "to_uid"
	FieldCommand = "command"

	// FieldEOF terminates a record. Its value is ignored.
	FieldEOF = "eof"
)

// Verdict strings written back to the broker.
const (
	VerdictAllow = "socket:ALLOW"
	VerdictDeny  = "socket:DENY"
)

var (
	// ErrProtocol matches every *ProtocolError.
	ErrProtocol = errors.New("suproto: protocol error")

	// ErrMissingField is returned when a record ends without a uid.
	ErrMissingField = errors.New("suproto: missing required field")
)

// ProtocolError describes a malformed record.
type ProtocolError struct {
	Reason string

	// Err is the underlying read error, if any.
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("suproto: %s: %v", e.Reason, e.Err)
	}
	return "suproto: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProtocol) true for every ProtocolError.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// Field is one name/value pair of a record.
type Field struct {
	Name  string
	Value string
}

// Request is a decoded broker request.
type Request struct {
	UID     int
	PID     int
	ToUID   int
	Command string

	// Fields holds every received pair, including ones this package
	// does not interpret. A repeated name keeps the last value.
	Fields map[string]string
}

// ReadRequest decodes one record from r. Nothing partial is returned
// on error.
func ReadRequest(r io.Reader) (*Request, error) {
	fields := make(map[string]string)
	for {
		name, err := readChunk(r, MaxNameLength, "name")
		if err != nil {
			return nil, err
		}
		value, err := readChunk(r, MaxValueLength, "value")
		if err != nil {
			return nil, err
		}
		if name == FieldEOF {
			break
		}
		fields[name] = value
	}

	uidText, ok := fields[FieldUID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, FieldUID)
	}
	request := &Request{Fields: fields}
	var err error
	if request.UID, err = parseInt(FieldUID, uidText); err != nil {
		return nil, err
	}
	if text, ok := fields[FieldPID]; ok {
		if request.PID, err = parseInt(FieldPID, text); err != nil {
			return nil, err
		}
	}
	if text, ok := fields[FieldToUID]; ok {
		if request.ToUID, err = parseInt(FieldToUID, text); err != nil {
			return nil, err
		}
	}
	request.Command = fields[FieldCommand]
	return request, nil
}

func readChunk(r io.Reader, limit int, what string) (string, error) {
	var length int32
	if err := binary.Read(r, binary.NativeEndian, &length); err != nil {
		return "", &ProtocolError{Reason: "reading " + what + " length", Err: err}
	}
	if length < 0 || int(length) > limit {
		return "", &ProtocolError{Reason: fmt.Sprintf("%s length %d outside [0,%d]", what, length, limit)}
	}
	buffer := make([]byte, length)
	if _, err := io.ReadFull(r, buffer); err != nil {
		return "", &ProtocolError{Reason: "reading " + what, Err: err}
	}
	return string(buffer), nil
}

func parseInt(name, text string) (int, error) {
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, &ProtocolError{Reason: fmt.Sprintf("field %s is not an integer: %q", name, text)}
	}
	return value, nil
}

// WriteRequest encodes fields as one record and appends the eof
// terminator. It is the broker side of ReadRequest.
func WriteRequest(w io.Writer, fields []Field) error {
	for _, field := range fields {
		if field.Name == FieldEOF {
			return fmt.Errorf("suproto: field name %q is reserved", FieldEOF)
		}
		if err := writePair(w, field.Name, field.Value); err != nil {
			return err
		}
	}
	return writePair(w, FieldEOF, "")
}

func writePair(w io.Writer, name, value string) error {
	if len(name) > MaxNameLength {
		return fmt.Errorf("suproto: field name %q longer than %d bytes", name, MaxNameLength)
	}
	if len(value) > MaxValueLength {
		return fmt.Errorf("suproto: value of %s longer than %d bytes", name, MaxValueLength)
	}
	buffer := make([]byte, 0, 8+len(name)+len(value))
	buffer = binary.NativeEndian.AppendUint32(buffer, uint32(len(name)))
	buffer = append(buffer, name...)
	buffer = binary.NativeEndian.AppendUint32(buffer, uint32(len(value)))
	buffer = append(buffer, value...)
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("suproto: writing %s: %w", name, err)
	}
	return nil
}

// RequestFields builds the standard field list for a request, in the
// order the broker sends them.
func RequestFields(uid, pid, toUID int, command string) []Field {
	fields := []Field{
		{Name: FieldUID, Value: strconv.Itoa(uid)},
		{Name: FieldPID, Value: strconv.Itoa(pid)},
		{Name: FieldToUID, Value: strconv.Itoa(toUID)},
	}
	if command != "" {
		fields = append(fields, Field{Name: FieldCommand, Value: command})
	}
	return fields
}

// WriteVerdict writes the verdict string for allow.
func WriteVerdict(w io.Writer, allow bool) error {
	verdict := VerdictDeny
	if allow {
		verdict = VerdictAllow
	}
	if _, err := io.WriteString(w, verdict); err != nil {
		return fmt.Errorf("suproto: writing verdict: %w", err)
	}
	return nil
}

// ReadVerdict reads a verdict written by WriteVerdict until EOF. It is
// the broker side, used by tests and the CLI.
func ReadVerdict(r io.Reader) (bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(len(VerdictAllow)+len(VerdictDeny))))
	if err != nil {
		return false, fmt.Errorf("suproto: reading verdict: %w", err)
	}
	switch string(data) {
	case VerdictAllow:
		return true, nil
	case VerdictDeny:
		return false, nil
	}
	return false, &ProtocolError{Reason: fmt.Sprintf("unexpected verdict %q", data)}
}
