package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxBulkLen mirrors the 512MB proto-max-bulk-len of redis
const maxBulkLen = 512 * 1024 * 1024

var (
	ErrInvalidEnding = errors.New("invalid line ending")
	ErrUnknownType   = errors.New("unknown RESP type")
	ErrInvalidLength = errors.New("invalid length")
)

// Decoder reads RESP values from a buffered stream
type Decoder struct {
	rd *bufio.Reader
}

// NewDecoder wraps the reader in a bufio.Reader
func NewDecoder(rd io.Reader) *Decoder {
	return &Decoder{rd: bufio.NewReader(rd)}
}

// Buffered returns the number of bytes that can be read from the current buffer
func (d *Decoder) Buffered() int {
	return d.rd.Buffered()
}

// Read decodes the next value. io.EOF is returned untouched when the stream ends between values
func (d *Decoder) Read() (Value, error) {
	prefix, err := d.rd.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch prefix {
	case TypeSimpleString, TypeError:
		line, err := d.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: prefix, String: line}, nil

	case TypeInteger:
		n, err := d.readInteger()
		if err != nil {
			return Value{}, err
		}
		return MakeInteger(n), nil

	case TypeBulkString:
		return d.readBulkString()

	case TypeArray:
		return d.readArray()
	}

	return Value{}, fmt.Errorf("%w: %q", ErrUnknownType, prefix)
}

// readLine reads up to CRLF and returns the line without it
func (d *Decoder) readLine() ([]byte, error) {
	line, err := d.rd.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, ErrInvalidEnding
	}

	return line[:len(line)-2], nil
}

func (d *Decoder) readInteger() (int64, error) {
	line, err := d.readLine()
	if err != nil {
		return 0, err
	}

	// integer cant be empty
	if len(line) == 0 {
		return 0, ErrInvalidLength
	}

	return strconv.ParseInt(string(line), 10, 64)
}

func (d *Decoder) readBulkString() (Value, error) {
	n, err := d.readInteger()
	if err != nil {
		return Value{}, err
	}

	if n == -1 {
		return MakeNilBulkString(), nil
	}

	if n < 0 || n > maxBulkLen {
		return Value{}, ErrInvalidLength
	}

	// payload + CRLF
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(d.rd, buf); err != nil {
		return Value{}, err
	}

	if buf[n] != '\r' || buf[n+1] != '\n' {
		return Value{}, ErrInvalidEnding
	}

	return Value{Type: TypeBulkString, String: buf[:n]}, nil
}

func (d *Decoder) readArray() (Value, error) {
	n, err := d.readInteger()
	if err != nil {
		return Value{}, err
	}

	if n == -1 {
		return MakeNilArray(), nil
	}

	if n < 0 || n > maxBulkLen {
		return Value{}, ErrInvalidLength
	}

	items := make([]Value, 0, min(n, 1024))
	for i := int64(0); i < n; i++ {
		v, err := d.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Value{}, io.ErrUnexpectedEOF
			}
			return Value{}, err
		}
		items = append(items, v)
	}

	return MakeArray(items), nil
}
