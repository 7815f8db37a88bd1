// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/dyp-sonar/internal/frame"
	"github.com/tamzrod/dyp-sonar/internal/transport"
)

// Transactor runs one request/response exchange on the bus.
type Transactor interface {
	Execute(req []byte, want int, timeout time.Duration) ([]byte, error)
}

// transporter adapts a Transactor to modbus.Transporter.
// The expected response length is derived from the request.
type transporter struct {
	tx      Transactor
	timeout time.Duration
}

func (t *transporter) Send(aduRequest []byte) ([]byte, error) {
	want, err := frame.ResponseSize(aduRequest)
	if err != nil {
		return nil, err
	}
	resp, err := t.tx.Execute(aduRequest, want, t.timeout)

	// Exception replies are shorter than the normal answer and end in a
	// timeout; hand them to the client so they surface as *modbus.ModbusError.
	if err != nil && transport.IsTimeout(err) && len(resp) >= 5 && resp[1]&0x80 != 0 {
		return resp[:5], nil
	}
	return resp, err
}

// Client is a generic holding-register client for one sensor address,
// built on goburrow/modbus over the shared serial session.
type Client struct {
	addr   uint8
	client modbus.Client
}

type Config struct {
	Address uint8
	Timeout time.Duration
}

func NewClient(cfg Config, tx Transactor) (*Client, error) {
	if tx == nil {
		return nil, errors.New("writer modbus: transactor required")
	}
	if cfg.Address < frame.AddressMin || cfg.Address > frame.AddressMax {
		return nil, fmt.Errorf("writer modbus: address %d outside 1..247", cfg.Address)
	}
	if cfg.Timeout <= 0 {
		return nil, errors.New("writer modbus: timeout must be > 0")
	}

	return &Client{
		addr: cfg.Address,
		client: modbus.NewClient2(
			&frame.Packager{Address: cfg.Address},
			&transporter{tx: tx, timeout: cfg.Timeout},
		),
	}, nil
}

func (c *Client) Address() uint8 { return c.addr }

// ReadRegisters reads qty holding registers starting at addr.
func (c *Client) ReadRegisters(addr, qty uint16) ([]uint16, error) {
	b, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(b) != int(qty)*2 {
		return nil, fmt.Errorf("writer modbus: got %d data bytes, want %d", len(b), int(qty)*2)
	}
	return unpackRegisters(b), nil
}

// WriteRegister writes one holding register. goburrow checks the echo.
func (c *Client) WriteRegister(addr, value uint16) error {
	_, err := c.client.WriteSingleRegister(addr, value)
	return err
}

// Registers is the sensor's configuration block as read back.
type Registers struct {
	Address    uint16
	ConfigMode uint16
	Angle      uint16
	Denoise    uint16
}

// Inspect reads each configuration register with its own request.
// Registers the sensor does not answer for are reported in the error.
func (c *Client) Inspect() (Registers, error) {
	var r Registers
	var errs []error

	read := func(reg uint16, dst *uint16) {
		v, err := c.ReadRegisters(reg, 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("reg 0x%04X: %w", reg, err))
			return
		}
		*dst = v[0]
	}

	read(frame.RegAddress, &r.Address)
	read(frame.RegConfigMode, &r.ConfigMode)
	read(frame.RegAngle, &r.Angle)
	read(frame.RegDenoise, &r.Denoise)

	return r, errors.Join(errs...)
}

func unpackRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out
}
