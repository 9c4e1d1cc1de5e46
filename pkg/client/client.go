package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/dougsko/swrmeter/pkg/band"
	"github.com/dougsko/swrmeter/pkg/options"
	"github.com/dougsko/swrmeter/pkg/power"
	"github.com/dougsko/swrmeter/pkg/protocol"
	"github.com/dougsko/swrmeter/pkg/storage"
)

// SocketClient represents a client connection to the meter daemon
type SocketClient struct {
	socketPath string
	timeout    time.Duration
}

// Reading is the READING reply
type Reading struct {
	Reading      power.Reading `json:"reading"`
	SupplyVolts  float64       `json:"supply_volts"`
	Transmitting bool          `json:"transmitting"`
}

// BandInfo is the BAND reply
type BandInfo struct {
	Band  band.Band   `json:"band"`
	Bands []band.Band `json:"bands"`
}

// NewSocketClient creates a new socket client
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// SendCommand sends a command and returns the response
func (c *SocketClient) SendCommand(cmd string) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return nil, fmt.Errorf("send error: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return nil, fmt.Errorf("no response received")
	}

	var response protocol.Response
	if err := json.Unmarshal(scanner.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return &response, nil
}

// call sends cmd and fails on an error response
func (c *SocketClient) call(what, cmd string) (*protocol.Response, error) {
	resp, err := c.SendCommand(cmd)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s error: %s", what, resp.Error)
	}
	return resp, nil
}

// decode converts a generic response field into out
func decode(data map[string]interface{}, key string, out interface{}) error {
	v, ok := data[key]
	if !ok {
		return fmt.Errorf("%s not found in response", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return nil
}

// GetStatus gets the current daemon status
func (c *SocketClient) GetStatus() (*protocol.Status, error) {
	resp, err := c.call("status", protocol.CmdStatus)
	if err != nil {
		return nil, err
	}

	var status protocol.Status
	if err := decode(resp.Data, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetReading gets the latest derived reading
func (c *SocketClient) GetReading() (*Reading, error) {
	resp, err := c.call("reading", protocol.CmdReading)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(resp.Data)
	var r Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to parse reading: %w", err)
	}
	return &r, nil
}

// SetProfile selects an averaging profile by name
func (c *SocketClient) SetProfile(name string) error {
	_, err := c.call("profile", fmt.Sprintf("%s:%s", protocol.CmdProfile, name))
	return err
}

// GetBands returns the active band and the table
func (c *SocketClient) GetBands() (*BandInfo, error) {
	resp, err := c.call("band", protocol.CmdBand)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(resp.Data)
	var info BandInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse bands: %w", err)
	}
	return &info, nil
}

// SelectBand selects a band by name ("20") or "next"
func (c *SocketClient) SelectBand(name string) error {
	_, err := c.call("band", fmt.Sprintf("%s:%s", protocol.CmdBand, name))
	return err
}

// SetFrequency tunes the radio
func (c *SocketClient) SetFrequency(hz int64) error {
	_, err := c.call("frequency", fmt.Sprintf("%s:%d", protocol.CmdFrequency, hz))
	return err
}

// SetPower sets the radio RF power percent
func (c *SocketClient) SetPower(percent int) error {
	_, err := c.call("power", fmt.Sprintf("%s:%d", protocol.CmdPower, percent))
	return err
}

// Tune starts the radio's antenna tuner
func (c *SocketClient) Tune() error {
	_, err := c.call("tune", protocol.CmdTune)
	return err
}

// ResetHolds clears the peak and PEP holds
func (c *SocketClient) ResetHolds() error {
	_, err := c.call("reset", protocol.CmdReset)
	return err
}

// GetOptions returns the persisted options
func (c *SocketClient) GetOptions() (*options.Options, error) {
	resp, err := c.call("options", protocol.CmdOptions)
	if err != nil {
		return nil, err
	}

	var o options.Options
	if err := decode(resp.Data, "options", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SetOption changes one persisted option
func (c *SocketClient) SetOption(key, value string) error {
	_, err := c.call("options", fmt.Sprintf("%s:set:%s:%s", protocol.CmdOptions, key, value))
	return err
}

// GetHistory returns up to limit stored transmissions, newest first
func (c *SocketClient) GetHistory(limit int) ([]storage.Transmission, error) {
	cmd := protocol.CmdHistory
	if limit > 0 {
		cmd = fmt.Sprintf("%s:%d", protocol.CmdHistory, limit)
	}

	resp, err := c.call("history", cmd)
	if err != nil {
		return nil, err
	}

	var rows []storage.Transmission
	if err := decode(resp.Data, "transmissions", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GetRadioStatus gets the CI-V controller view of the radio
func (c *SocketClient) GetRadioStatus() (map[string]interface{}, error) {
	resp, err := c.call("radio", protocol.CmdRadio)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Ping tests the connection
func (c *SocketClient) Ping() error {
	_, err := c.call("ping", protocol.CmdPing)
	return err
}

// IsConnected tests if the daemon is reachable
func (c *SocketClient) IsConnected() bool {
	return c.Ping() == nil
}
