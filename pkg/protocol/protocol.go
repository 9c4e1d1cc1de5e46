package protocol

import (
	"encoding/json"
	"strings"
	"time"
)

// Command represents a command sent to the meter
type Command struct {
	Type string                 `json:"type"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Response represents a response from the meter
type Response struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Status represents the current daemon status
type Status struct {
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
	StartTime    time.Time `json:"start_time"`
	Transmitting bool      `json:"transmitting"`
	Profile      string    `json:"profile"`
	Band         string    `json:"band"`
	FrequencyHz  int64     `json:"frequency_hz"`
	CIVEnabled   bool      `json:"civ_enabled"`
	RadioStale   bool      `json:"radio_stale"`
}

// ParseCommand parses a text command into a Command struct
func ParseCommand(text string) (*Command, error) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, ":", 2)

	cmd := &Command{
		Type: strings.ToUpper(parts[0]),
		Args: make(map[string]interface{}),
	}

	if len(parts) > 1 {
		args := parts[1]

		switch cmd.Type {
		case CmdProfile:
			// PROFILE:alternate
			cmd.Args["profile"] = strings.ToLower(args)

		case CmdBand:
			// BAND:20 or BAND:next
			cmd.Args["band"] = args

		case CmdFrequency:
			// FREQUENCY:14074000
			cmd.Args["frequency"] = args

		case CmdPower:
			// POWER:50
			cmd.Args["percent"] = args

		case CmdHistory:
			// HISTORY:10 or HISTORY:band:20 Mtrs
			if strings.HasPrefix(args, "band:") {
				cmd.Args["band"] = strings.TrimPrefix(args, "band:")
			} else {
				cmd.Args["limit"] = args
			}

		case CmdOptions:
			// OPTIONS:set:weight:400 or OPTIONS:get
			optionParts := strings.SplitN(args, ":", 3)
			if len(optionParts) >= 1 {
				cmd.Args["action"] = optionParts[0]
			}
			if len(optionParts) >= 2 {
				cmd.Args["key"] = optionParts[1]
			}
			if len(optionParts) >= 3 {
				cmd.Args["value"] = optionParts[2]
			}
		}
	}

	return cmd, nil
}

// String converts a Response to its JSON line
func (r *Response) String() string {
	data, _ := json.Marshal(r)
	return string(data)
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data map[string]interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// Protocol commands
const (
	CmdStatus    = "STATUS"
	CmdReading   = "READING"
	CmdProfile   = "PROFILE"
	CmdBand      = "BAND"
	CmdFrequency = "FREQUENCY"
	CmdPower     = "POWER"
	CmdTune      = "TUNE"
	CmdReset     = "RESET"
	CmdOptions   = "OPTIONS"
	CmdHistory   = "HISTORY"
	CmdRadio     = "RADIO"
	CmdQuit      = "QUIT"
	CmdPing      = "PING"
)
