package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	t.Run("STATUS Command", func(t *testing.T) {
		cmd, err := ParseCommand("STATUS")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}

		if cmd.Type != "STATUS" {
			t.Errorf("Expected type STATUS, got %s", cmd.Type)
		}
		if len(cmd.Args) != 0 {
			t.Errorf("Expected no args for STATUS, got %d", len(cmd.Args))
		}
	})

	t.Run("Lower Case Type", func(t *testing.T) {
		cmd, _ := ParseCommand("  reading \n")
		if cmd.Type != CmdReading {
			t.Errorf("Expected type READING, got %s", cmd.Type)
		}
	})

	t.Run("PROFILE Command", func(t *testing.T) {
		cmd, _ := ParseCommand("PROFILE:Alternate")
		if cmd.Type != CmdProfile {
			t.Errorf("Expected type PROFILE, got %s", cmd.Type)
		}
		if cmd.Args["profile"] != "alternate" {
			t.Errorf("Expected profile alternate, got %v", cmd.Args["profile"])
		}
	})

	t.Run("BAND Command", func(t *testing.T) {
		cmd, _ := ParseCommand("BAND:20 Mtrs")
		if cmd.Args["band"] != "20 Mtrs" {
			t.Errorf("Expected band '20 Mtrs', got %v", cmd.Args["band"])
		}
	})

	t.Run("FREQUENCY Command", func(t *testing.T) {
		cmd, _ := ParseCommand("FREQUENCY:14074000")
		if cmd.Args["frequency"] != "14074000" {
			t.Errorf("Expected frequency 14074000, got %v", cmd.Args["frequency"])
		}
	})

	t.Run("POWER Command", func(t *testing.T) {
		cmd, _ := ParseCommand("POWER:75")
		if cmd.Type != CmdPower || cmd.Args["percent"] != "75" {
			t.Errorf("Unexpected command %+v", cmd)
		}
	})

	t.Run("HISTORY Command with Limit", func(t *testing.T) {
		cmd, _ := ParseCommand("HISTORY:20")
		if cmd.Args["limit"] != "20" {
			t.Errorf("Expected limit 20, got %v", cmd.Args["limit"])
		}
	})

	t.Run("HISTORY Command with Band", func(t *testing.T) {
		cmd, _ := ParseCommand("HISTORY:band:40 Mtrs")
		if cmd.Args["band"] != "40 Mtrs" {
			t.Errorf("Expected band '40 Mtrs', got %v", cmd.Args["band"])
		}
		if _, ok := cmd.Args["limit"]; ok {
			t.Error("Expected no limit")
		}
	})

	t.Run("OPTIONS Command Set", func(t *testing.T) {
		cmd, _ := ParseCommand("OPTIONS:set:weight:400")
		if cmd.Type != "OPTIONS" {
			t.Errorf("Expected type OPTIONS, got %s", cmd.Type)
		}
		if cmd.Args["action"] != "set" {
			t.Errorf("Expected action set, got %v", cmd.Args["action"])
		}
		if cmd.Args["key"] != "weight" {
			t.Errorf("Expected key weight, got %v", cmd.Args["key"])
		}
		if cmd.Args["value"] != "400" {
			t.Errorf("Expected value 400, got %v", cmd.Args["value"])
		}
	})

	t.Run("OPTIONS Command Get", func(t *testing.T) {
		cmd, _ := ParseCommand("OPTIONS:get")
		if cmd.Args["action"] != "get" {
			t.Errorf("Expected action get, got %v", cmd.Args["action"])
		}
		if _, ok := cmd.Args["key"]; ok {
			t.Error("Expected no key")
		}
	})

	t.Run("Args Ignored For Plain Commands", func(t *testing.T) {
		cmd, _ := ParseCommand("TUNE:now")
		if cmd.Type != CmdTune || len(cmd.Args) != 0 {
			t.Errorf("Unexpected command %+v", cmd)
		}
	})
}

func TestResponse(t *testing.T) {
	t.Run("Success Response JSON", func(t *testing.T) {
		data := map[string]interface{}{
			"net_watts": 97.5,
			"vswr":      1.2,
		}
		resp := NewSuccessResponse(data)

		if !resp.Success {
			t.Error("Expected success to be true")
		}
		if resp.Error != "" {
			t.Errorf("Expected no error, got %s", resp.Error)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["success"] != true {
			t.Error("Expected success true in JSON")
		}
		dataField := parsed["data"].(map[string]interface{})
		if dataField["vswr"] != 1.2 {
			t.Errorf("Expected vswr 1.2, got %v", dataField["vswr"])
		}
	})

	t.Run("Error Response JSON", func(t *testing.T) {
		resp := NewErrorResponse("invalid command")

		if resp.Success {
			t.Error("Expected success to be false")
		}
		if resp.Data != nil {
			t.Errorf("Expected no data for error response, got %v", resp.Data)
		}

		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(resp.String()), &parsed); err != nil {
			t.Fatalf("Failed to parse JSON: %v", err)
		}
		if parsed["success"] != false {
			t.Error("Expected success false in JSON")
		}
		if parsed["error"] != "invalid command" {
			t.Errorf("Expected error in JSON, got %v", parsed["error"])
		}
	})

	t.Run("Empty Success Response", func(t *testing.T) {
		resp := NewSuccessResponse(nil)
		if strings.Contains(resp.String(), "data") {
			t.Errorf("Expected data omitted, got %s", resp.String())
		}
	})
}

func TestStatus(t *testing.T) {
	startTime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	status := Status{
		Version:      "0.1.0",
		Uptime:       "1h30m",
		StartTime:    startTime,
		Transmitting: true,
		Profile:      "default",
		Band:         "20 Mtrs",
		FrequencyHz:  14074000,
		CIVEnabled:   true,
	}

	data, err := json.Marshal(status)
	if err != nil {
		t.Fatalf("Failed to marshal status: %v", err)
	}

	var parsed Status
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Failed to unmarshal status: %v", err)
	}
	if !parsed.StartTime.Equal(startTime) {
		t.Errorf("Expected start time %v, got %v", startTime, parsed.StartTime)
	}
	parsed.StartTime = startTime
	if parsed != status {
		t.Errorf("Expected %+v, got %+v", status, parsed)
	}
}

func TestConstants(t *testing.T) {
	constants := map[string]string{
		"STATUS":    CmdStatus,
		"READING":   CmdReading,
		"PROFILE":   CmdProfile,
		"BAND":      CmdBand,
		"FREQUENCY": CmdFrequency,
		"POWER":     CmdPower,
		"TUNE":      CmdTune,
		"RESET":     CmdReset,
		"OPTIONS":   CmdOptions,
		"HISTORY":   CmdHistory,
		"RADIO":     CmdRadio,
		"QUIT":      CmdQuit,
		"PING":      CmdPing,
	}

	for expected, constant := range constants {
		if constant != expected {
			t.Errorf("Expected constant %s to equal %s, got %s", expected, expected, constant)
		}
	}
}
