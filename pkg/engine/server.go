package engine

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dougsko/swrmeter/pkg/aggregate"
	"github.com/dougsko/swrmeter/pkg/logging"
	"github.com/dougsko/swrmeter/pkg/protocol"
	"github.com/dougsko/swrmeter/pkg/storage"
)

// HistoryReader lists stored transmissions
type HistoryReader interface {
	GetTransmissions(query storage.TransmissionQuery) ([]storage.Transmission, error)
}

// SocketServer serves the line protocol on a Unix domain socket
type SocketServer struct {
	meter      *Meter
	history    HistoryReader
	socketPath string
	log        *logging.ComponentLogger

	listener net.Listener
	running  bool
	mutex    sync.RWMutex
	wg       sync.WaitGroup
}

// NewSocketServer creates a control server for meter; history may be nil
func NewSocketServer(meter *Meter, history HistoryReader, socketPath string) *SocketServer {
	return &SocketServer{
		meter:      meter,
		history:    history,
		socketPath: socketPath,
		log:        logging.For("socket"),
	}
}

// Start listens on the socket
func (s *SocketServer) Start() error {
	// Remove existing socket file
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create Unix socket: %w", err)
	}

	// readable/writable by owner and group
	if err := os.Chmod(s.socketPath, 0660); err != nil {
		s.log.Warnf("failed to set socket permissions: %v", err)
	}

	s.mutex.Lock()
	s.listener = listener
	s.running = true
	s.mutex.Unlock()

	s.log.Infof("listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Stop closes the socket and waits for the accept loop
func (s *SocketServer) Stop() error {
	s.mutex.Lock()
	s.running = false
	listener := s.listener
	s.mutex.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()

	os.Remove(s.socketPath)
	return nil
}

func (s *SocketServer) isRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.running
}

func (s *SocketServer) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.isRunning() {
				return
			}
			s.log.Warnf("accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *SocketServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		cmd, err := protocol.ParseCommand(line)
		if err != nil {
			response := protocol.NewErrorResponse(fmt.Sprintf("parse error: %v", err))
			conn.Write([]byte(response.String() + "\n"))
			continue
		}

		response := s.HandleCommand(cmd)
		conn.Write([]byte(response.String() + "\n"))

		if cmd.Type == protocol.CmdQuit {
			break
		}
	}
}

// HandleCommand executes one parsed command
func (s *SocketServer) HandleCommand(cmd *protocol.Command) *protocol.Response {
	switch cmd.Type {
	case protocol.CmdStatus:
		return protocol.NewSuccessResponse(map[string]interface{}{"status": s.meter.Status()})

	case protocol.CmdReading:
		snap := s.meter.Snapshot()
		return protocol.NewSuccessResponse(map[string]interface{}{
			"reading":      snap.Reading,
			"supply_volts": snap.SupplyVolts,
			"transmitting": snap.Transmitting,
		})

	case protocol.CmdProfile:
		return s.handleProfile(cmd)

	case protocol.CmdBand:
		return s.handleBand(cmd)

	case protocol.CmdFrequency:
		hz, err := strconv.ParseInt(argString(cmd, "frequency"), 10, 64)
		if err != nil {
			return protocol.NewErrorResponse("invalid frequency")
		}
		return result(s.meter.SetFrequency(hz), map[string]interface{}{"frequency_hz": hz})

	case protocol.CmdPower:
		pct, err := strconv.Atoi(argString(cmd, "percent"))
		if err != nil {
			return protocol.NewErrorResponse("invalid power percent")
		}
		return result(s.meter.SetPower(pct), map[string]interface{}{"percent": pct})

	case protocol.CmdTune:
		return result(s.meter.Tune(), map[string]interface{}{"status": "queued"})

	case protocol.CmdReset:
		return result(s.meter.ResetHolds(), map[string]interface{}{"status": "queued"})

	case protocol.CmdOptions:
		return s.handleOptions(cmd)

	case protocol.CmdHistory:
		return s.handleHistory(cmd)

	case protocol.CmdRadio:
		snap := s.meter.Snapshot()
		return protocol.NewSuccessResponse(map[string]interface{}{
			"enabled": snap.CIVEnabled,
			"status":  snap.Radio,
			"state":   snap.CIVState,
			"stats":   snap.CIVStats,
		})

	case protocol.CmdPing:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"pong": time.Now().Unix(),
		})

	case protocol.CmdQuit:
		return protocol.NewSuccessResponse(map[string]interface{}{
			"message": "goodbye",
		})

	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown command: %s", cmd.Type))
	}
}

func (s *SocketServer) handleProfile(cmd *protocol.Command) *protocol.Response {
	name := argString(cmd, "profile")
	if name == "" {
		return protocol.NewSuccessResponse(map[string]interface{}{"profile": s.meter.Snapshot().Profile})
	}
	id, err := aggregate.ParseProfile(name)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return result(s.meter.SetProfile(id), map[string]interface{}{"profile": id.String()})
}

func (s *SocketServer) handleBand(cmd *protocol.Command) *protocol.Response {
	name := argString(cmd, "band")
	switch name {
	case "":
		snap := s.meter.Snapshot()
		return protocol.NewSuccessResponse(map[string]interface{}{"band": snap.Band, "bands": snap.Bands})
	case "next":
		return result(s.meter.NextBand(), map[string]interface{}{"status": "queued"})
	}
	b, err := s.meter.SelectBandByName(name)
	return result(err, map[string]interface{}{"band": b.Name, "frequency_hz": b.FT8Hz})
}

func (s *SocketServer) handleOptions(cmd *protocol.Command) *protocol.Response {
	switch argString(cmd, "action") {
	case "", "get":
		return protocol.NewSuccessResponse(map[string]interface{}{"options": s.meter.Snapshot().Options})
	case "set":
		key, value := argString(cmd, "key"), argString(cmd, "value")
		if key == "" {
			return protocol.NewErrorResponse("option key required")
		}
		return result(s.meter.SetOption(key, value), map[string]interface{}{key: value})
	default:
		return protocol.NewErrorResponse(fmt.Sprintf("unknown options action: %s", argString(cmd, "action")))
	}
}

func (s *SocketServer) handleHistory(cmd *protocol.Command) *protocol.Response {
	if s.history == nil {
		return protocol.NewErrorResponse("history is not stored")
	}

	query := storage.TransmissionQuery{Limit: 20, Band: argString(cmd, "band")}
	if limit := argString(cmd, "limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return protocol.NewErrorResponse("invalid limit")
		}
		query.Limit = n
	}

	rows, err := s.history.GetTransmissions(query)
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(map[string]interface{}{
		"transmissions": rows,
		"count":         len(rows),
	})
}

func argString(cmd *protocol.Command, key string) string {
	v, _ := cmd.Args[key].(string)
	return v
}

func result(err error, data map[string]interface{}) *protocol.Response {
	if err != nil {
		return protocol.NewErrorResponse(err.Error())
	}
	return protocol.NewSuccessResponse(data)
}
