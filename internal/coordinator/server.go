package coordinator

import (
	"encoding/json"
	"fmt"
	"log"
	"net"

	"github.com/google/uuid"
	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// Server is the coordinator's single TCP listener, accepting all four
// peer roles (client, worker_register, heartbeat, job_result) on one
// port.
type Server struct {
	Addr       string
	Queue      *Queue
	Registry   *Registry
	Jobs       *JobStore
	Results    *ResultStore
	Dispatcher *Dispatcher

	listener net.Listener
}

func NewServer(addr string, q *Queue, r *Registry, js *JobStore, rs *ResultStore, d *Dispatcher) *Server {
	return &Server{Addr: addr, Queue: q, Registry: r, Jobs: js, Results: rs, Dispatcher: d}
}

// ListenAndServe binds the listener and accepts connections until it
// is closed (by Stop or a fatal accept error).
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("coordinator: listen %s: %w", s.Addr, err)
	}
	s.listener = ln
	log.Printf("[coordinator] listening on %s", s.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Stop closes the listener, causing ListenAndServe to return.
func (s *Server) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// typeProbe is decoded first on every connection to find out which
// peer role opened it.
type typeProbe struct {
	Type string `json:"type"`
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()[:8]

	r := protocol.NewFrameReader(conn)
	line, err := r.ReadFrame()
	if err != nil {
		log.Printf("[coordinator][%s] read failed: %v", connID, err)
		return
	}

	var probe typeProbe
	if err := json.Unmarshal(line, &probe); err != nil {
		log.Printf("[coordinator][%s] malformed opening message: %v", connID, err)
		return
	}

	switch probe.Type {
	case protocol.TypeClient:
		s.handleClientSession(connID, conn, r)
	case protocol.TypeWorkerRegister:
		s.handleWorkerRegister(connID, conn, line)
	case protocol.TypeHeartbeat:
		s.handleHeartbeat(connID, conn, line)
	case protocol.TypeJobResult:
		s.handleJobResult(connID, line)
	default:
		log.Printf("[coordinator][%s] unknown connection type %q, closing", connID, probe.Type)
	}
}

func peerAddress(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *Server) handleWorkerRegister(connID string, conn net.Conn, line []byte) {
	var msg protocol.WorkerRegisterMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Printf("[coordinator][%s] invalid worker_register: %v", connID, err)
		return
	}
	if msg.Address == "" {
		msg.Address = peerAddress(conn)
	}
	if msg.Port <= 0 {
		log.Printf("[coordinator][%s] worker_register missing port", connID)
		return
	}
	workerID := fmt.Sprintf("%s:%d", msg.Address, msg.Port)
	s.Registry.Register(workerID, msg.Address, msg.Port)
	log.Printf("[coordinator][%s] worker %s registered", connID, workerID)
}

func (s *Server) handleHeartbeat(connID string, conn net.Conn, line []byte) {
	var msg protocol.HeartbeatMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Printf("[coordinator][%s] invalid heartbeat: %v", connID, err)
		return
	}
	address := peerAddress(conn)
	workerID := fmt.Sprintf("%s:%d", address, msg.Port)
	if !s.Registry.Touch(workerID) {
		log.Printf("[coordinator][%s] heartbeat from unregistered worker %s, ignoring", connID, workerID)
	}
}

func (s *Server) handleJobResult(connID string, line []byte) {
	var msg protocol.JobResultMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Printf("[coordinator][%s] invalid job_result: %v", connID, err)
		return
	}
	s.Dispatcher.HandleResult(msg.Result)
	log.Printf("[coordinator][%s] recorded result for job %s (success=%v)", connID, msg.Result.JobID, msg.Result.Success)
}

// handleClientSession serves the multi-message client connection:
// submit_job, get_result, get_job_state, cancel_job, get_stats.
// Responses are written in request order; protocol errors never
// mutate coordinator state. A frame that is not valid JSON gets an
// error reply and ends the session.
func (s *Server) handleClientSession(connID string, conn net.Conn, r *protocol.FrameReader) {
	for {
		line, err := r.ReadFrame()
		if err != nil {
			return // EOF or transport error: session over.
		}
		var req protocol.ClientRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("[coordinator][%s] malformed client request: %v", connID, err)
			protocol.WriteJSON(conn, errResponse("malformed request: %v", err))
			return
		}

		resp := s.handleClientRequest(req)
		if err := protocol.WriteJSON(conn, resp); err != nil {
			log.Printf("[coordinator][%s] write failed: %v", connID, err)
			return
		}
	}
}

func (s *Server) handleClientRequest(req protocol.ClientRequest) protocol.ClientResponse {
	switch req.Action {
	case protocol.ActionSubmitJob:
		return s.submitJob(req)
	case protocol.ActionGetResult:
		return s.getResult(req)
	case protocol.ActionGetJobState:
		return s.getJobState(req)
	case protocol.ActionCancelJob:
		return s.cancelJob(req)
	case protocol.ActionGetStats:
		stats := s.Dispatcher.Stats()
		return protocol.ClientResponse{Stats: &stats}
	default:
		return errResponse("unknown action %q", req.Action)
	}
}

func (s *Server) submitJob(req protocol.ClientRequest) protocol.ClientResponse {
	if req.ScriptPath == "" && req.ScriptContent == "" {
		return errResponse("scriptPath or scriptContent is required")
	}
	if req.ScriptPath != "" && req.ScriptContent != "" {
		return errResponse("scriptPath and scriptContent are mutually exclusive")
	}
	job := s.Jobs.Create(req.ScriptPath, req.ScriptContent, req.Args)
	s.Queue.PushBack(job.JobID)
	return protocol.ClientResponse{Status: protocol.StatusJobSubmitted, JobID: job.JobID}
}

func (s *Server) getResult(req protocol.ClientRequest) protocol.ClientResponse {
	if req.JobID == "" {
		return errResponse("jobId is required")
	}
	if _, ok := s.Jobs.Get(req.JobID); !ok {
		return errResponse("unknown jobId %q", req.JobID)
	}
	result, ok := s.Results.Get(req.JobID)
	if !ok {
		return protocol.ClientResponse{Status: protocol.StatusResultNotReady}
	}
	return protocol.ClientResponse{Status: protocol.StatusResultReady, Result: &result}
}

func (s *Server) getJobState(req protocol.ClientRequest) protocol.ClientResponse {
	if req.JobID == "" {
		return errResponse("jobId is required")
	}
	state := s.Jobs.StateOf(req.JobID)
	return protocol.ClientResponse{JobID: req.JobID, State: state.String()}
}

func (s *Server) cancelJob(req protocol.ClientRequest) protocol.ClientResponse {
	if req.JobID == "" {
		return errResponse("jobId is required")
	}
	if !s.Dispatcher.CancelJob(req.JobID) {
		return errResponse("job %q is not cancellable", req.JobID)
	}
	return protocol.ClientResponse{Status: protocol.StatusCancelled, JobID: req.JobID}
}

func errResponse(format string, args ...interface{}) protocol.ClientResponse {
	return protocol.ClientResponse{Status: protocol.StatusError, Message: fmt.Sprintf(format, args...)}
}
