package worker

import (
	"fmt"
	"net"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// dialTimeout bounds the short-lived outbound connections a worker
// opens to the coordinator for registration, heartbeats, and results.
const dialTimeout = 5 * time.Second

func dialCoordinator(coordinatorAddr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", coordinatorAddr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator %s: %w", coordinatorAddr, err)
	}
	conn.SetDeadline(time.Now().Add(dialTimeout))
	return conn, nil
}

// Register opens a short-lived connection to the coordinator and
// announces this worker's advertised listen endpoint.
func Register(coordinatorAddr, address string, port int) error {
	conn, err := dialCoordinator(coordinatorAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	return protocol.WriteJSON(conn, protocol.WorkerRegisterMessage{
		Type:    protocol.TypeWorkerRegister,
		Address: address,
		Port:    port,
	})
}

// SendHeartbeat opens a short-lived connection and refreshes this
// worker's liveness. The coordinator infers the address from the
// socket peer.
func SendHeartbeat(coordinatorAddr string, port int) error {
	conn, err := dialCoordinator(coordinatorAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	return protocol.WriteJSON(conn, protocol.HeartbeatMessage{
		Type: protocol.TypeHeartbeat,
		Port: port,
	})
}

// SendResult opens a short-lived connection and reports a completed
// job's outcome.
func SendResult(coordinatorAddr string, result protocol.JobResult) error {
	conn, err := dialCoordinator(coordinatorAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	return protocol.WriteJSON(conn, protocol.JobResultMessage{
		Type:   protocol.TypeJobResult,
		Result: result,
	})
}
