package coordinator

import (
	"fmt"
	"net"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

// dialTimeout bounds the outbound connection the dispatcher opens to
// hand a job to a worker. The coordinator keeps no per-job timer of
// its own; this only bounds the TCP handshake and the single write,
// not job execution.
const dialTimeout = 5 * time.Second

// DialSend is the default SendFunc: it opens a short-lived connection
// to the worker's advertised endpoint and writes the job as a single
// framed message, one fresh outbound connection per dispatch.
func DialSend(w WorkerInfo, job *protocol.Job) error {
	addr := fmt.Sprintf("%s:%d", w.Address, w.Port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial worker %s: %w", addr, err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if err := protocol.WriteJSON(conn, job); err != nil {
		return fmt.Errorf("send job to %s: %w", addr, err)
	}
	return nil
}
