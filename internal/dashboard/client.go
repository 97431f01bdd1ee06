package dashboard

import (
	"fmt"
	"net"
	"time"

	"github.com/hochfrequenz/taskcluster/internal/protocol"
)

const dialTimeout = 5 * time.Second

// FetchStats opens a client session against coordinatorAddr, issues a
// get_stats request, and returns the result.
func FetchStats(coordinatorAddr string) (protocol.Stats, error) {
	conn, err := net.DialTimeout("tcp", coordinatorAddr, dialTimeout)
	if err != nil {
		return protocol.Stats{}, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(dialTimeout))

	if err := protocol.WriteJSON(conn, protocol.ClientOpen{Type: protocol.TypeClient}); err != nil {
		return protocol.Stats{}, err
	}
	if err := protocol.WriteJSON(conn, protocol.ClientRequest{Action: protocol.ActionGetStats}); err != nil {
		return protocol.Stats{}, err
	}

	var resp protocol.ClientResponse
	if err := protocol.NewFrameReader(conn).ReadJSON(&resp); err != nil {
		return protocol.Stats{}, err
	}
	if resp.Status == protocol.StatusError {
		return protocol.Stats{}, fmt.Errorf("coordinator: %s", resp.Message)
	}
	if resp.Stats == nil {
		return protocol.Stats{}, fmt.Errorf("coordinator: no stats in response")
	}
	return *resp.Stats, nil
}
