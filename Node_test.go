/*
File Name:  Node_test.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package node

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/kadcore/node/dht"
)

type captureWriter struct {
	buf bytes.Buffer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// TestInitDefaultsFiltersToLogSink verifies that a node started with no
// custom Filters still feeds dispatcher activity into Stdout, so
// statusapi's /status/events carries something out of the box.
func TestInitDefaultsFiltersToLogSink(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	config := "LogFile: \"\"\nListen: \"0.0.0.0:0\"\n"
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	n, status, err := Init(configPath, nil, nil)
	if err != nil || status != StatusSuccess {
		t.Fatalf("Init: status=%d err=%v", status, err)
	}

	capture := &captureWriter{}
	id := n.Stdout.Subscribe(capture)
	defer n.Stdout.Unsubscribe(id)

	n.Filters.NewPeer(&dht.Peer{NodeId: n.NodeId})
	n.Filters.IncomingRequest(nil, "ping", 1)
	n.Filters.ReplySent(nil, "pong", 1)
	n.Filters.StoreResult(nil, []byte("k"), true)

	out := capture.buf.String()
	for _, want := range []string{"new_peer", "incoming_request", "reply_sent", "store_result"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Fatalf("expected log output to contain %q, got %q", want, out)
		}
	}
}
