/*
File Name:  Status.go
Copyright:  2021 Peernet s.r.o.
Author:     Peter Kleissner
*/

package statusapi

import (
	"encoding/hex"
	"net/http"
	"time"

	"github.com/kadcore/node/dht"
)

type apiResponseStatus struct {
	NodeId      string `json:"nodeid"`
	Open        bool   `json:"open"`
	LastSentAgo string `json:"lastsentago"`
}

// apiStatus returns the node's identity and lifecycle state.
// Request:  GET /status
// Result:   200 with JSON apiResponseStatus
func (api *Instance) apiStatus(w http.ResponseWriter, r *http.Request) {
	response := apiResponseStatus{
		NodeId: hex.EncodeToString(api.Node.NodeId),
		Open:   api.Node.IsOpen(),
	}

	if lastSent := api.Node.LastSent(); !lastSent.IsZero() {
		response.LastSentAgo = time.Since(lastSent).String()
	}

	encodeJSON(w, response)
}

type apiResponseRouting struct {
	TotalActive int         `json:"totalactive"`
	Buckets     []bucketRow `json:"buckets"`
}

// bucketRow carries both the per-bucket counts and the peer records
// themselves (id, address, flags, first/last seen), per the status API's
// routing surface requirement.
type bucketRow struct {
	Index          int          `json:"index"`
	ActiveCount    int          `json:"activecount"`
	CandidateCount int          `json:"candidatecount"`
	Active         []peerRecord `json:"active"`
	Candidates     []peerRecord `json:"candidates"`
}

type peerRecord struct {
	NodeId    string     `json:"nodeid"`
	Address   string     `json:"address"`
	Flags     uint32     `json:"flags"`
	FirstSeen time.Time  `json:"firstseen"`
	LastSeen  *time.Time `json:"lastseen,omitempty"`
}

func toPeerRecords(peers []*dht.Peer) []peerRecord {
	out := make([]peerRecord, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerRecord{
			NodeId:    hex.EncodeToString(p.NodeId),
			Address:   p.AddrKey(),
			Flags:     p.Flags,
			FirstSeen: p.FirstSeen,
			LastSeen:  p.LastSeen,
		})
	}
	return out
}

// apiRouting returns, per bucket, both the active/candidate counts and the
// peer records themselves.
// Request:  GET /status/routing
// Result:   200 with JSON apiResponseRouting
func (api *Instance) apiRouting(w http.ResponseWriter, r *http.Request) {
	buckets := api.Node.Routing.Buckets()

	response := apiResponseRouting{TotalActive: api.Node.Routing.TotalNodes()}
	for i := range buckets {
		if len(buckets[i].Active) == 0 && len(buckets[i].Candidates) == 0 {
			continue
		}
		response.Buckets = append(response.Buckets, bucketRow{
			Index:          i,
			ActiveCount:    len(buckets[i].Active),
			CandidateCount: len(buckets[i].Candidates),
			Active:         toPeerRecords(buckets[i].Active),
			Candidates:     toPeerRecords(buckets[i].Candidates),
		})
	}

	encodeJSON(w, response)
}

type apiResponseCache struct {
	Size           int  `json:"size"`
	Capacity       int  `json:"capacity"`
	HasDurableBackend bool `json:"hasdurablebackend"`
}

// apiCache returns value cache size/capacity and whether a durable backend
// is attached.
// Request:  GET /status/cache
// Result:   200 with JSON apiResponseCache
func (api *Instance) apiCache(w http.ResponseWriter, r *http.Request) {
	response := apiResponseCache{
		Size:              api.Node.Cache.Len(),
		Capacity:          api.Node.Cache.Cap(),
		HasDurableBackend: api.Node.Config.CachePath != "",
	}

	encodeJSON(w, response)
}
