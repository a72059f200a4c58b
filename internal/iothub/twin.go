package iothub

// TwinKind distinguishes the two twin request operations.
type TwinKind int

const (
	// TwinGet is a full-twin fetch request.
	TwinGet TwinKind = iota

	// TwinPatch is a reported-property update request.
	TwinPatch
)

// RequestState is the lifecycle of one tracked twin request:
// Sent -> Acknowledged | Abandoned.
type RequestState int

const (
	// StateSent means the request is outstanding and a response is
	// expected.
	StateSent RequestState = iota

	// StateAcknowledged means a matching response arrived; Status holds
	// the hub status code.
	StateAcknowledged

	// StateAbandoned means the session reconnected before a response
	// arrived. Abandoned requests are never re-issued automatically.
	StateAbandoned
)

// TwinRequest is one tracked twin operation.
type TwinRequest struct {
	ID     uint32
	Kind   TwinKind
	State  RequestState
	Status int
}

// TwinTracker correlates outstanding twin requests to their responses.
//
// Request ids strictly increase within a session, wrapping at the
// uint32 limit without panicking. At most one GET may be pending at a
// time; PATCH requests are unbounded and independently tracked.
//
// The tracker is owned by a single Client and, per the cooperative
// concurrency model, is not internally locked.
type TwinTracker struct {
	lastID  uint32
	pending map[uint32]*TwinRequest

	// pendingGet is the id of the outstanding GET; valid only while
	// hasPendingGet (the id itself may legitimately be any value after
	// wraparound).
	pendingGet    uint32
	hasPendingGet bool
}

// NewTwinTracker returns an empty tracker. The first issued id is 1.
func NewTwinTracker() *TwinTracker {
	return &TwinTracker{pending: make(map[uint32]*TwinRequest)}
}

// nextID returns the next request id. Unsigned wrapping keeps the
// "strictly increasing" invariant modulo 2^32 without overflow panics.
func (t *TwinTracker) nextID() uint32 {
	t.lastID++
	return t.lastID
}

// BeginGet registers a new full-twin GET request and returns its id.
//
// Returns ErrTwinBusy while a previous GET is still pending — the
// protocol supports only one outstanding full-twin fetch.
func (t *TwinTracker) BeginGet() (uint32, error) {
	if t.hasPendingGet {
		return 0, ErrTwinBusy
	}
	id := t.nextID()
	t.pending[id] = &TwinRequest{ID: id, Kind: TwinGet, State: StateSent}
	t.pendingGet = id
	t.hasPendingGet = true
	return id, nil
}

// BeginPatch registers a new reported-property PATCH request and
// returns its id. Multiple patches may be in flight.
func (t *TwinTracker) BeginPatch() uint32 {
	id := t.nextID()
	t.pending[id] = &TwinRequest{ID: id, Kind: TwinPatch, State: StateSent}
	return id
}

// Resolve acknowledges the pending request matching a twin response.
//
// When the response carried a $rid (hasRID true), the request with that
// id is resolved. Without a $rid, the most recently sent pending GET is
// resolved. Responses matching nothing — late responses for abandoned
// requests included — return ok=false and are ignored by callers.
func (t *TwinTracker) Resolve(rid uint32, hasRID bool, status int) (*TwinRequest, bool) {
	if !hasRID {
		if !t.hasPendingGet {
			return nil, false
		}
		rid = t.pendingGet
	}

	req, ok := t.pending[rid]
	if !ok {
		return nil, false
	}

	req.State = StateAcknowledged
	req.Status = status
	t.remove(rid)
	return req, true
}

// Abandon drops a single tracked request, used when the publish that
// would have elicited a response failed.
func (t *TwinTracker) Abandon(rid uint32) {
	if req, ok := t.pending[rid]; ok {
		req.State = StateAbandoned
		t.remove(rid)
	}
}

// AbandonAll transitions every pending request to Abandoned and returns
// how many were dropped. Called on session reconnect; the caller must
// explicitly retry any operation it still wants.
func (t *TwinTracker) AbandonAll() int {
	n := len(t.pending)
	for _, req := range t.pending {
		req.State = StateAbandoned
	}
	t.pending = make(map[uint32]*TwinRequest)
	t.hasPendingGet = false
	return n
}

// GetPending reports whether a full-twin GET is outstanding.
func (t *TwinTracker) GetPending() bool { return t.hasPendingGet }

// PendingCount returns the number of outstanding requests of any kind.
func (t *TwinTracker) PendingCount() int { return len(t.pending) }

// remove deletes a request from tracking and clears the pending-GET
// marker when it referred to that request.
func (t *TwinTracker) remove(rid uint32) {
	delete(t.pending, rid)
	if t.hasPendingGet && t.pendingGet == rid {
		t.hasPendingGet = false
	}
}
