package aes67

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	version "github.com/hashicorp/go-version"
)

const (
	nodeAPIVersion       = "v1.3"
	connectionAPIVersion = "v1.1"

	// scheduleHorizon bounds how far ahead a scheduled activation may be
	// requested.
	scheduleHorizon = time.Hour
)

var (
	supportedNodeVersions       = []string{"v1.0", "v1.1", "v1.2", "v1.3"}
	supportedConnectionVersions = []string{"v1.0", "v1.1"}
)

// NmosNode exposes the IS-04 discovery surface and the IS-05 connection
// surface over HTTP, and drives receiver lifecycle transitions through the
// engine registry. The staged/active pair it owns is the sole authority for
// receiver connection state.
//
//   - @emits statechange - (state NodeState)
//   - @emits registration - (registered bool)
type NmosNode struct {
	IEventEmitter
	logger   logr.Logger
	config   NodeConfig
	network  NetworkConfig
	registry *Registry

	state  int32 // NodeState
	closed uint32

	nodeID   string
	deviceID string

	// locker serializes the resource maps and the staged/active tables.
	locker     sync.Mutex
	senders    map[string]NMOSSender
	receivers  map[string]NMOSReceiver
	staged     map[string]*stagedConnection
	active     map[string]TransportParams
	timers     map[string]*time.Timer
	registered bool

	server   *http.Server
	listener net.Listener
}

// NewNmosNode creates the control surface. The registry is shared with the
// code that constructs the engines.
func NewNmosNode(config NodeConfig, network NetworkConfig, registry *Registry) *NmosNode {
	logger := NewLogger("NmosNode")
	logger.V(1).Info("constructor()")

	if registry == nil {
		registry = NewRegistry()
	}

	nodeID := config.Id
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	return &NmosNode{
		IEventEmitter: NewEventEmitter(),
		logger:        logger,
		config:        config,
		network:       network,
		registry:      registry,
		nodeID:        nodeID,
		deviceID:      uuid.NewString(),
		senders:       make(map[string]NMOSSender),
		receivers:     make(map[string]NMOSReceiver),
		staged:        make(map[string]*stagedConnection),
		active:        make(map[string]TransportParams),
		timers:        make(map[string]*time.Timer),
		state:         int32(NodeStateStopped),
	}
}

func (n *NmosNode) NodeID() string   { return n.nodeID }
func (n *NmosNode) DeviceID() string { return n.deviceID }

// Registry returns the engine registry the node resolves ids through.
func (n *NmosNode) Registry() *Registry { return n.registry }

// State returns the current lifecycle state.
func (n *NmosNode) State() NodeState {
	return NodeState(atomic.LoadInt32(&n.state))
}

// Running reports whether the HTTP surface is serving.
func (n *NmosNode) Running() bool {
	s := n.State()
	return s == NodeStateRunning || s == NodeStateRegistered
}

// ApiURL returns the base URL of the node API.
func (n *NmosNode) ApiURL() string {
	return fmt.Sprintf("http://localhost:%d/x-nmos/node/%s", n.network.NodePort, nodeAPIVersion)
}

// Start binds the node port and begins serving both APIs.
func (n *NmosNode) Start() error {
	if atomic.LoadUint32(&n.closed) > 0 {
		return ErrNodeClosed
	}
	if n.Running() {
		return nil
	}

	n.setState(NodeStateStarting)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", n.network.NodePort))
	if err != nil {
		n.setState(NodeStateError)
		return fmt.Errorf("bind node port %d: %w", n.network.NodePort, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/x-nmos/node/", n.handleNodeAPI)
	mux.HandleFunc("/x-nmos/connection/", n.handleConnectionAPI)
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		writeNmosError(w, http.StatusNotFound, "resource not found")
	})

	n.listener = listener
	n.server = &http.Server{Handler: mux}

	go func() {
		if err := n.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			n.logger.Error(err, "http server terminated")
		}
	}()

	n.setState(NodeStateRunning)

	if n.network.RegistryURL != "" {
		n.EnableRegistration(n.network.RegistryURL)
	}

	n.logger.Info("started", "port", n.network.NodePort, "node_id", n.nodeID)
	return nil
}

// Stop drains the HTTP surface and cancels pending scheduled activations.
func (n *NmosNode) Stop() {
	if n.State() == NodeStateStopped {
		return
	}

	n.locker.Lock()
	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
	n.locker.Unlock()

	if n.registered {
		n.DisableRegistration()
	}

	if n.server != nil {
		n.server.Close()
		n.server = nil
		n.listener = nil
	}

	n.setState(NodeStateStopped)
	n.logger.Info("stopped")
}

// Close stops the node and releases it.
func (n *NmosNode) Close() {
	if atomic.CompareAndSwapUint32(&n.closed, 0, 1) {
		n.logger.V(1).Info("close()")

		n.Stop()

		n.Emit("@close")
		n.RemoveAllListeners()
	}
}

// Port returns the bound TCP port, useful when NodePort was 0.
func (n *NmosNode) Port() int {
	if n.listener == nil {
		return int(n.network.NodePort)
	}
	return n.listener.Addr().(*net.TCPAddr).Port
}

// EnableRegistration records the external registry subscription. The
// announcement itself is carried by the mDNS/registration collaborator
// outside the core.
func (n *NmosNode) EnableRegistration(registryURL string) {
	n.network.RegistryURL = registryURL
	n.registered = true
	if n.Running() {
		n.setState(NodeStateRegistered)
	}
	n.SafeEmit("registration", true)
	n.logger.Info("registered with registry", "url", registryURL)
}

// DisableRegistration clears the registry subscription.
func (n *NmosNode) DisableRegistration() {
	n.network.RegistryURL = ""
	n.registered = false
	if n.Running() {
		n.setState(NodeStateRunning)
	}
	n.SafeEmit("registration", false)
}

// Registered reports whether a registry subscription is in force.
func (n *NmosNode) Registered() bool {
	return n.registered
}

// RegisterSender publishes a sender on the discovery surface and in the
// engine registry.
func (n *NmosNode) RegisterSender(sender *Sender) string {
	n.locker.Lock()
	defer n.locker.Unlock()

	id := sender.Id()
	n.senders[id] = NMOSSender{
		Id:        id,
		Label:     sender.Label(),
		DeviceID:  n.deviceID,
		Transport: transportRtpMulticast,
	}
	n.registry.AddSender(sender)

	n.logger.Info("registered sender", "id", id, "label", sender.Label())
	return id
}

// UnregisterSender removes a sender from both surfaces.
func (n *NmosNode) UnregisterSender(id string) {
	n.locker.Lock()
	defer n.locker.Unlock()

	delete(n.senders, id)
	n.registry.RemoveSender(id)
}

// RegisterReceiver publishes a receiver on the discovery surface and in the
// engine registry.
func (n *NmosNode) RegisterReceiver(receiver *Receiver) string {
	n.locker.Lock()
	defer n.locker.Unlock()

	id := receiver.Id()
	n.receivers[id] = NMOSReceiver{
		Id:              id,
		Label:           receiver.Label(),
		DeviceID:        n.deviceID,
		Transport:       transportRtpMulticast,
		ConnectionState: ConnectionStateDisconnected,
	}
	n.registry.AddReceiver(receiver)

	n.logger.Info("registered receiver", "id", id, "label", receiver.Label())
	return id
}

// UnregisterReceiver removes a receiver from both surfaces.
func (n *NmosNode) UnregisterReceiver(id string) {
	n.locker.Lock()
	defer n.locker.Unlock()

	delete(n.receivers, id)
	delete(n.staged, id)
	delete(n.active, id)
	if timer, ok := n.timers[id]; ok {
		timer.Stop()
		delete(n.timers, id)
	}
	n.registry.RemoveReceiver(id)
}

// Senders returns the discovery summaries.
func (n *NmosNode) Senders() []NMOSSender {
	n.locker.Lock()
	defer n.locker.Unlock()

	out := make([]NMOSSender, 0, len(n.senders))
	for _, s := range n.senders {
		out = append(out, s)
	}
	return out
}

// Receivers returns the discovery summaries.
func (n *NmosNode) Receivers() []NMOSReceiver {
	n.locker.Lock()
	defer n.locker.Unlock()

	out := make([]NMOSReceiver, 0, len(n.receivers))
	for _, r := range n.receivers {
		out = append(out, r)
	}
	return out
}

// StagedParams returns the staged transport parameters for a receiver.
func (n *NmosNode) StagedParams(receiverID string) TransportParams {
	n.locker.Lock()
	defer n.locker.Unlock()

	if staged, ok := n.staged[receiverID]; ok {
		return staged.Params
	}
	return TransportParams{}
}

// ActiveParams returns the in-force transport parameters for a receiver.
func (n *NmosNode) ActiveParams(receiverID string) TransportParams {
	n.locker.Lock()
	defer n.locker.Unlock()

	return n.active[receiverID]
}

// StageConnection merges transport parameters into a receiver's staged slot
// without activating them.
func (n *NmosNode) StageConnection(receiverID string, params TransportParams) error {
	n.locker.Lock()
	defer n.locker.Unlock()

	if _, ok := n.receivers[receiverID]; !ok {
		return ErrReceiverNotFound
	}
	staged := n.stagedLocked(receiverID)
	return override(&staged.Params, &params)
}

// ActivateConnection promotes a receiver's staged parameters to active,
// restarting the data path. On failure the active parameters are left
// unchanged and the staged parameters are preserved for a retry.
func (n *NmosNode) ActivateConnection(receiverID string) ConnectionResponse {
	n.locker.Lock()
	defer n.locker.Unlock()

	return n.activateLocked(receiverID)
}

// DisconnectReceiver tears down a receiver's subscription.
func (n *NmosNode) DisconnectReceiver(receiverID string) error {
	receiver, ok := n.registry.Receiver(receiverID)
	if !ok {
		return ErrReceiverNotFound
	}
	receiver.Disconnect()

	n.locker.Lock()
	defer n.locker.Unlock()

	if summary, ok := n.receivers[receiverID]; ok {
		summary.ConnectionState = ConnectionStateDisconnected
		summary.SubscriptionSenderID = ""
		n.receivers[receiverID] = summary
	}
	return nil
}

func (n *NmosNode) setState(state NodeState) {
	if NodeState(atomic.SwapInt32(&n.state, int32(state))) == state {
		return
	}
	n.SafeEmit("statechange", state)
}

// stagedLocked returns the staged slot for a receiver, creating the default
// on first touch. Caller holds the lock.
func (n *NmosNode) stagedLocked(receiverID string) *stagedConnection {
	staged, ok := n.staged[receiverID]
	if !ok {
		staged = &stagedConnection{MasterEnable: true}
		n.staged[receiverID] = staged
	}
	return staged
}

// activateLocked is the promote critical section. Caller holds the lock.
func (n *NmosNode) activateLocked(receiverID string) ConnectionResponse {
	staged, ok := n.staged[receiverID]
	if !ok {
		return ConnectionResponse{ErrorMessage: ErrNoStagedParams.Error()}
	}
	receiver, ok := n.registry.Receiver(receiverID)
	if !ok {
		return ConnectionResponse{ErrorMessage: ErrReceiverNotFound.Error()}
	}

	if !staged.MasterEnable {
		receiver.Disconnect()
		n.active[receiverID] = staged.Params
		if summary, ok := n.receivers[receiverID]; ok {
			summary.ConnectionState = ConnectionStateDisconnected
			summary.SubscriptionSenderID = ""
			n.receivers[receiverID] = summary
		}
		return ConnectionResponse{
			Success:      true,
			State:        ConnectionStateDisconnected,
			ActiveParams: staged.Params,
		}
	}

	// restart the data path: disconnect, rebind, start
	receiver.Disconnect()

	var err error
	if staged.TransportFile != "" {
		err = receiver.ConnectSDP(staged.TransportFile)
	} else {
		err = receiver.Connect(staged.Params.streamAddress(), staged.Params.DestinationPort, AudioFormat{})
	}
	if err == nil {
		err = receiver.Start()
	}
	if err != nil {
		// active is left unchanged, staged preserved for retry
		n.logger.Error(err, "activation failed", "receiver", receiverID)
		return ConnectionResponse{ErrorMessage: err.Error()}
	}

	receiver.SetSenderID(staged.SenderID)
	n.active[receiverID] = staged.Params

	if summary, ok := n.receivers[receiverID]; ok {
		summary.ConnectionState = ConnectionStateActive
		summary.SubscriptionSenderID = staged.SenderID
		n.receivers[receiverID] = summary
	}

	return ConnectionResponse{
		Success:      true,
		State:        ConnectionStateActive,
		ActiveParams: staged.Params,
	}
}

// ---------------------------------------------------------------------------
// HTTP surface

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeNmosError emits the IS-04/IS-05 error body.
func writeNmosError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, H{
		"code":  status,
		"error": message,
		"debug": nil,
	})
}

// versionSupported validates a requested API version segment ("v1.3")
// against a supported set.
func versionSupported(segment string, supported []string) bool {
	requested, err := version.NewVersion(strings.TrimPrefix(segment, "v"))
	if err != nil || !strings.HasPrefix(segment, "v") {
		return false
	}
	for _, s := range supported {
		v, err := version.NewVersion(strings.TrimPrefix(s, "v"))
		if err == nil && v.Equal(requested) {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (n *NmosNode) handleNodeAPI(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeNmosError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	segments := splitPath(req.URL.Path) // ["x-nmos", "node", "v1.3", ...]
	if len(segments) < 3 || !versionSupported(segments[2], supportedNodeVersions) {
		writeNmosError(w, http.StatusNotFound, "unsupported api version")
		return
	}
	rest := segments[3:]

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, []string{
			"self/", "devices/", "sources/", "flows/", "senders/", "receivers/",
		})

	case rest[0] == "self" && len(rest) == 1:
		writeJSON(w, http.StatusOK, n.selfResource())

	case rest[0] == "senders":
		if len(rest) == 1 {
			writeJSON(w, http.StatusOK, n.Senders())
			return
		}
		n.locker.Lock()
		sender, ok := n.senders[rest[1]]
		n.locker.Unlock()
		if !ok {
			writeNmosError(w, http.StatusNotFound, ErrSenderNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, sender)

	case rest[0] == "receivers":
		if len(rest) == 1 {
			writeJSON(w, http.StatusOK, n.Receivers())
			return
		}
		n.locker.Lock()
		receiver, ok := n.receivers[rest[1]]
		n.locker.Unlock()
		if !ok {
			writeNmosError(w, http.StatusNotFound, ErrReceiverNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, receiver)

	case rest[0] == "devices" || rest[0] == "sources" || rest[0] == "flows":
		writeJSON(w, http.StatusOK, []interface{}{})

	default:
		writeNmosError(w, http.StatusNotFound, "resource not found")
	}
}

func (n *NmosNode) selfResource() H {
	hostname, _ := os.Hostname()
	return H{
		"id":          n.nodeID,
		"label":       n.config.Label,
		"description": n.config.Description,
		"version":     nodeAPIVersion,
		"hostname":    hostname,
		"api": H{
			"versions": supportedNodeVersions,
		},
		"services": []interface{}{},
		"clocks": []H{
			{"name": "clk0", "ref_type": "ptp"},
		},
		"interfaces": []H{
			{"name": n.network.Interface},
		},
		"tags": n.config.Tags,
	}
}

func (n *NmosNode) handleConnectionAPI(w http.ResponseWriter, req *http.Request) {
	segments := splitPath(req.URL.Path) // ["x-nmos", "connection", "v1.1", ...]
	if len(segments) < 3 || !versionSupported(segments[2], supportedConnectionVersions) {
		writeNmosError(w, http.StatusNotFound, "unsupported api version")
		return
	}
	rest := segments[3:]

	switch {
	case len(rest) == 0:
		writeJSON(w, http.StatusOK, []string{"bulk/", "single/"})

	case rest[0] == "single" && len(rest) == 1:
		writeJSON(w, http.StatusOK, []string{"senders/", "receivers/"})

	case rest[0] == "single" && rest[1] == "senders":
		n.handleConnectionSenders(w, req, rest[2:])

	case rest[0] == "single" && rest[1] == "receivers":
		n.handleConnectionReceivers(w, req, rest[2:])

	default:
		writeNmosError(w, http.StatusNotFound, "resource not found")
	}
}

func (n *NmosNode) handleConnectionSenders(w http.ResponseWriter, req *http.Request, rest []string) {
	if req.Method != http.MethodGet {
		writeNmosError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if len(rest) == 0 {
		n.locker.Lock()
		ids := make([]string, 0, len(n.senders))
		for id := range n.senders {
			ids = append(ids, id+"/")
		}
		n.locker.Unlock()
		writeJSON(w, http.StatusOK, ids)
		return
	}

	senderID := rest[0]
	sender, ok := n.registry.Sender(senderID)
	if !ok {
		writeNmosError(w, http.StatusNotFound, ErrSenderNotFound.Error())
		return
	}

	if len(rest) == 1 {
		writeJSON(w, http.StatusOK, []string{"transportfile/", "transporttype/"})
		return
	}

	switch rest[1] {
	case "transportfile":
		sdp, err := sender.GenerateSDP()
		if err != nil {
			writeNmosError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/sdp")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sdp))

	case "transporttype":
		writeJSON(w, http.StatusOK, transportRtpMulticast)

	default:
		writeNmosError(w, http.StatusNotFound, "resource not found")
	}
}

func (n *NmosNode) handleConnectionReceivers(w http.ResponseWriter, req *http.Request, rest []string) {
	if len(rest) == 0 {
		if req.Method != http.MethodGet {
			writeNmosError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		n.locker.Lock()
		ids := make([]string, 0, len(n.receivers))
		for id := range n.receivers {
			ids = append(ids, id+"/")
		}
		n.locker.Unlock()
		writeJSON(w, http.StatusOK, ids)
		return
	}

	receiverID := rest[0]

	n.locker.Lock()
	_, known := n.receivers[receiverID]
	n.locker.Unlock()
	if !known {
		writeNmosError(w, http.StatusNotFound, ErrReceiverNotFound.Error())
		return
	}

	if len(rest) == 1 {
		writeJSON(w, http.StatusOK, []string{"constraints/", "staged/", "active/", "transporttype/"})
		return
	}

	switch rest[1] {
	case "staged":
		switch req.Method {
		case http.MethodGet:
			n.locker.Lock()
			staged := n.stagedLocked(receiverID)
			body := *staged
			n.locker.Unlock()
			writeJSON(w, http.StatusOK, body)

		case http.MethodPatch:
			n.patchStaged(w, req, receiverID)

		default:
			writeNmosError(w, http.StatusMethodNotAllowed, "method not allowed")
		}

	case "active":
		if req.Method != http.MethodGet {
			writeNmosError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		n.locker.Lock()
		params := n.active[receiverID]
		n.locker.Unlock()
		writeJSON(w, http.StatusOK, H{"transport_params": params})

	case "transporttype":
		writeJSON(w, http.StatusOK, transportRtpMulticast)

	case "constraints":
		writeJSON(w, http.StatusOK, []interface{}{H{}})

	default:
		writeNmosError(w, http.StatusNotFound, "resource not found")
	}
}

// patchStaged applies an IS-05 staged write: merge the transport parameters,
// record master_enable and subscription, then run or schedule the requested
// activation.
func (n *NmosNode) patchStaged(w http.ResponseWriter, req *http.Request, receiverID string) {
	var request ConnectionRequest
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		writeNmosError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}

	n.locker.Lock()
	staged := n.stagedLocked(receiverID)

	if request.TransportFile != "" {
		info, err := ParseSDP(request.TransportFile)
		if err != nil || !info.Valid() {
			n.locker.Unlock()
			writeNmosError(w, http.StatusBadRequest, ErrInvalidSDP.Error())
			return
		}
		staged.TransportFile = request.TransportFile
		staged.Params.MulticastIP = info.SourceIP
		staged.Params.DestinationPort = info.Port
	}

	if err := override(&staged.Params, &request.TransportParams); err != nil {
		n.locker.Unlock()
		writeNmosError(w, http.StatusBadRequest, err.Error())
		return
	}
	if request.SenderID != "" {
		staged.SenderID = request.SenderID
	}
	if request.MasterEnable != nil {
		staged.MasterEnable = *request.MasterEnable
	}
	staged.ActivationMode = request.ActivationMode
	staged.RequestedTime = request.RequestedTime

	switch request.ActivationMode {
	case "":
		body := *staged
		n.locker.Unlock()
		writeJSON(w, http.StatusOK, body)

	case ActivationModeImmediate:
		staged.ActivationTime = taiTimestamp(time.Now())
		response := n.activateLocked(receiverID)
		body := *staged
		n.locker.Unlock()
		if !response.Success {
			writeNmosError(w, http.StatusInternalServerError, response.ErrorMessage)
			return
		}
		writeJSON(w, http.StatusOK, body)

	case ActivationModeScheduledAbsolute, ActivationModeScheduledRelative:
		delay, err := activationDelay(request.ActivationMode, request.RequestedTime)
		if err != nil {
			n.locker.Unlock()
			writeNmosError(w, http.StatusBadRequest, err.Error())
			return
		}
		staged.ActivationTime = taiTimestamp(time.Now().Add(delay))

		if timer, ok := n.timers[receiverID]; ok {
			timer.Stop()
		}
		n.timers[receiverID] = time.AfterFunc(delay, func() {
			n.locker.Lock()
			delete(n.timers, receiverID)
			response := n.activateLocked(receiverID)
			n.locker.Unlock()
			if !response.Success {
				n.logger.Error(errors.New(response.ErrorMessage),
					"scheduled activation failed", "receiver", receiverID)
			}
		})

		body := *staged
		n.locker.Unlock()
		writeJSON(w, http.StatusAccepted, body)

	default:
		n.locker.Unlock()
		writeNmosError(w, http.StatusBadRequest,
			fmt.Sprintf("unknown activation mode %q", request.ActivationMode))
	}
}

// taiTimestamp renders a wall-clock instant in the IS-05
// "<seconds>:<nanoseconds>" notation. The TAI-UTC offset is the PTP
// follower's concern; the surface passes the epoch through unadjusted.
func taiTimestamp(t time.Time) string {
	return fmt.Sprintf("%d:%d", t.Unix(), t.Nanosecond())
}

// activationDelay computes how long to defer a scheduled activation. A
// requested time in the past activates immediately; one beyond the schedule
// horizon is rejected.
func activationDelay(mode, requested string) (time.Duration, error) {
	seconds, nanos, err := parseTaiTimestamp(requested)
	if err != nil {
		return 0, err
	}

	var delay time.Duration
	switch mode {
	case ActivationModeScheduledRelative:
		delay = time.Duration(seconds)*time.Second + time.Duration(nanos)
	case ActivationModeScheduledAbsolute:
		target := time.Unix(seconds, nanos)
		delay = time.Until(target)
	}

	if delay < 0 {
		delay = 0
	}
	if delay > scheduleHorizon {
		return 0, fmt.Errorf("requested activation time is more than %s ahead", scheduleHorizon)
	}
	return delay, nil
}

func parseTaiTimestamp(value string) (seconds, nanos int64, err error) {
	parts := strings.SplitN(value, ":", 2)
	if value == "" || len(parts) == 0 {
		return 0, 0, fmt.Errorf("requested_time is required for scheduled activation")
	}
	seconds, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid requested_time: %v", err)
	}
	if len(parts) == 2 && parts[1] != "" {
		nanos, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid requested_time: %v", err)
		}
	}
	return seconds, nanos, nil
}
