package aes67

import "sync"

// NodeState is the lifecycle of the NMOS control surface.
type NodeState int

const (
	NodeStateStopped NodeState = iota
	NodeStateStarting
	NodeStateRunning
	NodeStateRegistered
	NodeStateError
)

func (s NodeState) String() string {
	switch s {
	case NodeStateStopped:
		return "Stopped"
	case NodeStateStarting:
		return "Starting"
	case NodeStateRunning:
		return "Running"
	case NodeStateRegistered:
		return "Registered"
	case NodeStateError:
		return "Error"
	}
	return "Unknown"
}

// ConnectionState is the IS-05 view of a receiver subscription.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateStaged       ConnectionState = "staged"
	ConnectionStateActive       ConnectionState = "active"
)

const transportRtpMulticast = "urn:x-nmos:transport:rtp.mcast"

// TransportParams is the IS-05 transport parameter set for one RTP leg. The
// FEC and RTCP mirror fields are recorded and echoed but not acted on.
type TransportParams struct {
	SourceIP        string `json:"source_ip,omitempty"`
	MulticastIP     string `json:"multicast_ip,omitempty"`
	InterfaceIP     string `json:"interface_ip,omitempty"`
	DestinationPort uint16 `json:"destination_port,omitempty"`
	SourcePort      uint16 `json:"source_port,omitempty"`
	RtpEnabled      *bool  `json:"rtp_enabled,omitempty"`

	FecEnabled           *bool  `json:"fec_enabled,omitempty"`
	FecDestinationIP     string `json:"fec_destination_ip,omitempty"`
	FecMode              string `json:"fec_mode,omitempty"`
	Fec1DDestinationPort uint16 `json:"fec1D_destination_port,omitempty"`
	Fec2DDestinationPort uint16 `json:"fec2D_destination_port,omitempty"`

	RtcpEnabled         *bool  `json:"rtcp_enabled,omitempty"`
	RtcpDestinationIP   string `json:"rtcp_destination_ip,omitempty"`
	RtcpDestinationPort uint16 `json:"rtcp_destination_port,omitempty"`
}

// streamAddress picks the receive address a parameter set points at.
func (p TransportParams) streamAddress() string {
	if p.MulticastIP != "" {
		return p.MulticastIP
	}
	return p.SourceIP
}

// Activation modes defined by IS-05.
const (
	ActivationModeImmediate         = "activate_immediate"
	ActivationModeScheduledAbsolute = "activate_scheduled_absolute"
	ActivationModeScheduledRelative = "activate_scheduled_relative"
)

// ConnectionRequest is the body of a PATCH on a receiver's staged endpoint.
// Transport parameters are accepted flat alongside the control fields.
type ConnectionRequest struct {
	TransportParams

	SenderID     string `json:"sender_id,omitempty"`
	MasterEnable *bool  `json:"master_enable,omitempty"`

	// ActivationMode empty means stage only; activation happens on a later
	// PATCH carrying a mode.
	ActivationMode string `json:"activation_mode,omitempty"`

	// RequestedTime is a TAI "<seconds>:<nanoseconds>" wall-clock target for
	// activate_scheduled_absolute or a relative offset in the same notation
	// for activate_scheduled_relative.
	RequestedTime string `json:"requested_time,omitempty"`

	// TransportFile carries SDP ("application/sdp") describing the stream.
	TransportFile string `json:"transport_file,omitempty"`
}

// ConnectionResponse reports the outcome of a stage or activate operation.
type ConnectionResponse struct {
	Success      bool            `json:"success"`
	State        ConnectionState `json:"state"`
	ErrorMessage string          `json:"error,omitempty"`
	ActiveParams TransportParams `json:"active_params,omitempty"`
}

// stagedConnection is the staged half of the two-phase commit.
type stagedConnection struct {
	Params         TransportParams `json:"transport_params"`
	SenderID       string          `json:"sender_id,omitempty"`
	MasterEnable   bool            `json:"master_enable"`
	ActivationMode string          `json:"activation_mode,omitempty"`
	RequestedTime  string          `json:"requested_time,omitempty"`
	ActivationTime string          `json:"activation_time,omitempty"`
	TransportFile  string          `json:"transport_file,omitempty"`
}

// NMOSSender is the IS-04 resource summary for a sender.
type NMOSSender struct {
	Id        string `json:"id"`
	Label     string `json:"label"`
	DeviceID  string `json:"device_id"`
	Transport string `json:"transport"`
}

// NMOSReceiver is the IS-04 resource summary for a receiver.
type NMOSReceiver struct {
	Id        string `json:"id"`
	Label     string `json:"label"`
	DeviceID  string `json:"device_id"`
	Transport string `json:"transport"`

	SubscriptionSenderID string          `json:"subscription_sender_id,omitempty"`
	ConnectionState      ConnectionState `json:"connection_state,omitempty"`
}

// Registry maps engine ids onto live sender and receiver engines. The NMOS
// node reads it; engines publish themselves through it, which keeps the
// control surface free of back-references into the data plane.
type Registry struct {
	mu        sync.Mutex
	senders   map[string]*Sender
	receivers map[string]*Receiver
}

func NewRegistry() *Registry {
	return &Registry{
		senders:   make(map[string]*Sender),
		receivers: make(map[string]*Receiver),
	}
}

func (r *Registry) AddSender(sender *Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.senders[sender.Id()] = sender
}

func (r *Registry) RemoveSender(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.senders, id)
}

func (r *Registry) Sender(id string) (*Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.senders[id]
	return sender, ok
}

func (r *Registry) AddReceiver(receiver *Receiver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.receivers[receiver.Id()] = receiver
}

func (r *Registry) RemoveReceiver(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.receivers, id)
}

func (r *Registry) Receiver(id string) (*Receiver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	receiver, ok := r.receivers[id]
	return receiver, ok
}
