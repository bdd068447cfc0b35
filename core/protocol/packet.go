package protocol

// Packet is any value that can travel on the wire.
type Packet interface {
	// Tag returns the variant name used as the JSON object key.
	Tag() string
}

// ClientPacket is sent by clients: Join or Send.
type ClientPacket interface {
	Packet
	clientPacket()
}

// ServerPacket is sent by the server: Message or Error.
type ServerPacket interface {
	Packet
	serverPacket()
}

// Variant tags.
const (
	TagJoin    = "Join"
	TagSend    = "Send"
	TagMessage = "Message"
	TagError   = "Error"
)

// Join asks to receive future messages posted to Group.
type Join struct {
	Group string `json:"group"`
}

// Send asks to broadcast Message to Group.
type Send struct {
	Group   string `json:"group"`
	Message string `json:"message"`
}

// Message is a broadcast delivery.
type Message struct {
	Group   string `json:"group"`
	Message string `json:"message"`
}

// Error is an application-level failure notice. On the wire the payload is a
// bare string: {"Error":"text"}.
type Error struct {
	Text string
}

func (Join) Tag() string    { return TagJoin }
func (Send) Tag() string    { return TagSend }
func (Message) Tag() string { return TagMessage }
func (Error) Tag() string   { return TagError }

func (Join) clientPacket()    {}
func (Send) clientPacket()    {}
func (Message) serverPacket() {}
func (Error) serverPacket()   {}
