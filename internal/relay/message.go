package relay

import "encoding/json"

// Client→server message types.
const (
	TypeSubscribe      = "subscribe"
	TypeUploadComplete = "upload_complete"
	TypeCameraFrame    = "camera_frame"
	TypeCameraStatus   = "camera_status"
	TypePing           = "ping"
)

// Server→client message types.
const (
	TypeConnected  = "connected"
	TypeSubscribed = "subscribed"
	TypeAck        = "ack"
	TypeError      = "error"
	TypePong       = "pong"
)

// clientMessage is the union of every inbound frame shape. Unknown fields
// are dropped by encoding/json; unknown types are ignored by the broker.
type clientMessage struct {
	Type string `json:"type"`

	Token string `json:"token,omitempty"`

	// upload_complete
	DocType           string   `json:"docType,omitempty"`
	Title             string   `json:"title,omitempty"`
	UploadedBy        string   `json:"uploadedBy,omitempty"`
	ResultID          *int64   `json:"resultId,omitempty"`
	ObjectKeys        []string `json:"objectKeys,omitempty"`
	ImageURLs         []string `json:"imageUrls,omitempty"`
	DeferredToDesktop bool     `json:"deferredToDesktop,omitempty"`

	// camera_frame
	FrameData string `json:"frameData,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	TS        int64  `json:"ts,omitempty"`

	// camera_status
	Status string `json:"status,omitempty"`
}

// serverMessage covers every outbound frame shape.
type serverMessage struct {
	Type string `json:"type"`

	Token string `json:"token,omitempty"`
	Error string `json:"error,omitempty"`

	// ack
	Delivered *int `json:"delivered,omitempty"`

	// upload_complete broadcast
	DocType           string   `json:"docType,omitempty"`
	Title             string   `json:"title,omitempty"`
	UploadedBy        string   `json:"uploadedBy,omitempty"`
	ResultID          *int64   `json:"resultId,omitempty"`
	ObjectKeys        []string `json:"objectKeys,omitempty"`
	ImageURLs         []string `json:"imageUrls,omitempty"`
	DeferredToDesktop bool     `json:"deferredToDesktop,omitempty"`

	// camera_frame broadcast
	FrameData string `json:"frameData,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	TS        int64  `json:"ts,omitempty"`

	// camera_status broadcast
	Status string `json:"status,omitempty"`
}

func marshalMessage(msg serverMessage) []byte {
	out, _ := json.Marshal(msg)
	return out
}
