package events

// Event type constants for kelindar/event.
const (
	TypeKey uint32 = iota + 1
	TypeWiFi
	TypeCloud
	TypeLinkkit
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// KeyCode identifies the physical key that produced a KeyEvent.
type KeyCode int

// Key codes.
const (
	KeyCodeBoot KeyCode = iota + 1
)

func (c KeyCode) String() string {
	if c == KeyCodeBoot {
		return "boot"
	}
	return "unknown"
}

// KeyValue is the classified press type reported by the input subsystem.
type KeyValue int

// Key values.
const (
	KeyClick KeyValue = iota + 1
	KeyLongClick
)

func (v KeyValue) String() string {
	switch v {
	case KeyClick:
		return "click"
	case KeyLongClick:
		return "long_click"
	default:
		return "unknown"
	}
}

// KeyEvent is a debounced, classified button press.
type KeyEvent struct {
	Code      KeyCode  `json:"code"`
	Value     KeyValue `json:"value"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for KeyEvent.
func (e KeyEvent) Type() uint32 { return TypeKey }

// WiFiCode is a Wi-Fi status change reported by the network manager.
type WiFiCode int

// Wi-Fi codes.
const (
	WiFiLinkUp WiFiCode = iota + 1
	WiFiGotIP
	WiFiDisconnected
)

func (c WiFiCode) String() string {
	switch c {
	case WiFiLinkUp:
		return "link_up"
	case WiFiGotIP:
		return "got_ip"
	case WiFiDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// WiFiEvent represents a Wi-Fi status change.
type WiFiEvent struct {
	Code      WiFiCode `json:"code"`
	Interface string   `json:"interface"`
	Address   string   `json:"address,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// Type returns the event type identifier for WiFiEvent.
func (e WiFiEvent) Type() uint32 { return TypeWiFi }

// CloudCode is a cloud connectivity change.
type CloudCode int

// Cloud codes.
const (
	CloudConnected CloudCode = iota + 1
	CloudDisconnected
)

func (c CloudCode) String() string {
	switch c {
	case CloudConnected:
		return "connected"
	case CloudDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// CloudEvent represents a cloud session connectivity change.
type CloudEvent struct {
	Code      CloudCode `json:"code"`
	Timestamp string    `json:"timestamp"`
}

// Type returns the event type identifier for CloudEvent.
func (e CloudEvent) Type() uint32 { return TypeCloud }

// LinkkitCode is a provisioning or cloud session lifecycle step.
type LinkkitCode int

// Linkkit lifecycle codes, in the order a typical pairing walks through them.
const (
	AWSSStart             LinkkitCode = iota + 1 // discovery only, not yet enabled
	AWSSEnable                                   // provisioning enabled
	AWSSLockChannel                              // got a sync packet, channel locked
	AWSSPasswdErr                                // passphrase decrypt failed
	AWSSGotSSIDPasswd
	AWSSConnectADHA                              // router discovery solution
	AWSSConnectADHAFail
	AWSSConnectAHA                               // soft-AP solution
	AWSSConnectAHAFail
	AWSSSetupNotify                              // device setup info sent
	AWSSConnectRouter                            // connecting to destination router
	AWSSConnectRouterFail
	AWSSGotIP
	AWSSSucNotify                                // pairing success notice sent
	AWSSBindNotify                               // user/device bind info sent
	ConnCloud                                    // connecting to cloud
	ConnCloudFail
	ConnCloudSuc
	Reset                                        // cloud acknowledged the reset report
)

var linkkitNames = map[LinkkitCode]string{
	AWSSStart:             "IOTX_AWSS_START",
	AWSSEnable:            "IOTX_AWSS_ENABLE",
	AWSSLockChannel:       "IOTX_AWSS_LOCK_CHAN",
	AWSSPasswdErr:         "IOTX_AWSS_PASSWD_ERR",
	AWSSGotSSIDPasswd:     "IOTX_AWSS_GOT_SSID_PASSWD",
	AWSSConnectADHA:       "IOTX_AWSS_CONNECT_ADHA",
	AWSSConnectADHAFail:   "IOTX_AWSS_CONNECT_ADHA_FAIL",
	AWSSConnectAHA:        "IOTX_AWSS_CONNECT_AHA",
	AWSSConnectAHAFail:    "IOTX_AWSS_CONNECT_AHA_FAIL",
	AWSSSetupNotify:       "IOTX_AWSS_SETUP_NOTIFY",
	AWSSConnectRouter:     "IOTX_AWSS_CONNECT_ROUTER",
	AWSSConnectRouterFail: "IOTX_AWSS_CONNECT_ROUTER_FAIL",
	AWSSGotIP:             "IOTX_AWSS_GOT_IP",
	AWSSSucNotify:         "IOTX_AWSS_SUC_NOTIFY",
	AWSSBindNotify:        "IOTX_AWSS_BIND_NOTIFY",
	ConnCloud:             "IOTX_CONN_CLOUD",
	ConnCloudFail:         "IOTX_CONN_CLOUD_FAIL",
	ConnCloudSuc:          "IOTX_CONN_CLOUD_SUC",
	Reset:                 "IOTX_RESET",
}

// String returns the SDK name of the lifecycle code, or "" if it is unknown.
func (c LinkkitCode) String() string {
	return linkkitNames[c]
}

// LinkkitEvent represents a provisioning/cloud SDK lifecycle notification.
type LinkkitEvent struct {
	Code      LinkkitCode `json:"code"`
	Timestamp string      `json:"timestamp"`
}

// Type returns the event type identifier for LinkkitEvent.
func (e LinkkitEvent) Type() uint32 { return TypeLinkkit }
