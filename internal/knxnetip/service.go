package knxnetip

import "fmt"

// ServiceType is the 16-bit KNXnet/IP service identifier.
type ServiceType uint16

// Core services.
const (
	SearchRequest            ServiceType = 0x0201
	SearchResponse           ServiceType = 0x0202
	DescriptionRequest       ServiceType = 0x0203
	DescriptionResponse      ServiceType = 0x0204
	ConnectRequest           ServiceType = 0x0205
	ConnectResponse          ServiceType = 0x0206
	ConnectionStateRequest   ServiceType = 0x0207
	ConnectionStateResponse  ServiceType = 0x0208
	DisconnectRequest        ServiceType = 0x0209
	DisconnectResponse       ServiceType = 0x020A
	SearchRequestExtended    ServiceType = 0x020B
	SearchResponseExtended   ServiceType = 0x020C
	DeviceConfigurationReq   ServiceType = 0x0310
	DeviceConfigurationAck   ServiceType = 0x0311
	TunnellingRequest        ServiceType = 0x0420
	TunnellingAck            ServiceType = 0x0421
	TunnellingFeatureGet     ServiceType = 0x0422
	TunnellingFeatureResp    ServiceType = 0x0423
	TunnellingFeatureSet     ServiceType = 0x0424
	TunnellingFeatureInfo    ServiceType = 0x0425
	RoutingIndication        ServiceType = 0x0530
	RoutingLostMessage       ServiceType = 0x0531
	RoutingBusy              ServiceType = 0x0532
	RoutingSystemBroadcast   ServiceType = 0x0533
	RemoteDiagRequest        ServiceType = 0x0740
	RemoteDiagResponse       ServiceType = 0x0741
	RemoteBasicConfigRequest ServiceType = 0x0742
	RemoteResetRequest       ServiceType = 0x0743
	SecureWrapper            ServiceType = 0x0950
	SecureSessionRequest     ServiceType = 0x0951
	SecureSessionResponse    ServiceType = 0x0952
	SecureSessionAuth        ServiceType = 0x0953
	SecureSessionStatus      ServiceType = 0x0954
	SecureTimerNotify        ServiceType = 0x0955
)

var serviceNames = map[ServiceType]string{
	SearchRequest:            "SEARCH_REQUEST",
	SearchResponse:           "SEARCH_RESPONSE",
	DescriptionRequest:       "DESCRIPTION_REQUEST",
	DescriptionResponse:      "DESCRIPTION_RESPONSE",
	ConnectRequest:           "CONNECT_REQUEST",
	ConnectResponse:          "CONNECT_RESPONSE",
	ConnectionStateRequest:   "CONNECTIONSTATE_REQUEST",
	ConnectionStateResponse:  "CONNECTIONSTATE_RESPONSE",
	DisconnectRequest:        "DISCONNECT_REQUEST",
	DisconnectResponse:       "DISCONNECT_RESPONSE",
	SearchRequestExtended:    "SEARCH_REQUEST_EXT",
	SearchResponseExtended:   "SEARCH_RESPONSE_EXT",
	DeviceConfigurationReq:   "DEVICE_CONFIGURATION_REQUEST",
	DeviceConfigurationAck:   "DEVICE_CONFIGURATION_ACK",
	TunnellingRequest:        "TUNNELLING_REQUEST",
	TunnellingAck:            "TUNNELLING_ACK",
	TunnellingFeatureGet:     "TUNNELLING_FEATURE_GET",
	TunnellingFeatureResp:    "TUNNELLING_FEATURE_RESPONSE",
	TunnellingFeatureSet:     "TUNNELLING_FEATURE_SET",
	TunnellingFeatureInfo:    "TUNNELLING_FEATURE_INFO",
	RoutingIndication:        "ROUTING_INDICATION",
	RoutingLostMessage:       "ROUTING_LOST_MESSAGE",
	RoutingBusy:              "ROUTING_BUSY",
	RoutingSystemBroadcast:   "ROUTING_SYSTEM_BROADCAST",
	RemoteDiagRequest:        "REMOTE_DIAG_REQUEST",
	RemoteDiagResponse:       "REMOTE_DIAG_RESPONSE",
	RemoteBasicConfigRequest: "REMOTE_BASIC_CONFIG_REQUEST",
	RemoteResetRequest:       "REMOTE_RESET_REQUEST",
	SecureWrapper:            "SECURE_WRAPPER",
	SecureSessionRequest:     "SESSION_REQUEST",
	SecureSessionResponse:    "SESSION_RESPONSE",
	SecureSessionAuth:        "SESSION_AUTHENTICATE",
	SecureSessionStatus:      "SESSION_STATUS",
	SecureTimerNotify:        "TIMER_NOTIFY",
}

// IsKnown reports whether s is one of the enumerated service types.
func (s ServiceType) IsKnown() bool {
	_, ok := serviceNames[s]
	return ok
}

// String implements fmt.Stringer.
func (s ServiceType) String() string {
	if name, ok := serviceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SERVICE_0x%04X", uint16(s))
}

// Status is a KNXnet/IP response status code. The raw byte is always
// preserved; only String maps unrecognised codes for display.
type Status uint8

// Status codes.
const (
	StatusNoError                Status = 0x00
	StatusHostProtocolType       Status = 0x01
	StatusVersionNotSupported    Status = 0x02
	StatusSequenceNumber         Status = 0x04
	StatusError                  Status = 0x0F
	StatusConnectionID           Status = 0x21
	StatusConnectionType         Status = 0x22
	StatusConnectionOption       Status = 0x23
	StatusNoMoreConnections      Status = 0x24
	StatusNoMoreUniqueConnection Status = 0x25
	StatusDataConnection         Status = 0x26
	StatusKNXConnection          Status = 0x27
	StatusAuthorisation          Status = 0x28
	StatusTunnellingLayer        Status = 0x29
)

var statusNames = map[Status]string{
	StatusNoError:                "E_NO_ERROR",
	StatusHostProtocolType:       "E_HOST_PROTOCOL_TYPE",
	StatusVersionNotSupported:    "E_VERSION_NOT_SUPPORTED",
	StatusSequenceNumber:         "E_SEQUENCE_NUMBER",
	StatusError:                  "E_ERROR",
	StatusConnectionID:           "E_CONNECTION_ID",
	StatusConnectionType:         "E_CONNECTION_TYPE",
	StatusConnectionOption:       "E_CONNECTION_OPTION",
	StatusNoMoreConnections:      "E_NO_MORE_CONNECTIONS",
	StatusNoMoreUniqueConnection: "E_NO_MORE_UNIQUE_CONNECTIONS",
	StatusDataConnection:         "E_DATA_CONNECTION",
	StatusKNXConnection:          "E_KNX_CONNECTION",
	StatusAuthorisation:          "E_AUTHORISATION_ERROR",
	StatusTunnellingLayer:        "E_TUNNELLING_LAYER",
}

// IsKnown reports whether s is an enumerated status code.
func (s Status) IsKnown() bool {
	_, ok := statusNames[s]
	return ok
}

// String implements fmt.Stringer. Unrecognised codes display as
// E_NO_ERROR with the raw value attached.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("E_NO_ERROR(0x%02X)", uint8(s))
}

// ServiceFamily identifies a group of KNXnet/IP services.
type ServiceFamily uint8

// Service families advertised in SupportedServiceFamilies DIBs.
const (
	FamilyCore             ServiceFamily = 0x02
	FamilyDeviceManagement ServiceFamily = 0x03
	FamilyTunnelling       ServiceFamily = 0x04
	FamilyRouting          ServiceFamily = 0x05
	FamilyRemoteLogging    ServiceFamily = 0x06
	FamilyRemoteConfigDiag ServiceFamily = 0x07
	FamilyObjectServer     ServiceFamily = 0x08
	FamilySecurity         ServiceFamily = 0x09
)

var familyNames = map[ServiceFamily]string{
	FamilyCore:             "CORE",
	FamilyDeviceManagement: "DEVICE_MANAGEMENT",
	FamilyTunnelling:       "TUNNELLING",
	FamilyRouting:          "ROUTING",
	FamilyRemoteLogging:    "REMOTE_LOGGING",
	FamilyRemoteConfigDiag: "REMOTE_CONFIGURATION_DIAGNOSIS",
	FamilyObjectServer:     "OBJECT_SERVER",
	FamilySecurity:         "SECURITY",
}

// String implements fmt.Stringer.
func (f ServiceFamily) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FAMILY_0x%02X", uint8(f))
}

// ConnectionType is the connection type in CRI and CRD blocks.
type ConnectionType uint8

// Connection types.
const (
	DeviceMgmtConnection    ConnectionType = 0x03
	TunnelConnection        ConnectionType = 0x04
	RemoteLoggingConnection ConnectionType = 0x06
	RemoteConfigConnection  ConnectionType = 0x07
	ObjectServerConnection  ConnectionType = 0x08
)

// String implements fmt.Stringer.
func (c ConnectionType) String() string {
	switch c {
	case DeviceMgmtConnection:
		return "DEVICE_MGMT_CONNECTION"
	case TunnelConnection:
		return "TUNNEL_CONNECTION"
	case RemoteLoggingConnection:
		return "REMLOG_CONNECTION"
	case RemoteConfigConnection:
		return "REMCONF_CONNECTION"
	case ObjectServerConnection:
		return "OBJSVR_CONNECTION"
	default:
		return fmt.Sprintf("CONNECTION_0x%02X", uint8(c))
	}
}

// TunnelLayer is the KNX layer requested for a tunnel connection.
type TunnelLayer uint8

// Tunnel layers.
const (
	TunnelLinkLayer  TunnelLayer = 0x02
	TunnelRaw        TunnelLayer = 0x04
	TunnelBusMonitor TunnelLayer = 0x80
)

// String implements fmt.Stringer.
func (l TunnelLayer) String() string {
	switch l {
	case TunnelLinkLayer:
		return "TUNNEL_LINKLAYER"
	case TunnelRaw:
		return "TUNNEL_RAW"
	case TunnelBusMonitor:
		return "TUNNEL_BUSMONITOR"
	default:
		return fmt.Sprintf("LAYER_0x%02X", uint8(l))
	}
}
