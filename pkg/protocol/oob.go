package protocol

import "errors"

// ErrNotOutOfBand is returned when a packet lacks the out-of-band marker.
var ErrNotOutOfBand = errors.New("protocol: packet is not out-of-band")

// Connectionless request and response names.
const (
	OOBGetChallenge      = "getchallenge"
	OOBChallengeResponse = "challengeResponse"
	OOBConnect           = "connect"
	OOBConnectResponse   = "connectResponse"
	OOBGetStatus         = "getstatus"
	OOBStatusResponse    = "statusResponse"
	OOBGetInfo           = "getinfo"
	OOBInfoResponse      = "infoResponse"
	OOBRcon              = "rcon"
	OOBPrint             = "print"
	OOBDisconnect        = "disconnect"
)

// IsOutOfBand reports whether packet starts with the out-of-band marker.
func IsOutOfBand(packet []byte) bool {
	return len(packet) >= 4 &&
		packet[0] == 0xFF && packet[1] == 0xFF && packet[2] == 0xFF && packet[3] == 0xFF
}

// OutOfBandPacket prefixes payload with the out-of-band marker.
func OutOfBandPacket(payload []byte) []byte {
	p := make([]byte, 4+len(payload))
	p[0], p[1], p[2], p[3] = 0xFF, 0xFF, 0xFF, 0xFF
	copy(p[4:], payload)
	return p
}

// OutOfBandPayload strips the out-of-band marker.
func OutOfBandPayload(packet []byte) ([]byte, error) {
	if !IsOutOfBand(packet) {
		return nil, ErrNotOutOfBand
	}
	return packet[4:], nil
}
