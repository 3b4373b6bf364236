package aes67

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// SDPInfo is the AES67 view of a parsed session description.
type SDPInfo struct {
	SessionName   string      `json:"session_name,omitempty"`
	SessionID     string      `json:"session_id,omitempty"`
	OriginAddress string      `json:"origin_address,omitempty"`
	SourceIP      string      `json:"source_ip,omitempty"`
	Port          uint16      `json:"port,omitempty"`
	PayloadType   uint8       `json:"payload_type,omitempty"`
	Encoding      string      `json:"encoding,omitempty"`
	Format        AudioFormat `json:"format,omitempty"`

	// PacketTimeUs is the declared packet time in microseconds, defaulting to
	// the AES67-mandatory 1 ms.
	PacketTimeUs uint32 `json:"packet_time_us,omitempty"`

	// PtpReference is set when the description carries a ts-refclk PTP
	// attribute; PtpClockID holds the optional grandmaster identity.
	PtpReference bool   `json:"ptp_reference,omitempty"`
	PtpClockID   string `json:"ptp_clock_id,omitempty"`
}

// Valid reports whether the description carries enough to open a stream.
func (info *SDPInfo) Valid() bool {
	return info.SourceIP != "" && info.Port > 0 &&
		info.Format.SampleRate > 0 && info.Format.Channels > 0
}

// ParseSDP extracts the AES67 profile fields from an RFC 4566 document. Lines
// may be CRLF or LF delimited. A document that does not parse at all returns
// ErrInvalidSDP; a parseable document with missing fields comes back with
// Valid() == false.
func ParseSDP(raw string) (*SDPInfo, error) {
	if !strings.HasPrefix(strings.TrimLeft(raw, "\r\n"), "v=") {
		return nil, fmt.Errorf("%w: missing version line", ErrInvalidSDP)
	}

	desc := sdp.SessionDescription{}
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSDP, err)
	}

	info := &SDPInfo{
		SessionName:   string(desc.SessionName),
		SessionID:     strconv.FormatUint(desc.Origin.SessionID, 10),
		OriginAddress: desc.Origin.UnicastAddress,
		PacketTimeUs:  1000,
	}

	if desc.ConnectionInformation != nil && desc.ConnectionInformation.Address != nil {
		info.SourceIP = stripAddressSuffix(desc.ConnectionInformation.Address.Address)
	}

	for _, attr := range desc.Attributes {
		parseRefclkAttribute(info, attr)
	}

	for _, media := range desc.MediaDescriptions {
		if media.MediaName.Media != "audio" {
			continue
		}
		info.Port = uint16(media.MediaName.Port.Value)
		if len(media.MediaName.Formats) > 0 {
			if pt, err := strconv.ParseUint(media.MediaName.Formats[0], 10, 7); err == nil {
				info.PayloadType = uint8(pt)
			}
		}
		if media.ConnectionInformation != nil && media.ConnectionInformation.Address != nil {
			info.SourceIP = stripAddressSuffix(media.ConnectionInformation.Address.Address)
		}

		for _, attr := range media.Attributes {
			switch attr.Key {
			case "rtpmap":
				parseRtpmapAttribute(info, attr.Value)
			case "ptime":
				if ms, err := strconv.ParseFloat(attr.Value, 64); err == nil && ms > 0 {
					info.PacketTimeUs = uint32(ms*1000 + 0.5)
				}
			default:
				parseRefclkAttribute(info, attr)
			}
		}
		break
	}

	return info, nil
}

func stripAddressSuffix(address string) string {
	if idx := strings.IndexByte(address, '/'); idx >= 0 {
		return address[:idx]
	}
	return address
}

// parseRtpmapAttribute reads "<pt> L24/48000/2" style values.
func parseRtpmapAttribute(info *SDPInfo, value string) {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return
	}
	parts := strings.Split(fields[1], "/")
	if len(parts) < 2 {
		return
	}
	info.Encoding = parts[0]
	info.Format.BitDepth = bitDepthFromEncoding(parts[0])
	if rate, err := strconv.ParseUint(parts[1], 10, 32); err == nil {
		info.Format.SampleRate = uint32(rate)
	}
	if len(parts) >= 3 {
		if channels, err := strconv.ParseUint(parts[2], 10, 8); err == nil {
			info.Format.Channels = uint8(channels)
		}
	} else {
		info.Format.Channels = 1
	}
}

// parseRefclkAttribute reads "ts-refclk:ptp=IEEE1588-<ver>[:<clock-id>]".
func parseRefclkAttribute(info *SDPInfo, attr sdp.Attribute) {
	if attr.Key != "ts-refclk" || !strings.HasPrefix(attr.Value, "ptp=IEEE1588") {
		return
	}
	info.PtpReference = true
	rest := strings.TrimPrefix(attr.Value, "ptp=")
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		info.PtpClockID = rest[idx+1:]
	}
}

// ValidateAES67 checks a parsed description against the AES67 interop
// profile.
func ValidateAES67(info *SDPInfo) error {
	if !info.Valid() {
		return ErrInvalidSDP
	}
	if err := info.Format.Validate(); err != nil {
		return err
	}
	if bitDepthFromEncoding(info.Encoding) != info.Format.BitDepth {
		return fmt.Errorf("%w: encoding %q does not match bit depth %d",
			ErrInvalidSDP, info.Encoding, info.Format.BitDepth)
	}
	if !validPacketTime(info.PacketTimeUs) {
		return fmt.Errorf("%w: packet time %dus", ErrInvalidPacketTime, info.PacketTimeUs)
	}
	return nil
}

// ptimeValue renders a packet time in microseconds as the SDP millisecond
// attribute value.
func ptimeValue(packetTimeUs uint32) string {
	if packetTimeUs%1000 == 0 {
		return strconv.FormatUint(uint64(packetTimeUs/1000), 10)
	}
	return strings.TrimRight(strconv.FormatFloat(float64(packetTimeUs)/1000.0, 'f', 3, 64), "0")
}

// GenerateSDP emits the session description declaring one AES67 stream:
// v/o/s/c/t, an audio media section, rtpmap, ptime, ts-refclk and mediaclk,
// CRLF terminated.
func GenerateSDP(multicastIP string, port uint16, payloadType uint8, format AudioFormat,
	sessionName string, sessionID uint64, originAddress string, packetTimeUs uint32) (string, error) {

	if err := format.Validate(); err != nil {
		return "", err
	}
	if port == 0 {
		return "", ErrInvalidPort
	}
	if packetTimeUs == 0 {
		packetTimeUs = 1000
	}

	ttl := 32
	rtpmap := fmt.Sprintf("%d %s/%d/%d", payloadType, format.EncodingName(),
		format.SampleRate, format.Channels)

	media := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   "audio",
			Port:    sdp.RangedPort{Value: int(port)},
			Protos:  []string{"RTP", "AVP"},
			Formats: []string{strconv.Itoa(int(payloadType))},
		},
	}
	media = media.
		WithValueAttribute("rtpmap", rtpmap).
		WithValueAttribute("ptime", ptimeValue(packetTimeUs)).
		WithValueAttribute("ts-refclk", "ptp=IEEE1588-2008").
		WithValueAttribute("mediaclk", "direct=0")

	desc := sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      sessionID,
			SessionVersion: sessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: originAddress,
		},
		SessionName: sdp.SessionName(sessionName),
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: multicastIP, TTL: &ttl},
		},
		TimeDescriptions: []sdp.TimeDescription{{}},
		MediaDescriptions: []*sdp.MediaDescription{media},
	}

	raw, err := desc.Marshal()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSDP, err)
	}
	return string(raw), nil
}
