package sfu

import (
	"fmt"

	"github.com/pion/randutil"
	"github.com/pion/webrtc/v4"
)

// RTPCodecCapability is one codec the router can route, in the shape
// signaling clients expect (kind + mime + clock + fmtp parameters).
type RTPCodecCapability struct {
	Kind       MediaKind      `json:"kind"`
	MimeType   string         `json:"mimeType"`
	ClockRate  uint32         `json:"clockRate"`
	Channels   uint16         `json:"channels,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RTPHeaderExtension is an advertised header extension.
type RTPHeaderExtension struct {
	Kind        MediaKind `json:"kind"`
	URI         string    `json:"uri"`
	PreferredID int       `json:"preferredId"`
}

// RTPCapabilities is the full capability set announced in welcome and
// routerRtpCapabilities.
type RTPCapabilities struct {
	Codecs           []RTPCodecCapability `json:"codecs"`
	HeaderExtensions []RTPHeaderExtension `json:"headerExtensions"`
}

// RouterRTPCapabilities returns the static capability set: opus at
// 48 kHz stereo for audio, VP8 and H264 for video.
func RouterRTPCapabilities() RTPCapabilities {
	return RTPCapabilities{
		Codecs: []RTPCodecCapability{
			{
				Kind:      KindAudio,
				MimeType:  webrtc.MimeTypeOpus,
				ClockRate: 48000,
				Channels:  2,
				Parameters: map[string]any{
					"useinbandfec": 1,
					"usedtx":       1,
				},
			},
			{
				Kind:      KindVideo,
				MimeType:  webrtc.MimeTypeVP8,
				ClockRate: 90000,
			},
			{
				Kind:      KindVideo,
				MimeType:  webrtc.MimeTypeH264,
				ClockRate: 90000,
				Parameters: map[string]any{
					"level-asymmetry-allowed": 1,
					"packetization-mode":      1,
					"profile-level-id":        "42e01f",
				},
			},
		},
		HeaderExtensions: []RTPHeaderExtension{
			{
				Kind:        KindAudio,
				URI:         "urn:ietf:params:rtp-hdrext:ssrc-audio-level",
				PreferredID: 1,
			},
			{
				Kind:        KindVideo,
				URI:         "http://www.webrtc.org/experiments/rtp-hdrext/abs-send-time",
				PreferredID: 4,
			},
		},
	}
}

const credentialRunes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"

// mintICEParameters generates fresh ufrag/password credentials for a
// new transport. The router is ICE-lite: it never initiates checks.
func mintICEParameters() (webrtc.ICEParameters, error) {
	ufrag, err := randutil.GenerateCryptoRandomString(16, credentialRunes)
	if err != nil {
		return webrtc.ICEParameters{}, fmt.Errorf("generate ice ufrag: %w", err)
	}
	pwd, err := randutil.GenerateCryptoRandomString(32, credentialRunes)
	if err != nil {
		return webrtc.ICEParameters{}, fmt.Errorf("generate ice password: %w", err)
	}
	return webrtc.ICEParameters{
		UsernameFragment: ufrag,
		Password:         pwd,
		ICELite:          true,
	}, nil
}

// mintICECandidates returns the host candidate set for listenIP/port.
func mintICECandidates(listenIP string, port uint16) []webrtc.ICECandidate {
	return []webrtc.ICECandidate{
		{
			Foundation: "udpcandidate",
			Priority:   1076302079,
			Address:    listenIP,
			Protocol:   webrtc.ICEProtocolUDP,
			Port:       port,
			Typ:        webrtc.ICECandidateTypeHost,
			Component:  1,
		},
	}
}

// mintDTLSParameters returns the server-side DTLS role and certificate
// fingerprint offered to the client. The fingerprint is a placeholder
// until a real DTLS stack terminates media.
func mintDTLSParameters() webrtc.DTLSParameters {
	return webrtc.DTLSParameters{
		Role: webrtc.DTLSRoleAuto,
		Fingerprints: []webrtc.DTLSFingerprint{
			{
				Algorithm: "sha-256",
				Value:     "00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00:00",
			},
		},
	}
}
