package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const DefaultMediaProtocol = "https"

// MediaEndpointConfig holds validated coordinates of a room's media service.
// URLs are derived from the fields on demand and never stored.
type MediaEndpointConfig struct {
	Host       string
	Port       int
	Protocol   string
	WebRTCPort int
	APIPort    int
	CreatedAt  time.Time
}

// Port accepts both JSON numbers and numeric strings.
type Port int

func (p *Port) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port %q is not a number", s)
	}
	*p = Port(n)
	return nil
}

// MediaConfigInput is the unvalidated form received from callers.
type MediaConfigInput struct {
	Host       string `json:"host"`
	Port       Port   `json:"port"`
	Protocol   string `json:"protocol,omitempty"`
	WebRTCPort Port   `json:"webrtcPort,omitempty"`
	APIPort    Port   `json:"apiPort,omitempty"`
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// ValidateMediaConfig checks the input and fills protocol and sub-port defaults.
func ValidateMediaConfig(in *MediaConfigInput, now time.Time) (MediaEndpointConfig, error) {
	if in == nil {
		return MediaEndpointConfig{}, invalidConfig("media config is required")
	}
	host := strings.TrimSpace(in.Host)
	if host == "" {
		return MediaEndpointConfig{}, invalidConfig("media host is required")
	}
	port := int(in.Port)
	if !validPort(port) {
		return MediaEndpointConfig{}, invalidConfig("media port %d out of range", port)
	}
	cfg := MediaEndpointConfig{
		Host:       host,
		Port:       port,
		Protocol:   strings.TrimSpace(in.Protocol),
		WebRTCPort: int(in.WebRTCPort),
		APIPort:    int(in.APIPort),
		CreatedAt:  now,
	}
	if cfg.Protocol == "" {
		cfg.Protocol = DefaultMediaProtocol
	}
	if cfg.WebRTCPort == 0 {
		cfg.WebRTCPort = port
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = port
	}
	if !validPort(cfg.WebRTCPort) {
		return MediaEndpointConfig{}, invalidConfig("webrtc port %d out of range", cfg.WebRTCPort)
	}
	if !validPort(cfg.APIPort) {
		return MediaEndpointConfig{}, invalidConfig("api port %d out of range", cfg.APIPort)
	}
	return cfg, nil
}

func (m MediaEndpointConfig) url(port int) string {
	return m.Protocol + "://" + net.JoinHostPort(m.Host, strconv.Itoa(port))
}

func (m MediaEndpointConfig) SignalingURL() string { return m.url(m.Port) }
func (m MediaEndpointConfig) WebRTCURL() string    { return m.url(m.WebRTCPort) }
func (m MediaEndpointConfig) APIURL() string       { return m.url(m.APIPort) }

func (m MediaEndpointConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Host         string    `json:"host"`
		Port         int       `json:"port"`
		Protocol     string    `json:"protocol"`
		WebRTCPort   int       `json:"webrtcPort"`
		APIPort      int       `json:"apiPort"`
		SignalingURL string    `json:"signalingUrl"`
		WebRTCURL    string    `json:"webrtcUrl"`
		APIURL       string    `json:"apiUrl"`
		CreatedAt    time.Time `json:"createdAt"`
	}{
		Host:         m.Host,
		Port:         m.Port,
		Protocol:     m.Protocol,
		WebRTCPort:   m.WebRTCPort,
		APIPort:      m.APIPort,
		SignalingURL: m.SignalingURL(),
		WebRTCURL:    m.WebRTCURL(),
		APIURL:       m.APIURL(),
		CreatedAt:    m.CreatedAt,
	})
}
