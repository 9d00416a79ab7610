package domain

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Mode selects how the host reaches the remote player.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeListen
	ModeConnect
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeListen:
		return "listen"
	case ModeConnect:
		return "connect"
	default:
		return "unknown"
	}
}

// ParseMode parses the textual form used by config files and flags.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "standalone":
		return ModeDisabled, nil
	case "listen":
		return ModeListen, nil
	case "connect":
		return ModeConnect, nil
	default:
		return ModeDisabled, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfiguration, s)
	}
}

// Phase is the lifecycle phase of the remote session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseListening
	PhaseConnecting
	PhaseConnected
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseListening:
		return "Listening"
	case PhaseConnecting:
		return "Connecting"
	case PhaseConnected:
		return "Connected"
	case PhaseDisconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// Active reports whether the phase owns a live or pending connection.
func (p Phase) Active() bool {
	return p == PhaseListening || p == PhaseConnecting || p == PhaseConnected
}

// Default ports of the remoting protocol.
const (
	DefaultPort uint16 = 8265
)

// SessionConfig holds the remote session target parameters.
type SessionConfig struct {
	Mode          Mode
	Address       string
	Port          uint16
	TransportPort uint16
	Ephemeral     bool
}

// Validate checks the parameters. A disabled mode is always valid.
func (c SessionConfig) Validate() error {
	switch c.Mode {
	case ModeDisabled:
		return nil
	case ModeConnect:
		if strings.TrimSpace(c.Address) == "" {
			return fmt.Errorf("%w: address is required in connect mode", ErrInvalidConfiguration)
		}
	case ModeListen:
	default:
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfiguration, int(c.Mode))
	}
	if c.Port == 0 && !c.Ephemeral {
		return fmt.Errorf("%w: port is required", ErrInvalidConfiguration)
	}
	return nil
}

// ListenAddress returns the address to bind in listen mode.
func (c SessionConfig) ListenAddress() string {
	port := c.Port
	if c.Ephemeral {
		port = 0
	}
	return joinHostPort(c.Address, port)
}

// DialAddress returns the address to dial in connect mode.
func (c SessionConfig) DialAddress() string {
	return joinHostPort(c.Address, c.Port)
}

// joinHostPort accepts IPv6 literals with or without brackets.
func joinHostPort(host string, port uint16) string {
	host = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(host), "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}
