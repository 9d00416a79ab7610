package domain

import (
	"errors"
	"net"
	"testing"
)

func TestSessionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr bool
	}{
		{"disabled always valid", SessionConfig{Mode: ModeDisabled}, false},
		{"listen with port", SessionConfig{Mode: ModeListen, Port: 8001}, false},
		{"listen ephemeral without port", SessionConfig{Mode: ModeListen, Ephemeral: true}, false},
		{"listen without port", SessionConfig{Mode: ModeListen}, true},
		{"connect with address", SessionConfig{Mode: ModeConnect, Address: "10.0.0.5", Port: 8001}, false},
		{"connect empty address", SessionConfig{Mode: ModeConnect, Port: 8001}, true},
		{"connect blank address", SessionConfig{Mode: ModeConnect, Address: "  ", Port: 8001}, true},
		{"unknown mode", SessionConfig{Mode: Mode(42), Port: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("error %v does not wrap ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestSessionConfig_Addresses(t *testing.T) {
	c := SessionConfig{Mode: ModeListen, Address: "127.0.0.1", Port: 8001}
	if got := c.ListenAddress(); got != "127.0.0.1:8001" {
		t.Errorf("ListenAddress() = %q", got)
	}
	c.Ephemeral = true
	if got := c.ListenAddress(); got != "127.0.0.1:0" {
		t.Errorf("ephemeral ListenAddress() = %q", got)
	}
	if got := c.DialAddress(); got != "127.0.0.1:8001" {
		t.Errorf("DialAddress() = %q", got)
	}
}

func TestSessionConfig_AddressesIPv6(t *testing.T) {
	tests := []struct {
		address    string
		ephemeral  bool
		wantListen string
		wantDial   string
	}{
		{"::1", false, "[::1]:8265", "[::1]:8265"},
		{"[::1]", false, "[::1]:8265", "[::1]:8265"},
		{"::", true, "[::]:0", "[::]:8265"},
		{"fe80::1%eth0", false, "[fe80::1%eth0]:8265", "[fe80::1%eth0]:8265"},
		{"holo.local", false, "holo.local:8265", "holo.local:8265"},
	}
	for _, tt := range tests {
		c := SessionConfig{Mode: ModeConnect, Address: tt.address, Port: 8265, Ephemeral: tt.ephemeral}
		if got := c.ListenAddress(); got != tt.wantListen {
			t.Errorf("ListenAddress(%q) = %q, want %q", tt.address, got, tt.wantListen)
		}
		got := c.DialAddress()
		if got != tt.wantDial {
			t.Errorf("DialAddress(%q) = %q, want %q", tt.address, got, tt.wantDial)
		}
		if _, _, err := net.SplitHostPort(got); err != nil {
			t.Errorf("SplitHostPort(%q) error = %v", got, err)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"listen", ModeListen, false},
		{"CONNECT", ModeConnect, false},
		{"", ModeDisabled, false},
		{"standalone", ModeDisabled, false},
		{"broadcast", ModeDisabled, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPhase_Active(t *testing.T) {
	tests := []struct {
		phase Phase
		want  bool
	}{
		{PhaseIdle, false},
		{PhaseListening, true},
		{PhaseConnecting, true},
		{PhaseConnected, true},
		{PhaseDisconnecting, false},
	}
	for _, tt := range tests {
		if got := tt.phase.Active(); got != tt.want {
			t.Errorf("%v.Active() = %v, want %v", tt.phase, got, tt.want)
		}
	}
	if Phase(99).String() != "Unknown" {
		t.Errorf("unexpected name for invalid phase")
	}
}

func TestDisconnectReason_Recoverable(t *testing.T) {
	recoverable := map[DisconnectReason]bool{
		ReasonHandshakeUnreachable: true,
		ReasonTransportUnreachable: true,
		ReasonConnectionLost:       true,
		ReasonNetworkTimeout:       true,
	}
	for r := ReasonNone; r <= ReasonPeerDisconnectRequest; r++ {
		if got := r.Recoverable(); got != recoverable[r] {
			t.Errorf("%v.Recoverable() = %v, want %v", r, got, recoverable[r])
		}
		if r.String() == "" {
			t.Errorf("reason %d has no name", int(r))
		}
	}
	if !ReasonDisconnectRequest.Normal() || ReasonProtocolError.Normal() {
		t.Error("Normal() misclassified reasons")
	}
}

func TestConnectionFailure(t *testing.T) {
	err := error(&ConnectionFailure{Reason: ReasonRemotingVersionMismatch})
	var cf *ConnectionFailure
	if !errors.As(err, &cf) {
		t.Fatal("errors.As failed")
	}
	if cf.Recoverable() {
		t.Error("version mismatch must not be recoverable")
	}
	if cf.Error() != "holoship: connection failure: RemotingVersionMismatch" {
		t.Errorf("Error() = %q", cf.Error())
	}
}
