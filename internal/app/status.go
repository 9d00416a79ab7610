package app

import (
	"fmt"
	"strings"

	"github.com/bft-labs/holoship/internal/domain"
)

// Window title fragments.
const (
	TitleText               = "Holoship Host"
	TitleSeparator          = " | "
	TitleConnectText        = "Press Space To Connect"
	TitleDisconnectText     = "Press D to Disconnect"
	TitleEnablePreviewText  = "Preview Disabled (press P to enable)"
	TitleDisablePreviewText = "Preview Enabled (press P to disable)"
	TitleStandaloneText     = "Standalone"
	TitleNoDeviceText       = "Graphics Device Unavailable"

	maxDisplayedFPS = 120
)

// titleView is everything the window title is composed from.
type titleView struct {
	phase      domain.Phase
	standalone bool
	preview    bool
	noDevice   bool
	failure    string
	retrying   bool
	fps        uint32
}

func composeTitle(v titleView) string {
	parts := []string{TitleText}

	switch {
	case v.standalone:
		parts = append(parts, TitleStandaloneText)
	case v.phase == domain.PhaseConnected:
		parts = append(parts, TitleDisconnectText)
	case v.phase == domain.PhaseIdle:
		if v.failure != "" {
			parts = append(parts, "Disconnected: "+v.failure)
		}
		parts = append(parts, TitleConnectText)
	case v.phase == domain.PhaseListening && v.retrying:
		parts = append(parts, "Reconnecting: Listening", TitleDisconnectText)
	case v.phase == domain.PhaseConnecting && v.retrying:
		parts = append(parts, "Reconnecting: Connecting", TitleDisconnectText)
	case v.phase == domain.PhaseDisconnecting:
		parts = append(parts, v.phase.String())
	default:
		parts = append(parts, v.phase.String(), TitleDisconnectText)
	}

	if v.noDevice {
		parts = append(parts, TitleNoDeviceText)
	}
	if !v.standalone {
		if v.preview {
			parts = append(parts, TitleDisablePreviewText)
		} else {
			parts = append(parts, TitleEnablePreviewText)
		}
	}

	fps := v.fps
	if fps > maxDisplayedFPS {
		fps = maxDisplayedFPS
	}
	parts = append(parts, fmt.Sprintf("%d fps", fps))
	return strings.Join(parts, TitleSeparator)
}
