package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bft-labs/holoship/pkg/holoship"
	"github.com/bft-labs/holoship/pkg/log"
)

// readInput maps stdin lines to key presses and phrases. An empty line is
// the space key.
func readInput(ctx context.Context, r io.Reader, h *holoship.Host, logger log.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := handleLine(h, sc.Text()); err != nil {
			logger.Warn("command failed", log.String("input", sc.Text()), log.Err(err))
		}
	}
}

func handleLine(h *holoship.Host, line string) error {
	line = strings.TrimSpace(line)
	switch utf8.RuneCountInString(line) {
	case 0:
		return h.OnKeyPress(' ')
	case 1:
		r, _ := utf8.DecodeRuneInString(line)
		return h.OnKeyPress(r)
	default:
		return h.OnSpeech(line)
	}
}

var _ holoship.DataObserver = (*cliObserver)(nil)

// cliObserver logs session events.
type cliObserver struct {
	logger log.Logger
}

func (o *cliObserver) OnPhaseChange(previous, current holoship.Phase, reason string) {
	o.logger.Info("session",
		log.Stringer("from", previous),
		log.Stringer("to", current),
		log.String("reason", reason),
	)
}

func (o *cliObserver) OnCameraReady(id holoship.CameraID) {
	o.logger.Info("camera ready", log.Int("camera", int(id)))
}

func (o *cliObserver) OnData(payload []byte) {
	o.logger.Debug("custom data", log.Int("bytes", len(payload)))
}

func (o *cliObserver) OnConnectionFailure(reason holoship.DisconnectReason, retrying bool) {
	o.logger.Warn("connection failed",
		log.Stringer("reason", reason),
		log.Bool("retrying", retrying),
	)
}
