package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/internal/ports"
	"github.com/bft-labs/holoship/pkg/log"
)

const anchorPrefix = "holoship.content."

// OnKeyPress runs the command bound to key. Unbound keys are ignored.
func (h *Host) OnKeyPress(key rune) error {
	return h.Execute(context.Background(), domain.CommandForKey(key), "")
}

// OnSpeech runs the command recognised in text. Unknown phrases are
// ignored.
func (h *Host) OnSpeech(text string) error {
	cmd, arg := domain.CommandForSpeech(text)
	if cmd == domain.CommandNone {
		h.logger.Debug("speech ignored", log.String("text", text))
		return nil
	}
	return h.Execute(context.Background(), cmd, arg)
}

// Execute runs a user command. Must not be called from an Observer.
func (h *Host) Execute(ctx context.Context, cmd domain.Command, arg string) error {
	h.logger.Debug("command", log.Stringer("command", cmd), log.String("arg", arg))
	switch cmd {
	case domain.CommandConnect:
		return h.Start()
	case domain.CommandDisconnect:
		h.RequestDisconnect()
	case domain.CommandTogglePreview:
		h.TogglePreview()
	case domain.CommandToggleDepthCommit:
		enabled := h.devices.ToggleDepthCommit()
		h.logger.Info("depth commit toggled", log.Bool("enabled", enabled))
	case domain.CommandSavePosition:
		return h.SavePosition(ctx)
	case domain.CommandLoadPosition:
		return h.LoadPosition(ctx)
	case domain.CommandColor:
		h.setColor(arg)
	case domain.CommandExit:
		h.logger.Info("exit requested")
		h.requestExit()
	}
	return nil
}

func (h *Host) setColor(name string) {
	for _, c := range h.cfg.Content {
		if cc, ok := c.(ports.Colorable); ok && !cc.SetColor(name) {
			h.logger.Debug("unknown colour", log.String("color", name))
		}
	}
}

// SavePosition stores the position of every positionable content item.
func (h *Host) SavePosition(ctx context.Context) error {
	if h.cfg.Anchors == nil {
		return domain.ErrNoAnchorStore
	}
	for i, c := range h.cfg.Content {
		p, ok := c.(ports.Positionable)
		if !ok {
			continue
		}
		blob, err := p.MarshalPosition()
		if err != nil {
			return fmt.Errorf("encoding position: %w", err)
		}
		id := anchorID(i)
		if err := h.cfg.Anchors.Save(ctx, id, blob); err != nil {
			return fmt.Errorf("saving anchor %s: %w", id, err)
		}
		h.logger.Info("position saved", log.String("anchor", id))
	}
	return nil
}

// LoadPosition restores saved positions. It returns ErrNoSavedPosition
// when no content item had one.
func (h *Host) LoadPosition(ctx context.Context) error {
	if h.cfg.Anchors == nil {
		return domain.ErrNoAnchorStore
	}
	loaded := 0
	for i, c := range h.cfg.Content {
		p, ok := c.(ports.Positionable)
		if !ok {
			continue
		}
		id := anchorID(i)
		blob, found, err := h.cfg.Anchors.Load(ctx, id)
		if err != nil {
			return fmt.Errorf("loading anchor %s: %w", id, err)
		}
		if !found {
			continue
		}
		if err := p.UnmarshalPosition(blob); err != nil {
			return fmt.Errorf("decoding anchor %s: %w", id, err)
		}
		loaded++
		h.logger.Info("position loaded", log.String("anchor", id))
	}
	if loaded == 0 {
		return domain.ErrNoSavedPosition
	}
	return nil
}

func anchorID(i int) string {
	return fmt.Sprintf("%s%d", anchorPrefix, i)
}
