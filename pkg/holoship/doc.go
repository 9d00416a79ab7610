// Package holoship provides an embeddable host for remote holographic
// sessions.
//
// A Host drives one session with a remote headset player. It either
// listens for the player or connects to it, renders content into every
// camera the player announces and streams the frames back. It can also
// run standalone, rendering into a local space without any network.
//
// # Basic Usage
//
//	cfg := holoship.Config{
//	    Mode:    holoship.ModeListen,
//	    Address: "0.0.0.0",
//	}
//
//	h, err := holoship.New(cfg, holoship.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	if err := h.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	_ = h.Run(ctx)
//
// # Frame Loop
//
// Run ticks the frame loop until the context ends or an exit command is
// received. Embedders that own their own loop call Tick instead and must
// stop ticking before Close.
//
// # Input
//
// OnKeyPress and OnSpeech map keys and recognised phrases to commands:
//
//	'p' / "toggle preview"   local preview
//	'c'                      depth buffer commit
//	's' / "save position"    store the cube position
//	'l' / "load position"    restore the cube position
//	"connect", "disconnect"  session control
//	"red", "blue", ...       cube colour
//
// # Thread Safety
//
// All methods are safe for concurrent use, except that Tick must only be
// called from one goroutine at a time.
package holoship
