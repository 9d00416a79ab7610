package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bft-labs/holoship/internal/adapters/remoting"
	"github.com/bft-labs/holoship/internal/cliconfig"
	"github.com/bft-labs/holoship/internal/domain"
	"github.com/bft-labs/holoship/pkg/log"
)

const cameraID domain.CameraID = 1

type playerConfig struct {
	listen    bool
	bind      string
	port      int
	width     int
	height    int
	poseRate  time.Duration
	keepAlive time.Duration
	maxFrames uint64
	pressAt   uint64
	logLevel  string
}

var exampleUsage = strings.TrimSpace(`
  holoship-player --listen --port 8265
  holoship-player 127.0.0.1:8265 --frames 300
`)

func main() {
	pc := playerConfig{
		bind:      "0.0.0.0",
		port:      int(domain.DefaultPort),
		width:     640,
		height:    480,
		poseRate:  time.Second / 60,
		keepAlive: remoting.DefaultOptions().KeepAlive,
		logLevel:  "info",
	}
	bootLog := log.NewZerologAdapter(zerolog.InfoLevel)

	root := &cobra.Command{
		Use:     "holoship-player [host[:port]]",
		Short:   "Reference headset player for holoship",
		Long:    "Announce a camera to a holoship host, stream head poses and receive rendered frames.",
		Example: exampleUsage,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !pc.listen && len(args) == 0 {
				return fmt.Errorf("a host address is required unless --listen is set")
			}
			logger := log.NewZerologAdapter(log.ParseLevel(pc.logLevel))

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			p, err := connect(ctx, pc, args, logger)
			if err != nil {
				return err
			}
			defer p.Close()
			return play(ctx, p, pc, logger)
		},
	}

	root.Flags().BoolVar(&pc.listen, "listen", pc.listen, "wait for a host in connect mode")
	root.Flags().StringVar(&pc.bind, "bind", pc.bind, "bind address in listen mode")
	root.Flags().IntVar(&pc.port, "port", pc.port, "port to listen on or dial")
	root.Flags().IntVar(&pc.width, "width", pc.width, "camera width")
	root.Flags().IntVar(&pc.height, "height", pc.height, "camera height")
	root.Flags().DurationVar(&pc.poseRate, "pose-interval", pc.poseRate, "head pose update interval")
	root.Flags().DurationVar(&pc.keepAlive, "keepalive", pc.keepAlive, "keepalive interval")
	root.Flags().Uint64Var(&pc.maxFrames, "frames", 0, "exit after this many frames (0 = run until interrupted)")
	root.Flags().Uint64Var(&pc.pressAt, "press-at", 0, "send an air tap after this many frames (0 = never)")
	root.Flags().StringVar(&pc.logLevel, "log-level", pc.logLevel, "log level: debug, info, warn or error")

	if err := root.Execute(); err != nil {
		bootLog.Error("holoship-player", log.Err(err))
		os.Exit(1)
	}
}

func connect(ctx context.Context, pc playerConfig, args []string, logger log.Logger) (*remoting.Player, error) {
	opts := remoting.Options{
		KeepAlive: pc.keepAlive,
		Name:      "holoship-player",
		Logger:    logger,
	}
	if pc.listen {
		ln, err := net.Listen("tcp", net.JoinHostPort(pc.bind, fmt.Sprint(pc.port)))
		if err != nil {
			return nil, fmt.Errorf("listen: %w", err)
		}
		defer ln.Close()
		logger.Info("waiting for host", log.String("addr", ln.Addr().String()))
		return remoting.Accept(ctx, ln, opts)
	}
	host, port, err := cliconfig.ParseTarget(args[0], pc.port)
	if err != nil {
		return nil, err
	}
	return remoting.Dial(ctx, net.JoinHostPort(host, fmt.Sprint(port)), opts)
}

// play announces the camera, streams poses and consumes frames until the
// host leaves, ctx ends or maxFrames is reached.
func play(ctx context.Context, p *remoting.Player, pc playerConfig, logger log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.AddCamera(cameraID, domain.Viewport{Width: pc.width, Height: pc.height}); err != nil {
		return fmt.Errorf("announce camera: %w", err)
	}
	if err := p.SendLocatability(domain.LocatabilityPositionalTrackingActive); err != nil {
		return fmt.Errorf("send locatability: %w", err)
	}
	go sendPoses(ctx, p, pc.poseRate, logger)

	// Custom data is echoed back to the host.
	p.OnData(func(payload []byte) {
		logger.Info("custom data received", log.Int("bytes", len(payload)))
		if err := p.SendData(payload); err != nil {
			logger.Debug("custom data not echoed", log.Err(err))
		}
	})

	start := time.Now()
	err := p.Run(ctx, func(img domain.FrameImage) {
		n := p.Frames()
		logger.Debug("frame",
			log.Uint64("number", img.Number),
			log.Int("camera", int(img.Camera)),
			log.Int("bytes", len(img.Pixels)),
			log.Bool("depth", img.CommitDepth),
		)
		if n%60 == 0 {
			logger.Info("frames received",
				log.Uint64("frames", n),
				log.Uint64("corrupt", p.Corrupt()),
				log.Float64("fps", float64(n)/time.Since(start).Seconds()),
			)
		}
		if pc.pressAt != 0 && n == pc.pressAt {
			if err := p.Press(poseAt(time.Since(start))); err != nil {
				logger.Warn("press failed", log.Err(err))
			}
		}
		if pc.maxFrames != 0 && n >= pc.maxFrames {
			cancel()
		}
	})
	logger.Info("session ended",
		log.Uint64("frames", p.Frames()),
		log.Uint64("corrupt", p.Corrupt()),
	)
	return err
}

func sendPoses(ctx context.Context, p *remoting.Player, interval time.Duration, logger log.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.SendPose(poseAt(time.Since(start))); err != nil {
				logger.Debug("pose not sent", log.Err(err))
				return
			}
		}
	}
}

// poseAt returns a head slowly looking left and right.
func poseAt(elapsed time.Duration) domain.Pose {
	yaw := 0.3 * math.Sin(elapsed.Seconds()*0.5)
	return domain.Pose{
		Position:    [3]float32{0, 0, 0},
		Orientation: [4]float32{0, float32(math.Sin(yaw / 2)), 0, float32(math.Cos(yaw / 2))},
	}
}
