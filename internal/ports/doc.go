// Package ports defines the interfaces that connect the session
// coordinator (internal/app) to its external collaborators.
//
// # Port Interfaces
//
//   - [Remoting]: network link to the remote player (configure, start,
//     stop, frame sink) reporting back through [RemotingHandler]
//   - [HostWindow]: swap chain, holographic space, interaction manager
//     and title text provided by the host environment
//   - [HolographicSpace]: attached cameras, frame prediction and
//     locatability, observed through [SpaceObserver]
//   - [DeviceFactory] / [GraphicsDevice]: graphics device creation
//   - [ContentRenderer]: content that updates per frame and renders into
//     the currently bound target
//   - [AnchorStore]: opaque persistence of anchored positions
//
// The application layer depends only on these interfaces. Reference
// implementations live in internal/adapters and internal/content.
package ports
