package domain

// FrameImage is one rendered camera image handed to the remote sink.
// Pixels are tightly packed RGBA8 rows of Stride bytes.
type FrameImage struct {
	Number uint64
	Camera CameraID
	Width  int
	Height int
	Stride int
	Pixels []byte
	// CommitDepth marks frames whose depth buffer was committed, letting
	// the player reproject with depth.
	CommitDepth bool
}
