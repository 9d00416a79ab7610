// Package graphics provides a software graphics device and a headless
// host window.
//
// Render targets are CPU pixmaps rasterized by render.SoftwareRenderer, so
// the host runs without GPU hardware. Devices can be lost on demand to
// exercise recovery paths.
package graphics
