// Package imaging provides the pixel-level stages of the preprocessing
// pipeline: decoding files into buffers, geometry normalization and the
// filters a transform chain can apply.
//
// # Buffers
//
// Every stage works on a Buffer, a (height, width, channels) array stored
// row-major with interleaved channels. Coordinates are 0-based with (0,0) at
// the top-left corner, X increasing rightward and Y increasing downward.
// Samples are either 8-bit (Depth Uint8) or float64 (Depth Float64); the
// Laplacian is the only stage that produces float output.
//
// Operations never modify the buffer they receive. Each returns a new buffer,
// so a pipeline simply replaces its working buffer after every step.
//
// # Loading
//
// Loader dispatches on the file suffix. ".svs" and ".tif" files are tried as
// multi-resolution slides first (see package slide) and read at a single
// configured level into a 4-channel RGBA buffer. Everything else, and a
// ".tif" that is not a tiled pyramid, is decoded as a conventional raster into
// a 3-channel RGB buffer. Loader.IsImage is the tolerant probe used to tell
// images from list files; it never returns an error.
//
// # Geometry
//
// Rescale fits an image inside a square canvas of a fixed side, preserving
// aspect ratio, and pads the remainder with a BackgroundColor. The canvas is
// always RGBA.
//
// # Filters
//
// Grayscale uses ITU-R BT.601 weights. GaussianBlur is separable with
// replicated borders. Laplacian uses the 4-neighbour 3x3 kernel with mirrored
// borders and produces signed float64 responses.
//
// # Error Handling
//
// Decode failures wrap ErrUnreadableFormat and out-of-range slide levels wrap
// ErrInvalidSlideLevel; test for them with errors.Is.
package imaging
