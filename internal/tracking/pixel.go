// Package tracking mints open-tracking tokens and records pixel fetches.
package tracking

import "github.com/google/uuid"

// ContentType of the pixel payload.
const ContentType = "image/gif"

// pixel is a 1x1 transparent GIF.
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// Pixel returns a copy of the transparent GIF served for every tracking fetch.
func Pixel() []byte {
	out := make([]byte, len(pixel))
	copy(out, pixel)
	return out
}

// NewToken returns a random, non-sequential tracking token.
func NewToken() string {
	return uuid.NewString()
}

// NoCacheHeaders disable caching at every hop so each open reaches the server.
var NoCacheHeaders = map[string]string{
	"Cache-Control": "no-store, no-cache, must-revalidate, proxy-revalidate, max-age=0",
	"Pragma":        "no-cache",
	"Expires":       "0",
}
