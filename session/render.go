package session

import (
	"bufio"
	"io"
)

const ramp = " .:-=+*#%@"

// RenderASCII draws a grayscale glyph, one character per pixel, darker
// characters for brighter pixels.
func RenderASCII(w io.Writer, pixels []byte, width int) error {
	if width <= 0 {
		return nil
	}
	bw := bufio.NewWriter(w)
	for i, p := range pixels {
		bw.WriteByte(ramp[int(p)*(len(ramp)-1)/255])
		if (i+1)%width == 0 {
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}
