// Package thumbnail renders downsized image variants for uploaded images.
package thumbnail

import (
	"bytes"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/code19m/errx"
	"github.com/disintegration/imaging"
)

// Widths are the variant widths rendered for every image, widest first.
var Widths = []int{500, 250, 100}

// Error codes surfaced by the processor.
const (
	CodeBadImage = "BAD_IMAGE"
)

// Processor decodes an uploaded image once and renders width-bound variants
// from the decoded form.
type Processor struct{}

// NewProcessor creates an image processor.
func NewProcessor() Processor {
	return Processor{}
}

// Decode parses image bytes into a drawable form.
// Undecodable bytes yield a CodeBadImage error; retrying cannot fix them.
func (Processor) Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeBadImage))
	}
	return img, nil
}

// Render resizes img to the given width, keeping the aspect ratio, and
// encodes it in the format implied by the logical name's extension.
func (Processor) Render(img image.Image, name string, width int) ([]byte, error) {
	resized := imaging.Resize(img, width, 0, imaging.Lanczos)

	buf := new(bytes.Buffer)
	if err := encode(buf, resized, name); err != nil {
		return nil, errx.Wrap(err, errx.WithCode(CodeBadImage))
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, img image.Image, name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return png.Encode(buf, img)
	default:
		return jpeg.Encode(buf, img, nil)
	}
}
