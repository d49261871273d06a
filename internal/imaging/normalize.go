package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fraudsight/fraudsight/internal/common"
)

// Threshold is the fixed global binarization cutoff. Pixels at or above it
// become white, everything below becomes black. Deliberately not adaptive:
// a fixed cutoff is enough for typical thermal-receipt contrast.
const Threshold = 150

// Normalize decodes raw receipt bytes, converts to grayscale, and applies the
// global threshold. Output dimensions always match the decoded input; no
// cropping or scaling is performed. Undecodable bytes fail with
// common.ErrImageDecode.
func Normalize(raw []byte) (*image.Gray, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, common.NewAppError("IMAGE_DECODE",
			fmt.Sprintf("bytes are not a decodable image: %v", err),
			common.ErrImageDecode)
	}

	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if g.Y >= Threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out, nil
}
