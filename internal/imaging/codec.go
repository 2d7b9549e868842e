package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // capture providers return PNG

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// MediaType is the MIME type of compressed screenshots.
const MediaType = "image/jpeg"

// Codec compresses screenshots to a byte budget by lowering JPEG quality.
type Codec struct {
	DecayFactor  float64
	QualityFloor int
}

// NewCodec creates a codec from configuration, falling back to defaults for
// values out of range.
func NewCodec(cfg models.CodecConfig) Codec {
	def := models.DefaultCodecConfig()
	c := Codec{DecayFactor: cfg.DecayFactor, QualityFloor: cfg.QualityFloor}
	if c.DecayFactor <= 0 || c.DecayFactor >= 1 {
		c.DecayFactor = def.DecayFactor
	}
	if c.QualityFloor < 1 {
		c.QualityFloor = 1
	}
	return c
}

// Compressed is the outcome of Compress.
type Compressed struct {
	Data    []byte
	Quality int
	// Sizes holds the encoded size of every attempt in order.
	Sizes []int
	// WithinCeiling is false when the floor was reached without fitting.
	WithinCeiling bool
}

// Compress encodes img as JPEG starting at startQuality and multiplying the
// quality by the decay factor until the output fits in byteCeiling or the
// quality drops below the floor. It returns the first attempt that fits, or
// the last attempt made.
func (c Codec) Compress(img image.Image, byteCeiling, startQuality int) Compressed {
	quality := clampQuality(startQuality)
	var out Compressed
	for {
		data := encodeJPEG(img, quality)
		out.Data = data
		out.Quality = quality
		out.Sizes = append(out.Sizes, len(data))
		if len(data) <= byteCeiling {
			out.WithinCeiling = true
			return out
		}

		next := int(float64(quality) * c.DecayFactor)
		if next >= quality {
			next = quality - 1
		}
		if next < c.QualityFloor || next < 1 {
			return out
		}
		quality = next
	}
}

func encodeJPEG(img image.Image, quality int) []byte {
	var buf bytes.Buffer
	// Writes to a bytes.Buffer do not fail; an encoder error leaves an empty
	// attempt which still terminates the search.
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Encode returns data as standard base64 for embedding in a request.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a PNG or JPEG bitmap.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
