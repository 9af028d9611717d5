// Package qrcodec encodes student identifiers into QR images and decodes them back.
package qrcodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoder registration for uploaded scans
	"image/png"
	"io"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// ErrNoCode is returned when an image holds no decodable QR symbol.
var ErrNoCode = errors.New("no qr code found")

const (
	defaultModuleSize = 10
	defaultBorder     = 4
)

// Codec produces fixed-parameter QR images: error correction level L,
// 10 pixels per module and a 4 module quiet zone.
type Codec struct {
	level      qrcode.RecoveryLevel
	moduleSize int
	border     int
}

// New returns the codec used for student QR images.
func New() *Codec {
	return &Codec{level: qrcode.Low, moduleSize: defaultModuleSize, border: defaultBorder}
}

// Encode renders payload into PNG bytes. Output is deterministic for a given payload.
func (c *Codec) Encode(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr payload required")
	}
	code, err := qrcode.New(payload, c.level)
	if err != nil {
		return nil, fmt.Errorf("build qr code: %w", err)
	}
	code.DisableBorder = true
	bitmap := code.Bitmap()

	size := (len(bitmap) + 2*c.border) * c.moduleSize
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := (x + c.border) * c.moduleSize
			y0 := (y + c.border) * c.moduleSize
			for dy := 0; dy < c.moduleSize; dy++ {
				offset := (y0+dy)*img.Stride + x0
				for dx := 0; dx < c.moduleSize; dx++ {
					img.Pix[offset+dx] = 0x00
				}
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}

// Result is one decoded QR payload and the corner points reported by the decoder.
type Result struct {
	Payload string
	Corners []image.Point
}

// Decode reads an encoded image (PNG or JPEG) and returns its QR payload.
func (c *Codec) Decode(r io.Reader) (*Result, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return c.DecodeImage(img)
}

// DecodeImage returns the single QR payload found in img, or ErrNoCode.
func (c *Codec) DecodeImage(img image.Image) (*Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("prepare bitmap: %w", err)
	}
	res, err := zxingqr.NewQRCodeReader().Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	payload := strings.TrimSpace(res.GetText())
	if payload == "" {
		return nil, ErrNoCode
	}
	points := res.GetResultPoints()
	corners := make([]image.Point, 0, len(points))
	for _, p := range points {
		corners = append(corners, image.Pt(int(p.GetX()), int(p.GetY())))
	}
	return &Result{Payload: payload, Corners: corners}, nil
}
