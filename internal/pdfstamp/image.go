package pdfstamp

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/klauspost/compress/zlib"
)

var ErrUnsupportedFormat = errors.New("unsupported image format, must be png or jpeg")

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

func (f Format) MediaType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	}
	return "application/octet-stream"
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// DetectFormat sniffs the encoding of an image payload from its leading bytes.
func DetectFormat(payload []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(payload, pngSignature):
		return FormatPNG, nil
	case len(payload) > 3 && payload[0] == 0xFF && payload[1] == 0xD8 && payload[2] == 0xFF:
		return FormatJPEG, nil
	}
	return "", ErrUnsupportedFormat
}

// Image is a raster ready to be written as a PDF image XObject.
type Image struct {
	Format           Format
	Width            int
	Height           int
	ColorSpace       string
	BitsPerComponent int
	Filter           string
	Data             []byte
	// Mask holds the flate compressed 8 bit alpha channel, nil for opaque images.
	Mask []byte
}

// DecodeImage turns a PNG or JPEG payload into an Image.
// Baseline RGB and gray JPEGs are passed through untouched.
func DecodeImage(payload []byte) (*Image, error) {
	format, err := DetectFormat(payload)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJPEG:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		colorSpace := "DeviceRGB"
		switch cfg.ColorModel {
		case color.GrayModel:
			colorSpace = "DeviceGray"
		case color.CMYKModel:
			img, err := jpeg.Decode(bytes.NewReader(payload))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
			}
			return encodeRaster(format, img)
		}
		return &Image{
			Format:           format,
			Width:            cfg.Width,
			Height:           cfg.Height,
			ColorSpace:       colorSpace,
			BitsPerComponent: 8,
			Filter:           "DCTDecode",
			Data:             payload,
		}, nil
	default:
		img, err := png.Decode(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
		}
		return encodeRaster(format, img)
	}
}

func encodeRaster(format Format, img image.Image) (*Image, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedFormat)
	}

	rgb := make([]byte, 0, width*height*3)
	alpha := make([]byte, 0, width*height)
	opaque := true
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			rgb = append(rgb, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
			if c.A != 0xFF {
				opaque = false
			}
		}
	}

	data, err := deflate(rgb)
	if err != nil {
		return nil, err
	}

	var mask []byte
	if !opaque {
		if mask, err = deflate(alpha); err != nil {
			return nil, err
		}
	}

	return &Image{
		Format:           format,
		Width:            width,
		Height:           height,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Filter:           "FlateDecode",
		Data:             data,
		Mask:             mask,
	}, nil
}

func deflate(data []byte) ([]byte, error) {
	buff := new(bytes.Buffer)
	zw, err := zlib.NewWriterLevel(buff, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib writer: %w", err)
	}
	if _, err = zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress image data: %w", err)
	}
	if err = zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress image data: %w", err)
	}
	return buff.Bytes(), nil
}
