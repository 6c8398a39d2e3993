package peg

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Image decodes the top mip of texture i for previewing.
func (p *Peg) Image(i int) (*image.RGBA, error) {
	data, err := p.TextureData(i)
	if err != nil {
		return nil, err
	}

	entry := p.Entries[i]
	width, height := int(entry.Width), int(entry.Height)

	switch entry.BitmapFormat {
	case FormatDXT1:
		return DecodeBC1(data, width, height)
	case Format8888:
		return decodeBGRA(data, width, height)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupported, entry.BitmapFormat)
}

func BC1Size(width, height int) int {
	return ((width + 3) / 4) * ((height + 3) / 4) * 8
}

func expand565(value uint16) color.RGBA {
	r := uint8(value >> 11 & 0x1F)
	g := uint8(value >> 5 & 0x3F)
	b := uint8(value & 0x1F)
	return color.RGBA{
		R: r<<3 | r>>2,
		G: g<<2 | g>>4,
		B: b<<3 | b>>2,
		A: 0xFF,
	}
}

func mix(a, b color.RGBA, wa, wb, div int) color.RGBA {
	return color.RGBA{
		R: uint8((int(a.R)*wa + int(b.R)*wb) / div),
		G: uint8((int(a.G)*wa + int(b.G)*wb) / div),
		B: uint8((int(a.B)*wa + int(b.B)*wb) / div),
		A: 0xFF,
	}
}

// DecodeBC1 expands DXT1 blocks into an RGBA image.
func DecodeBC1(data []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrFormat, width, height)
	}
	if len(data) < BC1Size(width, height) {
		return nil, fmt.Errorf(
			"%w: %dx%d DXT1 needs %d bytes, have %d",
			ErrFormat,
			width,
			height,
			BC1Size(width, height),
			len(data),
		)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	blocksWide := (width + 3) / 4

	var palette [4]color.RGBA
	for by := 0; by < (height+3)/4; by++ {
		for bx := 0; bx < blocksWide; bx++ {
			block := data[(by*blocksWide+bx)*8:]
			c0 := binary.LittleEndian.Uint16(block)
			c1 := binary.LittleEndian.Uint16(block[2:])
			bits := binary.LittleEndian.Uint32(block[4:])

			palette[0] = expand565(c0)
			palette[1] = expand565(c1)
			if c0 > c1 {
				palette[2] = mix(palette[0], palette[1], 2, 1, 3)
				palette[3] = mix(palette[0], palette[1], 1, 2, 3)
			} else {
				palette[2] = mix(palette[0], palette[1], 1, 1, 2)
				palette[3] = color.RGBA{}
			}

			for py := 0; py < 4; py++ {
				y := by*4 + py
				for px := 0; px < 4; px++ {
					x := bx*4 + px
					index := bits >> (2 * (py*4 + px)) & 0x3
					if x < width && y < height {
						img.SetRGBA(x, y, palette[index])
					}
				}
			}
		}
	}

	return img, nil
}

func decodeBGRA(data []byte, width, height int) (*image.RGBA, error) {
	if len(data) < width*height*4 {
		return nil, fmt.Errorf("%w: %dx%d 8888 needs %d bytes, have %d", ErrFormat, width, height, width*height*4, len(data))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4+0] = data[i*4+2]
		img.Pix[i*4+1] = data[i*4+1]
		img.Pix[i*4+2] = data[i*4+0]
		img.Pix[i*4+3] = data[i*4+3]
	}
	return img, nil
}
