package display

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// DefaultOLEDHeight matches the 128x32 module on the reference build.
const DefaultOLEDHeight = 32

// OLED draws the status line on an SSD1306 over I²C.
type OLED struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

// NewOLED opens the I²C bus (empty name for the first one) and the panel.
func NewOLED(busName string, height int) (*OLED, error) {
	if height <= 0 {
		height = DefaultOLEDHeight
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	opts := ssd1306.DefaultOpts
	opts.H = height
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ssd1306: %w", err)
	}

	return &OLED{
		bus: bus,
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

// Show clears the panel and draws line on the first text row.
func (o *OLED) Show(line string) error {
	renderLine(o.img, line)
	if err := o.dev.Draw(o.dev.Bounds(), o.img, image.Point{}); err != nil {
		return fmt.Errorf("draw ssd1306: %w", err)
	}
	return nil
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	var errs []error
	if err := o.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt ssd1306: %w", err))
	}
	if err := o.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
	}
	return errors.Join(errs...)
}

// renderLine clears img and draws line in the 7x13 bitmap font.
func renderLine(img draw.Image, line string) {
	draw.Draw(img, img.Bounds(), &image.Uniform{C: image1bit.Off}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(line)
}
