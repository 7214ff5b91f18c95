package detector

import (
	"fmt"
	"image"
	"image/color"
	"slices"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
)

const (
	maxBlurRadius  = 50
	maxBrightness  = 100
	maxContrast    = 100
	maxSaturation  = 200
	maxPixelate    = 50
	maxRotateAngle = 360
)

// FilterError reports an invalid filter parameter.
type FilterError struct {
	Filter  string
	Message string
}

func (e FilterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filter, e.Message)
}

type filterFactory func(param string) (gift.Filter, error)

// scaled builds a filter taking a float in [lo, hi], negated by sign.
func scaled(lo, hi, sign float32, f func(float32) gift.Filter) filterFactory {
	return func(param string) (gift.Filter, error) {
		v, err := strconv.ParseFloat(param, 32)
		if err != nil {
			return nil, fmt.Errorf("must be a number")
		}
		if float32(v) < lo || float32(v) > hi {
			return nil, fmt.Errorf("must be between %.1f and %.1f", lo, hi)
		}
		return f(sign * float32(v)), nil
	}
}

func sized(f func(w, h int) gift.Filter) filterFactory {
	return func(param string) (gift.Filter, error) {
		w, h, ok := strings.Cut(param, "x")
		if !ok {
			return nil, fmt.Errorf("dimensions must be in format 'widthxheight'")
		}
		width, err1 := strconv.Atoi(w)
		height, err2 := strconv.Atoi(h)
		if err1 != nil || err2 != nil || width < 0 || height < 0 {
			return nil, fmt.Errorf("dimensions must be positive integers")
		}
		if width > MaxImageWidth || height > MaxImageHeight {
			return nil, fmt.Errorf("dimensions too large (max %dx%d)", MaxImageWidth, MaxImageHeight)
		}
		return f(width, height), nil
	}
}

func constant(f gift.Filter) filterFactory {
	return func(string) (gift.Filter, error) { return f, nil }
}

var filterFactories = map[string]filterFactory{
	"resize": sized(func(w, h int) gift.Filter {
		return gift.Resize(w, h, gift.LanczosResampling)
	}),
	"crop_to_size": sized(func(w, h int) gift.Filter {
		return gift.CropToSize(w, h, gift.LeftAnchor)
	}),
	"rotate": scaled(-maxRotateAngle, maxRotateAngle, 1, func(v float32) gift.Filter {
		return gift.Rotate(v, color.Transparent, gift.CubicInterpolation)
	}),
	"brightness_increase": scaled(0, maxBrightness, 1, func(v float32) gift.Filter { return gift.Brightness(v) }),
	"brightness_decrease": scaled(0, maxBrightness, -1, func(v float32) gift.Filter { return gift.Brightness(v) }),
	"contrast_increase":   scaled(0, maxContrast, 1, func(v float32) gift.Filter { return gift.Contrast(v) }),
	"contrast_decrease":   scaled(0, maxContrast, -1, func(v float32) gift.Filter { return gift.Contrast(v) }),
	"saturation_increase": scaled(0, maxSaturation, 1, func(v float32) gift.Filter { return gift.Saturation(v) }),
	"saturation_decrease": scaled(0, maxSaturation, -1, func(v float32) gift.Filter { return gift.Saturation(v) }),
	"gaussian_blur":       scaled(0.1, maxBlurRadius, 1, func(v float32) gift.Filter { return gift.GaussianBlur(v) }),
	"pixelate": scaled(1, maxPixelate, 1, func(v float32) gift.Filter {
		return gift.Pixelate(int(v))
	}),
	"grayscale": constant(gift.Grayscale()),
	"invert":    constant(gift.Invert()),
}

// ParseFilters builds the filters named by the keys of params, in key order.
// Unknown keys are ignored; at least one filter is required.
func ParseFilters(params map[string]string) ([]gift.Filter, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := filterFactories[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no valid filters specified")
	}
	slices.Sort(names)

	filters := make([]gift.Filter, 0, len(names))
	for _, name := range names {
		f, err := filterFactories[name](params[name])
		if err != nil {
			return nil, FilterError{Filter: name, Message: err.Error()}
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// ApplyFilters returns a filtered copy of src.
func ApplyFilters(src image.Image, filters []gift.Filter) *image.RGBA {
	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
