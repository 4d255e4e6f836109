package message

// Skin selects the widget style of a sensor. Each skin supports a subset of
// colour-customisable elements.
type Skin uint8

const (
	SkinSpace Skin = iota
	SkinSimple
	SkinSlim
	SkinDash
	SkinBar
	SkinModern
	SkinLinear
	SkinDigital
	skinCount
)

// Element is a colour customisable part of a sensor widget.
type Element uint8

const (
	ElementForeground Element = iota
	ElementAverage
	ElementNeedle
	ElementValue
	ElementUnit
	ElementKnob
	ElementBar
	ElementThreshold
	ElementTitle
	ElementBarBackground
	ElementTickLabel
	ElementTickMark
	ElementCount
)

// ElementColors holds one colour override per Element.
type ElementColors [ElementCount]Color

func elementMask(elements ...Element) uint16 {
	var mask uint16
	for _, e := range elements {
		mask |= 1 << e
	}

	return mask
}

var skinSupport = [skinCount]uint16{
	SkinSpace:   elementMask(ElementForeground, ElementValue, ElementUnit, ElementBar, ElementThreshold, ElementTitle),
	SkinSimple:  elementMask(ElementForeground, ElementNeedle, ElementValue, ElementBar, ElementThreshold, ElementTitle),
	SkinSlim:    elementMask(ElementForeground, ElementValue, ElementUnit, ElementBar, ElementTitle, ElementBarBackground),
	SkinDash:    elementMask(ElementForeground, ElementValue, ElementUnit, ElementBar, ElementTitle, ElementBarBackground),
	SkinBar:     elementMask(ElementForeground, ElementValue, ElementUnit, ElementBar, ElementTitle),
	SkinModern: elementMask(ElementForeground, ElementAverage, ElementNeedle, ElementValue, ElementUnit, ElementKnob,
		ElementBar, ElementThreshold, ElementTitle, ElementTickLabel, ElementTickMark),
	SkinLinear: elementMask(ElementForeground, ElementAverage, ElementValue, ElementUnit, ElementBar, ElementThreshold,
		ElementTitle, ElementBarBackground, ElementTickLabel, ElementTickMark),
	SkinDigital: elementMask(ElementForeground, ElementValue, ElementUnit, ElementTitle),
}

// Valid reports whether s is a known skin.
func (s Skin) Valid() bool {
	return s < skinCount
}

// Supports reports whether the skin lets the editor override the colour of e.
func (s Skin) Supports(e Element) bool {
	if !s.Valid() || e >= ElementCount {
		return false
	}

	return skinSupport[s]&(1<<e) != 0
}

// Masked returns a copy of c with every element unsupported by s reset to zero.
func (c ElementColors) Masked(s Skin) ElementColors {
	var out ElementColors
	for e := Element(0); e < ElementCount; e++ {
		if s.Supports(e) {
			out[e] = c[e]
		}
	}

	return out
}
