package pdfstamp

// Rect is a placement rectangle. Depending on where it comes from its origin
// is either the top left corner of the page (viewer space) or the bottom left
// corner (document space).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Box is a page box in document space, usually the MediaBox of a page.
type Box struct {
	LLX float64 `json:"llx"`
	LLY float64 `json:"lly"`
	URX float64 `json:"urx"`
	URY float64 `json:"ury"`
}

func (b Box) Width() float64 {
	return b.URX - b.LLX
}

func (b Box) Height() float64 {
	return b.URY - b.LLY
}

// ToDocumentSpace converts a viewer space rectangle into document space.
// Only the vertical axis is flipped, no unit scaling is applied.
func ToDocumentSpace(r Rect, page Box) Rect {
	return Rect{
		X:      page.LLX + r.X,
		Y:      page.LLY + page.Height() - (r.Y + r.Height),
		Width:  r.Width,
		Height: r.Height,
	}
}
