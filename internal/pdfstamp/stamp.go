package pdfstamp

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/digitorus/pdf"
)

var (
	ErrInvalidPage = errors.New("invalid page number")
	ErrEncrypted   = errors.New("encrypted documents are not supported")
	ErrMalformed   = errors.New("malformed document")
)

const (
	CaptionFontSize   = 8
	CaptionOffset     = 10
	CaptionLineHeight = 10
)

// letter is used when neither the page nor any of its ancestors carry a MediaBox.
var letter = Box{URX: 612, URY: 792}

// PageCount returns the number of pages of a PDF document.
func PageCount(src []byte) (count int, err error) {
	defer recoverMalformed(&err)

	r, err := parse(src)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

// PageSize returns the MediaBox of the page at the 0-based pageIndex.
func PageSize(src []byte, pageIndex int) (box Box, err error) {
	defer recoverMalformed(&err)

	r, err := parse(src)
	if err != nil {
		return Box{}, err
	}
	if pageIndex < 0 || pageIndex >= r.NumPage() {
		return Box{}, ErrInvalidPage
	}
	return pageBox(r.Page(pageIndex + 1).V), nil
}

// Stamp draws img at the viewer space rect on the page at pageIndex and writes
// the captions below it. The result is the source document followed by an
// incremental update, so every byte of src and every other page stays as it was.
func Stamp(src []byte, pageIndex int, img *Image, rect Rect, captions []string) (out []byte, err error) {
	defer recoverMalformed(&err)

	r, err := parse(src)
	if err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= r.NumPage() {
		return nil, ErrInvalidPage
	}
	if img == nil {
		return nil, ErrUnsupportedFormat
	}

	page := r.Page(pageIndex + 1).V
	box := pageBox(page)
	placed := ToDocumentSpace(rect, box)

	u, err := newUpdate(src, r)
	if err != nil {
		return nil, err
	}

	resources := inherited(page, "Resources")
	imageName := freeName(resources.Key("XObject"), "SigImg")
	fontName := freeName(resources.Key("Font"), "SigFont")

	imageRef := u.addImage(img)
	fontRef := u.addObject([]byte("<</Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding>>"))
	prefixRef := u.addStream("", []byte("q\n"))
	stampRef := u.addStream("", stampContent(imageName, fontName, placed, captions))

	u.rewritePage(page, box, resources, map[string]map[string]ref{
		"XObject": {imageName: imageRef},
		"Font":    {fontName: fontRef},
	}, prefixRef, stampRef)

	return u.finish(), nil
}

func parse(src []byte) (*pdf.Reader, error) {
	if !bytes.HasPrefix(src, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing pdf header", ErrMalformed)
	}
	r, err := pdf.NewReader(bytes.NewReader(src), int64(len(src)))
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return nil, ErrEncrypted
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if !r.Trailer().Key("Encrypt").IsNull() {
		return nil, ErrEncrypted
	}
	return r, nil
}

// recoverMalformed turns panics of the pdf reader on broken input into errors.
func recoverMalformed(err *error) {
	if rec := recover(); rec != nil {
		*err = fmt.Errorf("%w: %v", ErrMalformed, rec)
	}
}

// inherited looks up an inheritable page attribute, walking up the page tree.
func inherited(page pdf.Value, key string) pdf.Value {
	v := page
	for depth := 0; depth < 64 && !v.IsNull(); depth++ {
		if attr := v.Key(key); !attr.IsNull() {
			return attr
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func pageBox(page pdf.Value) Box {
	mediaBox := inherited(page, "MediaBox")
	if mediaBox.Kind() != pdf.Array || mediaBox.Len() != 4 {
		return letter
	}
	x1, y1 := mediaBox.Index(0).Float64(), mediaBox.Index(1).Float64()
	x2, y2 := mediaBox.Index(2).Float64(), mediaBox.Index(3).Float64()
	return Box{
		LLX: min(x1, x2),
		LLY: min(y1, y2),
		URX: max(x1, x2),
		URY: max(y1, y2),
	}
}

// freeName returns the first prefixN name which is not a key of dict.
func freeName(dict pdf.Value, prefix string) string {
	used := make(map[string]struct{})
	for _, key := range dict.Keys() {
		used[key] = struct{}{}
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, ok := used[name]; !ok {
			return name
		}
	}
}

func stampContent(imageName string, fontName string, r Rect, captions []string) []byte {
	buff := new(bytes.Buffer)
	// closes the q of the prefix stream which wraps the original content
	buff.WriteString("Q\n")
	fmt.Fprintf(buff, "q\n%s 0 0 %s %s %s cm\n/%s Do\nQ\n",
		formatNumber(r.Width),
		formatNumber(r.Height),
		formatNumber(r.X),
		formatNumber(r.Y),
		imageName,
	)

	if len(captions) == 0 {
		return buff.Bytes()
	}
	fmt.Fprintf(buff, "q\nBT\n0 g\n/%s %d Tf\n%s %s Td\n",
		fontName,
		CaptionFontSize,
		formatNumber(r.X),
		formatNumber(r.Y-CaptionOffset),
	)
	for i, line := range captions {
		if i > 0 {
			fmt.Fprintf(buff, "0 %s Td\n", formatNumber(-CaptionLineHeight))
		}
		fmt.Fprintf(buff, "<%X> Tj\n", encodeText(line))
	}
	buff.WriteString("ET\nQ\n")
	return buff.Bytes()
}
