// Package pdftest builds small but complete PDF documents for tests.
package pdftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type Page struct {
	// MediaBox of the page, nil to inherit the one of the page tree root.
	MediaBox []float64
	Text     string
}

type Options struct {
	Pages []Page
	// MediaBox of the page tree root, defaults to US letter.
	MediaBox []float64
	// XRefStream writes a cross reference stream instead of a classic table.
	XRefStream bool
}

// Pages returns n pages which all inherit their MediaBox.
func Pages(n int) []Page {
	pages := make([]Page, n)
	for i := range pages {
		pages[i].Text = fmt.Sprintf("Page %d", i+1)
	}
	return pages
}

// Build renders a document with a catalog, a page tree holding inheritable
// resources, an info dictionary and one content stream per page.
func Build(opts Options) []byte {
	mediaBox := opts.MediaBox
	if mediaBox == nil {
		mediaBox = []float64{0, 0, 612, 792}
	}

	w := &writer{buff: new(bytes.Buffer)}
	w.buff.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")

	const firstPage = 5
	kids := new(bytes.Buffer)
	for i := range opts.Pages {
		fmt.Fprintf(kids, "%d 0 R ", firstPage+i*2)
	}

	w.object(1, "<</Type /Catalog /Pages 2 0 R>>")
	w.object(2, fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d /MediaBox %s /Resources <</Font <</F1 3 0 R>> /ProcSet [/PDF /Text]>>>>",
		bytes.TrimSpace(kids.Bytes()),
		len(opts.Pages),
		array(mediaBox),
	))
	w.object(3, "<</Type /Font /Subtype /Type1 /BaseFont /Helvetica>>")
	w.object(4, "<</Producer (pdftest) /Title (Fixture)>>")

	for i, page := range opts.Pages {
		id := firstPage + i*2
		dict := fmt.Sprintf("<</Type /Page /Parent 2 0 R /Contents %d 0 R", id+1)
		if page.MediaBox != nil {
			dict += " /MediaBox " + array(page.MediaBox)
		}
		w.object(id, dict+">>")

		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", page.Text)
		w.object(id+1, fmt.Sprintf("<</Length %d>>\nstream\n%s\nendstream", len(content), content))
	}

	size := firstPage + len(opts.Pages)*2
	id := "/ID [<0123456789ABCDEF0123456789ABCDEF> <0123456789ABCDEF0123456789ABCDEF>]"
	if opts.XRefStream {
		w.xrefStream(size, id)
	} else {
		w.xrefTable(size, id)
	}
	return w.buff.Bytes()
}

type writer struct {
	buff    *bytes.Buffer
	offsets []int
}

func (w *writer) object(id int, body string) {
	for len(w.offsets) <= id {
		w.offsets = append(w.offsets, 0)
	}
	w.offsets[id] = w.buff.Len()
	fmt.Fprintf(w.buff, "%d 0 obj\n%s\nendobj\n", id, body)
}

func (w *writer) xrefTable(size int, id string) {
	start := w.buff.Len()
	fmt.Fprintf(w.buff, "xref\n0 %d\n", size)
	w.buff.WriteString("0000000000 65535 f\r\n")
	for i := 1; i < size; i++ {
		fmt.Fprintf(w.buff, "%010d 00000 n\r\n", w.offsets[i])
	}
	fmt.Fprintf(w.buff, "trailer\n<</Size %d /Root 1 0 R /Info 4 0 R %s>>\n", size, id)
	fmt.Fprintf(w.buff, "startxref\n%d\n%%%%EOF\n", start)
}

func (w *writer) xrefStream(size int, id string) {
	start := w.buff.Len()
	self := size
	w.offsets = append(w.offsets, start)

	data := new(bytes.Buffer)
	data.Write([]byte{0, 0, 0, 0, 0, 0xFF, 0xFF})
	for i := 1; i <= self; i++ {
		data.WriteByte(1)
		_ = binary.Write(data, binary.BigEndian, uint32(w.offsets[i]))
		_ = binary.Write(data, binary.BigEndian, uint16(0))
	}

	fmt.Fprintf(w.buff, "%d 0 obj\n<</Type /XRef /Size %d /W [1 4 2] /Root 1 0 R /Info 4 0 R %s /Length %d>>\nstream\n",
		self,
		self+1,
		id,
		data.Len(),
	)
	w.buff.Write(data.Bytes())
	w.buff.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(w.buff, "startxref\n%d\n%%%%EOF\n", start)
}

func array(values []float64) string {
	buff := new(bytes.Buffer)
	buff.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			buff.WriteByte(' ')
		}
		fmt.Fprintf(buff, "%g", v)
	}
	buff.WriteByte(']')
	return buff.String()
}
