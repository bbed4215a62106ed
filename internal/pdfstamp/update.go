package pdfstamp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"

	"github.com/digitorus/pdf"
)

type ref struct {
	id  uint32
	gen uint16
}

func (r ref) String() string {
	return fmt.Sprintf("%d %d R", r.id, r.gen)
}

func ptrOf(v pdf.Value) ref {
	ptr := v.GetPtr()
	return ref{id: ptr.GetID(), gen: ptr.GetGen()}
}

type xrefEntry struct {
	ref    ref
	offset int
}

// update collects the objects of one incremental update section.
type update struct {
	src        []byte
	base       int
	buff       *bytes.Buffer
	trailer    pdf.Value
	prev       int
	xrefStream bool
	nextID     uint32
	entries    []xrefEntry
}

func newUpdate(src []byte, r *pdf.Reader) (*update, error) {
	prev, err := lastStartXRef(src)
	if err != nil {
		return nil, err
	}
	trailer := r.Trailer()
	size := trailer.Key("Size").Int64()
	if size <= 0 {
		return nil, fmt.Errorf("%w: missing trailer size", ErrMalformed)
	}

	u := &update{
		src:        src,
		base:       len(src),
		buff:       new(bytes.Buffer),
		trailer:    trailer,
		prev:       prev,
		xrefStream: !bytes.HasPrefix(bytes.TrimLeft(src[prev:], " \t\r\n\f\x00"), []byte("xref")),
		nextID:     uint32(size),
	}
	if last := src[len(src)-1]; last != '\n' && last != '\r' {
		u.buff.WriteByte('\n')
	}
	return u, nil
}

func lastStartXRef(src []byte) (int, error) {
	i := bytes.LastIndex(src, []byte("startxref"))
	if i < 0 {
		return 0, fmt.Errorf("%w: missing startxref", ErrMalformed)
	}
	fields := bytes.Fields(src[i+len("startxref"):])
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: missing startxref offset", ErrMalformed)
	}
	offset, err := strconv.Atoi(string(fields[0]))
	if err != nil || offset < 0 || offset >= len(src) {
		return 0, fmt.Errorf("%w: invalid startxref offset", ErrMalformed)
	}
	return offset, nil
}

func (u *update) offset() int {
	return u.base + u.buff.Len()
}

func (u *update) begin(r ref) {
	u.entries = append(u.entries, xrefEntry{ref: r, offset: u.offset()})
	fmt.Fprintf(u.buff, "%d %d obj\n", r.id, r.gen)
}

func (u *update) allocate() ref {
	r := ref{id: u.nextID}
	u.nextID++
	return r
}

func (u *update) addObject(body []byte) ref {
	r := u.allocate()
	u.begin(r)
	u.buff.Write(body)
	u.buff.WriteString("\nendobj\n")
	return r
}

func (u *update) addStream(dict string, data []byte) ref {
	r := u.allocate()
	u.begin(r)
	u.writeStream(dict, data)
	return r
}

func (u *update) writeStream(dict string, data []byte) {
	fmt.Fprintf(u.buff, "<<%s/Length %d>>\nstream\n", dict, len(data))
	u.buff.Write(data)
	u.buff.WriteString("\nendstream\nendobj\n")
}

func (u *update) addImage(img *Image) ref {
	var smask string
	if img.Mask != nil {
		mask := u.addStream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /FlateDecode ",
			img.Width,
			img.Height,
		), img.Mask)
		smask = "/SMask " + mask.String() + " "
	}
	return u.addStream(fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /%s /BitsPerComponent %d /Filter /%s %s",
		img.Width,
		img.Height,
		img.ColorSpace,
		img.BitsPerComponent,
		img.Filter,
		smask,
	), img.Data)
}

// rewritePage writes a new revision of page under its own object number.
// Inherited attributes are materialized so the page no longer depends on its
// ancestors for the resources and box the stamp relies on.
func (u *update) rewritePage(page pdf.Value, box Box, resources pdf.Value, additions map[string]map[string]ref, prefix ref, stamp ref) {
	owner := ptrOf(page)
	u.begin(owner)
	u.buff.WriteString("<<")
	for _, key := range page.Keys() {
		switch key {
		case "Contents", "Resources", "MediaBox":
			continue
		}
		fmt.Fprintf(u.buff, "/%s ", escapeName(key))
		writeValue(u.buff, page.Key(key), owner)
		u.buff.WriteByte('\n')
	}

	fmt.Fprintf(u.buff, "/MediaBox [%s %s %s %s]\n",
		formatNumber(box.LLX),
		formatNumber(box.LLY),
		formatNumber(box.URX),
		formatNumber(box.URY),
	)

	u.buff.WriteString("/Resources ")
	u.writeResources(resources, additions)
	u.buff.WriteByte('\n')

	u.buff.WriteString("/Contents [")
	u.buff.WriteString(prefix.String())
	for _, content := range contentRefs(page.Key("Contents")) {
		u.buff.WriteByte(' ')
		u.buff.WriteString(content.String())
	}
	u.buff.WriteByte(' ')
	u.buff.WriteString(stamp.String())
	u.buff.WriteString("]>>\nendobj\n")
}

func contentRefs(contents pdf.Value) []ref {
	switch contents.Kind() {
	case pdf.Stream:
		return []ref{ptrOf(contents)}
	case pdf.Array:
		refs := make([]ref, 0, contents.Len())
		for i := 0; i < contents.Len(); i++ {
			if item := contents.Index(i); item.Kind() == pdf.Stream {
				refs = append(refs, ptrOf(item))
			}
		}
		return refs
	}
	return nil
}

func (u *update) writeResources(resources pdf.Value, additions map[string]map[string]ref) {
	owner := ptrOf(resources)
	u.buff.WriteString("<<")
	for _, key := range resources.Keys() {
		if _, ok := additions[key]; ok {
			continue
		}
		fmt.Fprintf(u.buff, "/%s ", escapeName(key))
		writeValue(u.buff, resources.Key(key), owner)
		u.buff.WriteByte(' ')
	}

	categories := make([]string, 0, len(additions))
	for category := range additions {
		categories = append(categories, category)
	}
	slices.Sort(categories)

	for _, category := range categories {
		existing := resources.Key(category)
		existingOwner := ptrOf(existing)
		fmt.Fprintf(u.buff, "/%s <<", escapeName(category))
		for _, key := range existing.Keys() {
			if _, ok := additions[category][key]; ok {
				continue
			}
			fmt.Fprintf(u.buff, "/%s ", escapeName(key))
			writeValue(u.buff, existing.Key(key), existingOwner)
			u.buff.WriteByte(' ')
		}
		for name, r := range additions[category] {
			fmt.Fprintf(u.buff, "/%s %s ", escapeName(name), r)
		}
		u.buff.WriteString(">> ")
	}
	u.buff.WriteString(">>")
}

// writeValue serializes v. Values which live in a different object than owner
// are written as references instead of being copied.
func writeValue(w *bytes.Buffer, v pdf.Value, owner ref) {
	if ptr := ptrOf(v); ptr.id != 0 && ptr != owner {
		w.WriteString(ptr.String())
		return
	}

	switch v.Kind() {
	case pdf.Null:
		w.WriteString("null")
	case pdf.Bool:
		w.WriteString(strconv.FormatBool(v.Bool()))
	case pdf.Integer:
		w.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdf.Real:
		w.WriteString(formatNumber(v.Float64()))
	case pdf.String:
		fmt.Fprintf(w, "<%X>", v.RawString())
	case pdf.Name:
		w.WriteString("/" + escapeName(v.Name()))
	case pdf.Array:
		w.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				w.WriteByte(' ')
			}
			writeValue(w, v.Index(i), owner)
		}
		w.WriteByte(']')
	case pdf.Dict:
		w.WriteString("<<")
		for _, key := range v.Keys() {
			fmt.Fprintf(w, "/%s ", escapeName(key))
			writeValue(w, v.Key(key), owner)
			w.WriteByte(' ')
		}
		w.WriteString(">>")
	default:
		// streams are always indirect, a direct one means the reader lost its reference
		w.WriteString("null")
	}
}

// finish appends the cross reference section and returns the updated document.
func (u *update) finish() []byte {
	if u.xrefStream {
		u.finishXRefStream()
	} else {
		u.finishXRefTable()
	}

	out := make([]byte, 0, len(u.src)+u.buff.Len())
	out = append(out, u.src...)
	return append(out, u.buff.Bytes()...)
}

func (u *update) finishXRefTable() {
	start := u.offset()
	u.buff.WriteString("xref\n")
	for _, section := range u.subsections() {
		fmt.Fprintf(u.buff, "%d %d\n", section[0].ref.id, len(section))
		for _, entry := range section {
			fmt.Fprintf(u.buff, "%010d %05d n\r\n", entry.offset, entry.ref.gen)
		}
	}
	u.buff.WriteString("trailer\n<<")
	fmt.Fprintf(u.buff, "/Size %d ", u.nextID)
	u.writeTrailerRefs(u.buff)
	fmt.Fprintf(u.buff, "/Prev %d>>\n", u.prev)
	fmt.Fprintf(u.buff, "startxref\n%d\n%%%%EOF\n", start)
}

func (u *update) finishXRefStream() {
	self := u.allocate()
	start := u.offset()
	u.entries = append(u.entries, xrefEntry{ref: self, offset: start})

	var index []byte
	data := new(bytes.Buffer)
	for _, section := range u.subsections() {
		index = fmt.Appendf(index, "%d %d ", section[0].ref.id, len(section))
		for _, entry := range section {
			data.WriteByte(1)
			_ = binary.Write(data, binary.BigEndian, uint32(entry.offset))
			_ = binary.Write(data, binary.BigEndian, entry.ref.gen)
		}
	}

	fmt.Fprintf(u.buff, "%d %d obj\n", self.id, self.gen)
	dict := new(bytes.Buffer)
	fmt.Fprintf(dict, "/Type /XRef /Size %d /W [1 4 2] /Index [%s] ", u.nextID, bytes.TrimSpace(index))
	u.writeTrailerRefs(dict)
	fmt.Fprintf(dict, "/Prev %d ", u.prev)
	u.writeStream(dict.String(), data.Bytes())
	fmt.Fprintf(u.buff, "startxref\n%d\n%%%%EOF\n", start)
}

func (u *update) writeTrailerRefs(w *bytes.Buffer) {
	owner := ptrOf(u.trailer)
	for _, key := range []string{"Root", "Info", "ID"} {
		v := u.trailer.Key(key)
		if v.IsNull() {
			continue
		}
		fmt.Fprintf(w, "/%s ", key)
		writeValue(w, v, owner)
		w.WriteByte(' ')
	}
}

// subsections groups the entries into runs of consecutive object numbers.
func (u *update) subsections() [][]xrefEntry {
	entries := slices.Clone(u.entries)
	slices.SortFunc(entries, func(a, b xrefEntry) int {
		return int(a.ref.id) - int(b.ref.id)
	})

	var sections [][]xrefEntry
	for i, entry := range entries {
		if i == 0 || entry.ref.id != entries[i-1].ref.id+1 {
			sections = append(sections, nil)
		}
		sections[len(sections)-1] = append(sections[len(sections)-1], entry)
	}
	return sections
}
