// Package id3 renders the ID3v2.4 tag that fronts a multi-part stream: a
// CTOC/CHAP chapter index and optional APIC cover art, placed so a player
// reads the chapters before any audio frame.
package id3

import (
	"bytes"
	"encoding/binary"

	"github.com/podibleapp/podible-server/internal/domain"
)

// Cover is a front-cover image attached to the tag.
type Cover struct {
	MIME string
	Data []byte
}

const (
	headerLen    = 10 // outer header and per-frame header size
	encodingUTF8 = 0x03
	// picture type 0x03 = front cover
	pictureTypeFront = 0x03
	tocElementID     = "toc"
	tocTitle         = "Chapters"
	// top-level + ordered
	ctocFlags = 0x03
)

// Encode renders the complete tag. Zero chapters and no cover produce an
// empty buffer. EncodedLen predicts the result byte-for-byte.
func Encode(chapters []domain.ChapterTiming, cover *Cover) []byte {
	hasCover := cover != nil && len(cover.Data) > 0
	if len(chapters) == 0 && !hasCover {
		return []byte{}
	}

	var payload bytes.Buffer
	if hasCover {
		writeFrame(&payload, "APIC", apicBody(cover))
	}
	writeFrame(&payload, "CTOC", ctocBody(chapters))
	for _, ch := range chapters {
		writeFrame(&payload, "CHAP", chapBody(ch))
	}

	out := make([]byte, 0, headerLen+payload.Len())
	out = append(out, 'I', 'D', '3', 0x04, 0x00, 0x00)
	out = appendSynchsafe(out, payload.Len())
	return append(out, payload.Bytes()...)
}

// EncodedLen returns the exact length Encode would produce for the same
// chapters and a cover of the given mime and byte size, without
// materializing the tag or reading the image. coverSize <= 0 means no cover.
func EncodedLen(chapters []domain.ChapterTiming, coverMIME string, coverSize int64) int {
	hasCover := coverSize > 0
	if len(chapters) == 0 && !hasCover {
		return 0
	}

	total := headerLen
	if hasCover {
		total += headerLen + apicBodyLen(coverMIME, coverSize)
	}
	total += headerLen + ctocBodyLen(chapters)
	for _, ch := range chapters {
		total += headerLen + chapBodyLen(ch)
	}
	return total
}

// APIC body: encoding, mime, 0x00, picture type, empty description, image.
func apicBody(c *Cover) []byte {
	body := make([]byte, 0, apicBodyLen(c.MIME, int64(len(c.Data))))
	body = append(body, encodingUTF8)
	body = append(body, c.MIME...)
	body = append(body, 0x00, pictureTypeFront, 0x00)
	return append(body, c.Data...)
}

func apicBodyLen(mime string, size int64) int {
	return 1 + len(mime) + 3 + int(size)
}

// CTOC body: element id, flags, child count, child ids, then an embedded
// TIT2 subframe naming the table of contents.
func ctocBody(chapters []domain.ChapterTiming) []byte {
	var body bytes.Buffer
	body.WriteString(tocElementID)
	body.WriteByte(0x00)
	body.WriteByte(ctocFlags)
	body.WriteByte(byte(len(chapters)))
	for _, ch := range chapters {
		body.WriteString(ch.ID)
		body.WriteByte(0x00)
	}
	writeFrame(&body, "TIT2", textBody(tocTitle))
	return body.Bytes()
}

func ctocBodyLen(chapters []domain.ChapterTiming) int {
	n := len(tocElementID) + 1 + 1 + 1
	for _, ch := range chapters {
		n += len(ch.ID) + 1
	}
	return n + headerLen + textBodyLen(tocTitle)
}

// CHAP body: element id, start/end in ms, unknown byte offsets, then an
// embedded TIT2 subframe carrying the chapter title.
func chapBody(ch domain.ChapterTiming) []byte {
	var body bytes.Buffer
	body.WriteString(ch.ID)
	body.WriteByte(0x00)

	var times [16]byte
	binary.BigEndian.PutUint32(times[0:4], uint32(ch.StartMS))
	binary.BigEndian.PutUint32(times[4:8], uint32(ch.EndMS))
	binary.BigEndian.PutUint32(times[8:12], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(times[12:16], 0xFFFFFFFF)
	body.Write(times[:])

	writeFrame(&body, "TIT2", textBody(ch.Title))
	return body.Bytes()
}

func chapBodyLen(ch domain.ChapterTiming) int {
	return len(ch.ID) + 1 + 16 + headerLen + textBodyLen(ch.Title)
}

// Text frame body: UTF-8 encoding byte followed by the raw text, no
// terminator.
func textBody(text string) []byte {
	body := make([]byte, 0, textBodyLen(text))
	body = append(body, encodingUTF8)
	return append(body, text...)
}

func textBodyLen(text string) int {
	return 1 + len(text)
}

// writeFrame emits a v2.4 frame: 4-byte ASCII id, synchsafe body size, two
// zero flag bytes, body. Subframes inside CTOC/CHAP use the same shape.
func writeFrame(buf *bytes.Buffer, id string, body []byte) {
	buf.WriteString(id)
	var size [4]byte
	putSynchsafe(size[:], len(body))
	buf.Write(size[:])
	buf.WriteByte(0x00)
	buf.WriteByte(0x00)
	buf.Write(body)
}

// Synchsafe integers keep bit 7 of every byte clear: four 7-bit big-endian
// digits.
func putSynchsafe(b []byte, n int) {
	b[0] = byte(n >> 21 & 0x7F)
	b[1] = byte(n >> 14 & 0x7F)
	b[2] = byte(n >> 7 & 0x7F)
	b[3] = byte(n & 0x7F)
}

func appendSynchsafe(b []byte, n int) []byte {
	var digits [4]byte
	putSynchsafe(digits[:], n)
	return append(b, digits[:]...)
}
