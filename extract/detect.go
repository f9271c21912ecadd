package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// ErrNotEPUB marks input that is a valid container but not an EPUB book.
var ErrNotEPUB = errors.New("extract: source is not an EPUB container")

// readHeader reads the sniffing window detection needs. Short files are fine,
// whatever is there gets matched.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// isBookFile reports whether the file is an EPUB container. Detection is done
// by content, never by extension alone - renamed books are too common.
func isBookFile(path string) (bool, error) {
	buf, err := readHeader(path)
	if err != nil {
		return false, err
	}
	return isBookData(buf), nil
}

// isArchiveFile reports whether the file is a plain zip archive (possibly
// holding multiple books). An EPUB is zip-based too, so the book check must
// run first.
func isArchiveFile(path string) (bool, error) {
	buf, err := readHeader(path)
	if err != nil {
		return false, err
	}
	if isBookData(buf) {
		return false, nil
	}
	return filetype.IsType(buf, matchers.TypeZip), nil
}

var (
	zipLocalHeader = []byte{0x50, 0x4B, 0x03, 0x04}
	epubMemberName = []byte("mimetype")
	epubMediaType  = []byte("application/epub+zip")
)

// isBookData reports whether in-memory container bytes are an EPUB. OCF
// requires the first member to be an uncompressed "mimetype" file holding the
// EPUB media type, which pins the member name at the end of the 30-byte zip
// local file header. The extra field length from the header is honored since
// some packers put one between the name and the payload.
func isBookData(data []byte) bool {
	const headerSize = 30

	if len(data) < headerSize || !bytes.HasPrefix(data, zipLocalHeader) {
		return false
	}

	nameLen := int(binary.LittleEndian.Uint16(data[26:28]))
	extraLen := int(binary.LittleEndian.Uint16(data[28:30]))
	if nameLen != len(epubMemberName) {
		return false
	}

	nameEnd := headerSize + nameLen
	payloadStart := nameEnd + extraLen
	if len(data) < payloadStart+len(epubMediaType) {
		return false
	}
	return bytes.Equal(data[headerSize:nameEnd], epubMemberName) &&
		bytes.Equal(data[payloadStart:payloadStart+len(epubMediaType)], epubMediaType)
}
