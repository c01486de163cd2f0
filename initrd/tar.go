package initrd

import (
	"io"
	"strconv"
	"strings"

	"corekernel/defs"
)

const (
	tarBlockSize  = 512
	tarMagicUstar = "ustar"
	tarMagicOff   = 257

	tarTypeDir = '5'
)

// ParseTAR parses a USTAR TAR stream (magic "ustar" at header offset 257)
// into img, per §6.
func (img *Image) ParseTAR(r io.Reader) defs.Err_t {
	data, err := io.ReadAll(r)
	if err != nil {
		return defs.EIoError
	}
	off := 0
	for off+tarBlockSize <= len(data) {
		hdr := data[off : off+tarBlockSize]
		if isZeroBlock(hdr) {
			break
		}
		if string(hdr[tarMagicOff:tarMagicOff+5]) != tarMagicUstar {
			return defs.EInvalidFormat
		}

		name := cstr(hdr[0:100])
		prefix := cstr(hdr[345:500])
		if prefix != "" {
			name = prefix + "/" + name
		}
		sizeOctal := cstr(hdr[124:136])
		size, err := strconv.ParseInt(strings.TrimSpace(sizeOctal), 8, 64)
		if err != nil {
			return defs.EInvalidFormat
		}
		modeOctal := cstr(hdr[100:108])
		modeVal, _ := strconv.ParseUint(strings.TrimSpace(modeOctal), 8, 32)
		typeflag := hdr[156]

		dataStart := off + tarBlockSize
		dataEnd := dataStart + int(size)
		if dataEnd > len(data) {
			return defs.EInvalidFormat
		}

		isDir := typeflag == tarTypeDir || strings.HasSuffix(name, "/")
		e := &Entry{Mode: uint32(modeVal), IsDir: isDir}
		if !isDir {
			e.Data = append([]byte(nil), data[dataStart:dataEnd]...)
		}
		if name != "" {
			e.Path = "/" + trimLeadingSlash(strings.TrimSuffix(name, "/"))
			img.insert(e)
		}

		off = dataStart + int(roundupBlock(size))
	}
	return defs.EOK
}

func roundupBlock(n int64) int64 {
	return (n + tarBlockSize - 1) / tarBlockSize * tarBlockSize
}

func cstr(b []byte) string {
	if i := indexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func isZeroBlock(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}

// writeTAREntry writes one USTAR header+data block pair, for cmd/mkinitrd's
// -format=tar mode and for round-trip tests.
func writeTAREntry(w io.Writer, name string, mode uint32, data []byte, isDir bool) error {
	hdr := make([]byte, tarBlockSize)
	copy(hdr[0:100], name)
	putOctal(hdr[100:108], uint64(mode), 7)
	putOctal(hdr[108:116], 0, 7) // uid
	putOctal(hdr[116:124], 0, 7) // gid
	putOctal(hdr[124:136], uint64(len(data)), 11)
	putOctal(hdr[136:148], 0, 11) // mtime
	for i := range hdr[148:156] {
		hdr[148+i] = ' ' // checksum field, filled with spaces before the (unused) check
	}
	if isDir {
		hdr[156] = tarTypeDir
	} else {
		hdr[156] = '0'
	}
	copy(hdr[tarMagicOff:tarMagicOff+6], tarMagicUstar+"\x00")
	copy(hdr[263:265], "00")

	if _, err := w.Write(hdr); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	pad := int(roundupBlock(int64(len(data)))) - len(data)
	if pad > 0 {
		_, err := w.Write(make([]byte, pad))
		return err
	}
	return nil
}

func putOctal(b []byte, v uint64, digits int) {
	s := strconv.FormatUint(v, 8)
	for len(s) < digits {
		s = "0" + s
	}
	copy(b, s)
}
