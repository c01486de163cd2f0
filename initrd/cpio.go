package initrd

import (
	"encoding/hex"
	"fmt"
	"io"

	"corekernel/defs"
	"corekernel/util"
)

const (
	cpioMagicNewc    = "070701"
	cpioMagicNewcCRC = "070702"
	cpioHeaderLen    = 110
	cpioTrailer      = "TRAILER!!!"

	modeDirMask = 0o170000
	modeDir     = 0o040000
)

// ParseCPIO parses a CPIO "newc"/"newc+crc" stream (magic 070701/070702)
// into img, per §6.
func (img *Image) ParseCPIO(r io.Reader) defs.Err_t {
	data, err := io.ReadAll(r)
	if err != nil {
		return defs.EIoError
	}
	off := 0
	for {
		if off+cpioHeaderLen > len(data) {
			return defs.EInvalidFormat
		}
		magic := string(data[off : off+6])
		if magic != cpioMagicNewc && magic != cpioMagicNewcCRC {
			return defs.EInvalidFormat
		}
		hex8 := func(at int) (uint32, error) {
			v, err := parseHex8(data[off+at : off+at+8])
			return v, err
		}
		mode, _ := hex8(14)
		filesize, _ := hex8(54)
		namesize, _ := hex8(94)

		nameStart := off + cpioHeaderLen
		nameEnd := nameStart + int(namesize)
		if nameEnd > len(data) {
			return defs.EInvalidFormat
		}
		name := string(data[nameStart : nameEnd-1]) // strip trailing NUL

		dataStart := util.Roundup(nameEnd, 4)
		dataEnd := dataStart + int(filesize)
		if dataEnd > len(data) {
			return defs.EInvalidFormat
		}

		if name == cpioTrailer {
			return defs.EOK
		}

		isDir := mode&modeDirMask == modeDir
		e := &Entry{Mode: mode, IsDir: isDir}
		if !isDir {
			e.Data = append([]byte(nil), data[dataStart:dataEnd]...)
		}
		if name != "" && name != "." {
			e.Path = "/" + trimLeadingSlash(name)
			img.insert(e)
		}

		off = util.Roundup(dataEnd, 4)
	}
}

func parseHex8(b []byte) (uint32, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("bad hex8 field length %d", len(b))
	}
	raw, err := hex.DecodeString(string(b))
	if err != nil {
		return 0, err
	}
	var v uint32
	for _, x := range raw {
		v = v<<8 | uint32(x)
	}
	return v, nil
}

func trimLeadingSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}
