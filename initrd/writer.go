package initrd

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// WriteCPIO walks hostDir and writes a CPIO "newc" archive containing its
// files to w, in the layout cmd/mkinitrd builds and ParseCPIO reads back.
// Adapted from biscuit's mkfs.go host-directory walk.
func WriteCPIO(w io.Writer, hostDir string) error {
	var paths []string
	err := filepath.WalkDir(hostDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == hostDir {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	var ino uint32 = 1
	for _, p := range paths {
		rel, err := filepath.Rel(hostDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := os.Lstat(p)
		if err != nil {
			return err
		}

		var mode uint32
		var data []byte
		if info.IsDir() {
			mode = modeDir | 0o755
		} else {
			mode = 0o100000 | uint32(info.Mode().Perm())
			data, err = os.ReadFile(p)
			if err != nil {
				return err
			}
		}

		if err := writeCPIOEntry(w, ino, rel, mode, data); err != nil {
			return err
		}
		ino++
	}
	return writeCPIOEntry(w, ino, cpioTrailer, 0, nil)
}

// WriteTAR walks hostDir and writes a USTAR archive to w.
func WriteTAR(w io.Writer, hostDir string) error {
	var paths []string
	err := filepath.WalkDir(hostDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == hostDir {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	for _, p := range paths {
		rel, err := filepath.Rel(hostDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := os.Lstat(p)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := writeTAREntry(w, rel+"/", uint32(info.Mode().Perm()), nil, true); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		if err := writeTAREntry(w, rel, uint32(info.Mode().Perm()), data, false); err != nil {
			return err
		}
	}
	_, err = w.Write(make([]byte, tarBlockSize*2))
	return err
}

func writeCPIOEntry(w io.Writer, ino uint32, name string, mode uint32, data []byte) error {
	var buf bytes.Buffer
	namesize := len(name) + 1

	fmt.Fprintf(&buf, "%s", cpioMagicNewc)
	fields := []uint32{
		ino, mode, 0, 0, 1, 0,
		uint32(len(data)), 0, 0, 0, 0,
		uint32(namesize), 0,
	}
	for _, f := range fields {
		fmt.Fprintf(&buf, "%08X", f)
	}
	buf.WriteString(name)
	buf.WriteByte(0)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	buf.Write(data)
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
