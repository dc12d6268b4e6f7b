package testsupport

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/adler32"
	"testing"
)

// InterleaveSectors lays cooked data out as physical sectors with the given
// header and footer sizes. Header bytes are 0xAA and footer bytes are 0xBB so a
// read that leaks interleaved bytes is obvious. The final sector is padded with
// zeros to a full data region.
func InterleaveSectors(cooked []byte, header, footer, data int) []byte {
	var buf bytes.Buffer
	hdr := bytes.Repeat([]byte{0xAA}, header)
	ftr := bytes.Repeat([]byte{0xBB}, footer)
	for off := 0; off < len(cooked); off += data {
		end := min(off+data, len(cooked))
		buf.Write(hdr)
		buf.Write(cooked[off:end])
		if pad := data - (end - off); pad > 0 {
			buf.Write(make([]byte, pad))
		}
		buf.Write(ftr)
	}
	return buf.Bytes()
}

// GCZOptions controls BuildGCZ.
type GCZOptions struct {
	BlockSize int
	// Stored reports whether block i is written verbatim with the flag bit set.
	Stored func(i int) bool
}

const gczMagic = 0xB10BC001

// BuildGCZ compresses data into a GCZ image: a 32-byte header, 8 bytes of
// block pointer per block, 4 bytes of Adler-32 per block, then the block data.
func BuildGCZ(t testing.TB, data []byte, opts GCZOptions) []byte {
	t.Helper()

	bs := opts.BlockSize
	if bs <= 0 {
		t.Fatalf("BuildGCZ: block size must be positive")
	}
	count := (len(data) + bs - 1) / bs

	var payload bytes.Buffer
	pointers := make([]uint64, count)
	hashes := make([]uint32, count)
	for i := 0; i < count; i++ {
		block := data[i*bs : min((i+1)*bs, len(data))]
		pointers[i] = uint64(payload.Len())
		if opts.Stored != nil && opts.Stored(i) {
			pointers[i] |= 1 << 63
			payload.Write(block)
		} else {
			zw := zlib.NewWriter(&payload)
			if _, err := zw.Write(block); err != nil {
				t.Fatalf("BuildGCZ: compress block %d: %v", i, err)
			}
			if err := zw.Close(); err != nil {
				t.Fatalf("BuildGCZ: close block %d: %v", i, err)
			}
		}
		hashes[i] = adler32.Checksum(block)
	}

	out := make([]byte, 32, 32+12*count+payload.Len())
	binary.LittleEndian.PutUint32(out[0:4], gczMagic)
	binary.LittleEndian.PutUint64(out[8:16], uint64(payload.Len()))
	binary.LittleEndian.PutUint64(out[16:24], uint64(len(data)))
	binary.LittleEndian.PutUint32(out[24:28], uint32(bs))
	binary.LittleEndian.PutUint32(out[28:32], uint32(count))
	for _, p := range pointers {
		out = binary.LittleEndian.AppendUint64(out, p)
	}
	for _, h := range hashes {
		out = binary.LittleEndian.AppendUint32(out, h)
	}
	return append(out, payload.Bytes()...)
}

// CHDHeader returns a minimal CHD header of the given version with sha1
// placed at the version's fixed offset.
func CHDHeader(version uint32, sha1 []byte) []byte {
	size := 124
	if version == 4 {
		size = 108
	}
	buf := make([]byte, size)
	copy(buf[0:8], "MComprHD")
	binary.BigEndian.PutUint32(buf[8:12], uint32(size))
	binary.BigEndian.PutUint32(buf[12:16], version)
	switch version {
	case 4:
		copy(buf[48:68], sha1)
	case 5:
		copy(buf[84:104], sha1)
	}
	return buf
}
