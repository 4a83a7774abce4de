package rcstore

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/grailbio/base/errors"
)

// indexEntry records the byte offset of a transcript's record within an RC
// file, mirroring the indexEntry pattern of
// encoding/fasta/fasta_indexed.go in the grailbio/bio tree.
type indexEntry struct {
	offset uint64
}

// readIndex parses an .rci file: a sequence of
// (name-length:u32 LE, name:bytes, offset:u64 LE) records.
func readIndex(r io.Reader) (map[string]indexEntry, []string, error) {
	br := bufio.NewReader(r)
	idx := make(map[string]indexEntry)
	var order []string
	for {
		var nameLen uint32
		if err := binary.Read(br, binary.LittleEndian, &nameLen); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, errors.E(err, "rcstore: reading index name length")
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, nil, errors.E(err, "rcstore: reading index name")
		}
		var offset uint64
		if err := binary.Read(br, binary.LittleEndian, &offset); err != nil {
			return nil, nil, errors.E(err, "rcstore: reading index offset")
		}
		n := string(name)
		idx[n] = indexEntry{offset: offset}
		order = append(order, n)
	}
	return idx, order, nil
}

// writeIndex serializes idx, in order, as an .rci file.
func writeIndex(w io.Writer, order []string, idx map[string]indexEntry) error {
	bw := bufio.NewWriter(w)
	for _, name := range order {
		e := idx[name]
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(name))); err != nil {
			return errors.E(err, "rcstore: writing index name length")
		}
		if _, err := bw.WriteString(name); err != nil {
			return errors.E(err, "rcstore: writing index name")
		}
		if err := binary.Write(bw, binary.LittleEndian, e.offset); err != nil {
			return errors.E(err, "rcstore: writing index offset")
		}
	}
	return bw.Flush()
}
