package rcstore

// baseCode maps the four recognized nucleotide bases to their 2-bit code.
// T and U share the same code: the reactivity pipeline never needs to
// distinguish RNA from DNA alphabets at this layer.
var baseCode = map[byte]byte{
	'A': 0, 'C': 1, 'G': 2, 'T': 3, 'U': 3,
}

var codeBase = [4]byte{'A', 'C', 'G', 'T'}

// packSeq 2-bit packs seq (over {A,C,G,T,U,N}) into ceil(len(seq)/4) bytes.
// N is packed as A (code 0); the sequence length stored in the record
// header is what lets a reader recover the original base count, not the
// packed byte count.
func packSeq(seq string) []byte {
	n := len(seq)
	out := make([]byte, (n+3)/4)
	for i := 0; i < n; i++ {
		code := baseCode[normalizeBase(seq[i])]
		out[i/4] |= code << uint((i%4)*2)
	}
	return out
}

// unpackSeq recovers n bases from a 2-bit packed byte slice. The packed
// encoding has no code for N, so an 'N' written to an RC file reads back
// as 'A'; likewise T and U share a code, so a 'U' reads back as 'T'. This
// is a property of the on-disk format itself, not a defect in this codec.
func unpackSeq(packed []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b := packed[i/4]
		code := (b >> uint((i%4)*2)) & 0x3
		out[i] = codeBase[code]
	}
	return out
}

func normalizeBase(b byte) byte {
	if _, ok := baseCode[b]; ok {
		return b
	}
	return 'A'
}
