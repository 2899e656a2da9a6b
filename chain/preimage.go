package chain

import "encoding/hex"

// EncodedPreimage is the on-chain byte-array representation of a preimage
// passed to the claim entrypoint: a list of 31-byte big-endian chunks plus a
// trailing partial word, matching the chain's ByteArray encoding exactly
// (spec §4.2, "Encoding of the preimage for the claim call").
type EncodedPreimage struct {
	Data           []string // 0x-hex, each exactly 31 bytes
	PendingWord    string   // 0x-hex of the remaining 0..30 bytes
	PendingWordLen int      // length in bytes of PendingWord's content
}

// EncodePreimage splits data into 31-byte big-endian chunks followed by a
// trailing partial word.
func EncodePreimage(data []byte) EncodedPreimage {
	const chunkSize = 31

	var chunks []string
	i := 0
	for ; i+chunkSize <= len(data); i += chunkSize {
		chunks = append(chunks, "0x"+hex.EncodeToString(data[i:i+chunkSize]))
	}

	remainder := data[i:]
	return EncodedPreimage{
		Data:           chunks,
		PendingWord:    "0x" + hex.EncodeToString(remainder),
		PendingWordLen: len(remainder),
	}
}
