package handshake

// Adobe "complex" handshake support: digest validation and HMAC-SHA256 based
// S1/S2 generation. A peer that doesn't embed a digest (message format 0)
// is served with the plain byte-echo simple handshake instead; both schemes
// are accepted on the same listener, distinguished by sniffing C1.

import (
	"crypto/hmac"
	"crypto/sha256"
)

// digestScheme identifies where in C1/S1 the 764-byte digest block embeds
// its digest: scheme 1 keeps the digest offset field at bytes[8:12], scheme
// 2 at bytes[772:776]. Real clients (Flash Player/ffmpeg -rtmp_flashver) pick
// either layout; both must be tried.
type digestScheme int

const (
	schemeNone digestScheme = iota // no digest present: plain simple handshake
	scheme1
	scheme2
)

const (
	digestLen    = sha256.Size // 32
	sigSize      = PacketSize  // 1536
	digestBlock0 = 8           // scheme1 offset-field position
	digestBlock1 = 772         // scheme2 offset-field position
)

var genuineFPConst = []byte("Genuine Adobe Flash Player 001")
var genuineFMSConst = []byte("Genuine Adobe Flash Media Server 001")

// randomCrud is appended to the FMS constant when deriving the S2 challenge
// key, per the published Adobe handshake algorithm.
var randomCrud = []byte{
	0xf0, 0xee, 0xc2, 0x4a, 0x80, 0x68, 0xbe, 0xe8,
	0x2e, 0x00, 0xd0, 0xd1, 0x02, 0x9e, 0x7e, 0x57,
	0x6e, 0xec, 0x5d, 0x2d, 0x29, 0x80, 0x6f, 0xab,
	0x93, 0xb8, 0xe6, 0x36, 0xcf, 0xeb, 0x31, 0xae,
}

func hmacSHA256(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// digestOffset computes where within a 1536-byte block (given the 4 bytes at
// the scheme's offset field) the 32-byte digest begins.
func digestOffset(block []byte, scheme digestScheme) uint32 {
	var field []byte
	var base uint32
	switch scheme {
	case scheme1:
		field, base = block[digestBlock0:digestBlock0+4], 12
	case scheme2:
		field, base = block[digestBlock1:digestBlock1+4], 776
	default:
		return 0
	}
	sum := uint32(field[0]) + uint32(field[1]) + uint32(field[2]) + uint32(field[3])
	return (sum % 728) + base
}

// digestMessage returns block with the digestLen-byte digest region removed
// (the digest itself is computed over everything else).
func digestMessage(block []byte, offset uint32) []byte {
	msg := make([]byte, 0, len(block)-digestLen)
	msg = append(msg, block[:offset]...)
	msg = append(msg, block[offset+digestLen:]...)
	return msg
}

// detectClientScheme tries both digest offset schemes against c1 and reports
// which one (if any) validates against the Flash Player constant, per Adobe's
// handshake algorithm. Returns schemeNone for a simple-handshake client.
func detectClientScheme(c1 []byte) digestScheme {
	return detectScheme(c1, genuineFPConst)
}

// detectServerScheme mirrors detectClientScheme for the client side: it
// checks whether a server's S1 block carries a valid FMS-keyed digest.
func detectServerScheme(s1 []byte) digestScheme {
	return detectScheme(s1, genuineFMSConst)
}

func detectScheme(block []byte, key []byte) digestScheme {
	for _, scheme := range []digestScheme{scheme2, scheme1} {
		offset := digestOffset(block, scheme)
		if offset == 0 || offset+digestLen > uint32(len(block)) {
			continue
		}
		msg := digestMessage(block, offset)
		expected := hmacSHA256(msg, key)
		provided := block[offset : offset+digestLen]
		if hmac.Equal(expected, provided) {
			return scheme
		}
	}
	return schemeNone
}

// buildComplexS1 stamps a server digest (keyed on the FMS constant) into a
// fully-formed 1536-byte S1 block (timestamp+zero+random already in place)
// at the offset the given scheme selects, returning the updated block.
func buildComplexS1(scheme digestScheme, s1 []byte) []byte {
	return stampDigest(scheme, s1, genuineFMSConst)
}

// buildComplexC1 stamps a client digest (keyed on the Flash Player constant)
// into a fully-formed 1536-byte C1 block, used when this module dials out as
// an RTMP client against a server that requires the complex handshake.
func buildComplexC1(scheme digestScheme, c1 []byte) []byte {
	return stampDigest(scheme, c1, genuineFPConst)
}

// stampDigest computes the HMAC-SHA256 digest of block (excluding the
// digestLen-byte digest region itself) and writes it in place at the offset
// the scheme selects, returning the same slice for chaining.
func stampDigest(scheme digestScheme, block []byte, key []byte) []byte {
	offset := digestOffset(block, scheme)
	msg := digestMessage(block, offset)
	digest := hmacSHA256(msg, key)
	copy(block[offset:offset+digestLen], digest)
	return block
}

// buildComplexS2 derives the server's S2 response from the client's C1
// digest: S2 = random || HMAC(random, HMAC(clientDigest, FMS const+crud)).
func buildComplexS2(scheme digestScheme, c1, random []byte) []byte {
	return buildChallengeResponse(scheme, c1, genuineFMSConst, random)
}

// buildComplexC2 derives the client's C2 response from the server's S1
// digest, symmetric to buildComplexS2 but keyed with the Flash Player
// constant: C2 = random || HMAC(random, HMAC(serverDigest, FP const+crud)).
func buildComplexC2(scheme digestScheme, s1, random []byte) []byte {
	return buildChallengeResponse(scheme, s1, genuineFPConst, random)
}

// buildChallengeResponse implements the shared half of the Adobe complex
// handshake's second message (S2/C2): extract the peer's embedded digest,
// derive a key from it keyed with constBase+randomCrud, then sign random
// bytes with that key.
func buildChallengeResponse(scheme digestScheme, peerBlock []byte, constBase []byte, random []byte) []byte {
	offset := digestOffset(peerBlock, scheme)
	peerDigest := peerBlock[offset : offset+digestLen]
	key := hmacSHA256(peerDigest, append(append([]byte{}, constBase...), randomCrud...))
	signature := hmacSHA256(random, key)

	resp := make([]byte, sigSize)
	copy(resp, random)
	copy(resp[sigSize-digestLen:], signature)
	return resp
}
