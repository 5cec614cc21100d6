package wire

// ASTrans is the placeholder ASN (23456, RFC 6793 §4) a speaker that has
// not negotiated four-octet ASNs substitutes in the OPEN message and in
// AS_PATH for any real ASN that doesn't fit in two octets.
const ASTrans ASN = 23456

// ASN is an autonomous system number. The wire encoding is two or four
// bytes depending on whether the session negotiated four-octet ASN support;
// callers pick the width explicitly rather than asking the ASN itself,
// since the same ASN value is encoded differently on different sessions.
type ASN uint32

// Is4Byte reports whether a lies outside the legacy 16-bit range and
// therefore requires the four-octet ASN capability to carry as-is.
func (a ASN) Is4Byte() bool {
	return a > 0xFFFF
}

// PutASN2 appends a as a two-byte ASN, substituting AS_TRANS if it
// overflows 16 bits.
func PutASN2(b []byte, a ASN) []byte {
	v := a
	if v.Is4Byte() {
		v = ASTrans
	}
	return PutUint16(b, uint16(v))
}

// PutASN4 appends a as a four-byte ASN.
func PutASN4(b []byte, a ASN) []byte {
	return PutUint32(b, uint32(a))
}

// ReadASN2 reads a two-byte ASN.
func ReadASN2(b []byte) (ASN, error) {
	v, err := ReadUint16(b)
	return ASN(v), err
}

// ReadASN4 reads a four-byte ASN.
func ReadASN4(b []byte) (ASN, error) {
	v, err := ReadUint32(b)
	return ASN(v), err
}
