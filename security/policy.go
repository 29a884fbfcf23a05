package security

// EncryptionPolicy tells the document loader what to do with encrypted
// files. Key derivation itself is out of scope for this library; callers
// that need decrypted content must pre-process the file.
type EncryptionPolicy int

const (
	// EncryptionReject fails the load when a trailer carries /Encrypt.
	EncryptionReject EncryptionPolicy = iota
	// EncryptionIgnore loads the document structure without decrypting.
	// Encrypted strings and streams surface as undecodable payloads and are
	// absorbed by the per-element error tier.
	EncryptionIgnore
)

func (p EncryptionPolicy) String() string {
	switch p {
	case EncryptionReject:
		return "reject"
	case EncryptionIgnore:
		return "ignore"
	default:
		return "unknown"
	}
}
