package auth

// HashPassword derives a PHC-formatted argon2id digest of a user's
// plaintext password, using the same parameters and encoding as API-key
// secret hashing.
func HashPassword(password string) (string, error) {
	return hashPHC(password)
}

// VerifyPassword reports whether password matches the PHC-formatted digest
// encoded.
func VerifyPassword(encoded, password string) (bool, error) {
	return verifyPHC(encoded, password)
}
