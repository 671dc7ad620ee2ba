package connection

// Credentials authenticate a ServerConnection. Implementations: *Token, *UsernameAndPassword.
type Credentials interface {
	// Clone returns a deep copy, including the secret buffer.
	Clone() Credentials
	// Erase zeroes the secret material.
	Erase()

	isCredentials()
}

// Token is a bearer token credential.
type Token struct {
	Secret *Secret
}

// UsernameAndPassword is a basic-auth credential. Username may be empty.
type UsernameAndPassword struct {
	Username string
	Password *Secret
}

// NewToken creates token credentials.
func NewToken(token string) *Token {
	return &Token{Secret: NewSecret(token)}
}

// NewUsernameAndPassword creates basic-auth credentials.
func NewUsernameAndPassword(username, password string) *UsernameAndPassword {
	return &UsernameAndPassword{Username: username, Password: NewSecret(password)}
}

func (t *Token) Clone() Credentials {
	return &Token{Secret: t.Secret.Clone()}
}

func (t *Token) Erase() {
	t.Secret.Erase()
}

func (*Token) isCredentials() {}

func (u *UsernameAndPassword) Clone() Credentials {
	return &UsernameAndPassword{Username: u.Username, Password: u.Password.Clone()}
}

func (u *UsernameAndPassword) Erase() {
	u.Password.Erase()
}

func (*UsernameAndPassword) isCredentials() {}

// StoredCredential is the username/secret pair representation used by secret stores that
// only know about generic "username + password" entries.
type StoredCredential struct {
	Username string
	Secret   *Secret
}

// FromStoredCredential maps a stored pair back to Credentials.
//
// An empty secret means the pair was written from a token, which is kept in the username
// field. Anything else, including an empty username, is a username/password pair.
func FromStoredCredential(c StoredCredential) Credentials {
	if c.Secret.IsEmpty() {
		return &Token{Secret: NewSecret(c.Username)}
	}
	return &UsernameAndPassword{Username: c.Username, Password: c.Secret.Clone()}
}

// ToStoredCredential maps Credentials to a username/secret pair. The second return value is
// false for credential kinds that cannot be represented.
func ToStoredCredential(c Credentials) (StoredCredential, bool) {
	switch c := c.(type) {
	case *Token:
		return StoredCredential{Username: c.Secret.Reveal(), Secret: &Secret{}}, true
	case *UsernameAndPassword:
		return StoredCredential{Username: c.Username, Secret: c.Password.Clone()}, true
	default:
		return StoredCredential{}, false
	}
}
