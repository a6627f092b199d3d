package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string used as a user primary key. ULIDs sort by creation
// time; they are not secret and must never serve as session identifiers.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
