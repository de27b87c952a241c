package channel

import (
	"github.com/gofrs/uuid/v5"
)

// Token is the opaque delivery token returned by Get and required by Ack
// and Nack. It wraps a monotonically increasing internal id inside a
// random v4 UUID so callers cannot infer delivery order or forge a token
// from another message's id; the channel's own bookkeeping still indexes
// in-flight messages by the internal id for speed.
type Token struct {
	id       uint64
	external uuid.UUID
}

func newToken(id uint64) Token {
	external, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system's random source is
		// broken, in which case nothing in the process can make
		// progress safely anyway.
		panic("channel: generate delivery token: " + err.Error())
	}
	return Token{id: id, external: external}
}

// String returns the token's external, opaque representation.
func (t Token) String() string {
	return t.external.String()
}
