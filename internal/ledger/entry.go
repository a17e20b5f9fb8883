package ledger

import (
	"github.com/mmynk/contri/internal/money"
)

// PairKey identifies an unordered pair of members. Low is always the
// lexicographically smaller identifier, so a pair has exactly one key
// regardless of the order its members are named in.
type PairKey struct {
	Low  string
	High string
}

// Pair returns the canonical key for members a and b.
func Pair(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{Low: a, High: b}
}

// Has reports whether member is one side of the pair.
func (k PairKey) Has(member string) bool {
	return k.Low == member || k.High == member
}

// Other returns the side of the pair that is not member.
func (k PairKey) Other(member string) string {
	if k.Low == member {
		return k.High
	}
	return k.Low
}

// Entry is the netted balance between two members of a group.
//
// User1 is always the lexicographically smaller member. A positive Net means
// User2 owes User1; a negative Net means User1 owes User2. Settled entries
// keep the settled amount as a historical record until they are reopened.
type Entry struct {
	User1 string      `json:"user1"`
	User2 string      `json:"user2"`
	Net   money.Cents `json:"net"`
	State State       `json:"state"`
}

// Key returns the entry's canonical pair key.
func (e Entry) Key() PairKey {
	return PairKey{Low: e.User1, High: e.User2}
}

// Direction resolves the sign convention into who owes whom.
// For a zero entry both identifiers are returned with a zero amount.
func (e Entry) Direction() (debtor, creditor string, amount money.Cents) {
	if e.Net < 0 {
		return e.User1, e.User2, -e.Net
	}
	return e.User2, e.User1, e.Net
}

// OwedTo returns how much counterpart owes member on this entry; negative
// when member is the one who owes.
func (e Entry) OwedTo(member string) money.Cents {
	if e.User1 == member {
		return e.Net
	}
	return -e.Net
}

// canonical returns a copy of e oriented with User1 < User2.
func (e Entry) canonical() Entry {
	if e.User2 < e.User1 {
		e.User1, e.User2 = e.User2, e.User1
		e.Net = -e.Net
	}
	return e
}

// orient converts "debtor owes creditor amount" into the signed net for key.
func orient(key PairKey, creditor string, amount money.Cents) money.Cents {
	if creditor == key.Low {
		return amount
	}
	return -amount
}
