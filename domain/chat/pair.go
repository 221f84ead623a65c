package chat

// Pair is the unordered pair of participants identifying a conversation.
// Low and High hold the two ids in lexicographic order so that the pair
// {a,b} and {b,a} compare and serialize identically.
type Pair struct {
	Low  string
	High string
}

func NewPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Key returns a stable string form of the pair, usable as a storage prefix.
func (p Pair) Key() string {
	return p.Low + "|" + p.High
}

func (p Pair) Contains(id string) bool {
	return id == p.Low || id == p.High
}

// Other returns the counterpart of id within the pair, or "" when id is not
// a participant.
func (p Pair) Other(id string) string {
	switch id {
	case p.Low:
		return p.High
	case p.High:
		return p.Low
	default:
		return ""
	}
}
