package common

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return "unknown"
}

// OrderRequest is what callers above the matching core submit: the core order
// fields plus the side to route on and the owner to address reports to.
type OrderRequest struct {
	ID    string // Order tracked uuid
	Side  Side   // Order side
	Price uint64 // Limit price in ticks
	Size  uint64 // Quantity requested
	Owner string // Who owns this order
}
