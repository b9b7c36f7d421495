package common

import (
	"fmt"
	"time"
)

// Trade accounts for the two orders that matched. The taker is the incoming
// crossing order, the maker the resting order it consumed from; Size is the
// quantity taken from that maker, at the maker's resting price.
type Trade struct {
	TakerID    string
	MakerID    string
	TakerOwner string
	MakerOwner string
	Price      uint64
	Size       uint64
	Timestamp  time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf(
		`Taker:     %s (%s)
Maker:     %s (%s)
Price:     %d
Size:      %d
Timestamp: %v`,
		t.TakerID,
		t.TakerOwner,
		t.MakerID,
		t.MakerOwner,
		t.Price,
		t.Size,
		t.Timestamp.Format(time.RFC3339),
	)
}
