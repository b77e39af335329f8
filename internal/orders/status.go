package orders

type Status string

const (
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusCompleted Status = "Completed"
)

// Shipped -> Shipped is the shipment correction edge: the seller may resend
// carrier/tracking while the parcel is in transit. It never moves the order.
var validNext = map[Status]map[Status]bool{
	StatusPaid:      {StatusShipped: true},
	StatusShipped:   {StatusShipped: true, StatusCompleted: true},
	StatusCompleted: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// IsCompleted is the completion check the review gate depends on.
func IsCompleted(s Status) bool { return s == StatusCompleted }

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

var rank = map[Status]int{
	StatusPaid:      1,
	StatusShipped:   2,
	StatusCompleted: 3,
}

// Rank orders statuses along the lifecycle. Unknown statuses rank 0.
func (s Status) Rank() int { return rank[s] }

// Supersedes reports whether s may replace cur in a status projection.
// Equal ranks replace, so a re-ship refreshes its own entry.
func (s Status) Supersedes(cur Status) bool { return s.Rank() >= cur.Rank() }
