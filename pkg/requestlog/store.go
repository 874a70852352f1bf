package requestlog

// Logger is the minimal interface for recording entries.
// Transports accept this interface to log frames.
type Logger interface {
	Log(entry *Entry)
}

// Store defines the interface for frame history storage.
// Store embeds Logger, so any Store implementation can be used where Logger is expected.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for filtering entries.
type Filter struct {
	// Transport filters by transport name.
	Transport string

	// Conn filters by connection ID.
	Conn string

	// Matched filters by match outcome.
	Matched *bool

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new entries.
type Subscriber chan *Entry

// SubscribableStore extends Store with subscription support for live views.
type SubscribableStore interface {
	Store

	// Subscribe registers a subscriber to receive new entries.
	// Returns a channel that will receive entries and an unsubscribe function.
	Subscribe() (Subscriber, func())
}
