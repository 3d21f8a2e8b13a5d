package fulfillment

// IDGenerator issues order identifiers.
type IDGenerator interface {
	NewID() string
}
