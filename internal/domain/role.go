package domain

// TransportRole names one of the two singleton transport slots of the
// broadcast session.
type TransportRole string

const (
	RoleProducer TransportRole = "producer"
	RoleConsumer TransportRole = "consumer"
)
