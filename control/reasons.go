package control

// Well-known lock reason identifiers. Reasons are opaque caller strings;
// these are the ones the system itself raises.
const (
	ReasonDeadLocker           = "DeadLocker"
	ReasonNeuralNetworkHandler = "NeuralNetworkHandler"
	ReasonRESTApi              = "RESTApi"
	ReasonMain                 = "main"
)
