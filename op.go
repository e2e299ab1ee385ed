package api

// Op names an operation together with the Go types its request and response
// decode into. It carries no behaviour; client.Do and server.Typed use it to
// keep call sites typed.
type Op[Req, Resp any] struct {
	Name string
}

func NewOp[Req, Resp any](name string) Op[Req, Resp] {
	return Op[Req, Resp]{Name: name}
}

// Unit is the request or response type of an operation without a payload.
type Unit = struct{}
