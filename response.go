package wagi

// Response is the outward-facing result of one module execution, parsed
// back from the module's standard output.
type Response struct {
	Status int    // 200 unless the module sent a status header
	Reason string // optional reason phrase; "" keeps the transport default
	Header Header
	Body   []byte
}
