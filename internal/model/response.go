package model

// Prefixes understood by the USSD gateway. They must stay byte-for-byte as is.
const (
	prefixContinue = "CON "
	prefixEnd      = "END "
)

// Response is one USSD screen
type Response struct {
	Continue bool
	Text     string
}

// Con builds a screen that expects more input
func Con(text string) Response {
	return Response{Continue: true, Text: text}
}

// End builds a screen that terminates the session
func End(text string) Response {
	return Response{Continue: false, Text: text}
}

// String renders the body sent back to the gateway
func (r Response) String() string {
	if r.Continue {
		return prefixContinue + r.Text
	}
	return prefixEnd + r.Text
}
