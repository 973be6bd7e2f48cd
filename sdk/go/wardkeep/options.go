package wardkeep

// WrapOption configures a single Wrap call.
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	source      string
	destination string
	operation   string
}

// WithSource sets the default source domain for calls through this wrap.
func WithSource(domain string) WrapOption {
	return func(w *wrapConfig) { w.source = domain }
}

// WithDestination sets the default destination domain.
func WithDestination(domain string) WrapOption {
	return func(w *wrapConfig) { w.destination = domain }
}

// WithOperation sets the default operation kind (read, write, transfer).
func WithOperation(op string) WrapOption {
	return func(w *wrapConfig) { w.operation = op }
}

// apply fills empty Flow fields from the wrap defaults. Call-site values
// win over wrap defaults.
func (w wrapConfig) apply(f Flow) Flow {
	if f.Source == "" {
		f.Source = w.source
	}
	if f.Destination == "" {
		f.Destination = w.destination
	}
	if f.Operation == "" {
		f.Operation = w.operation
	}
	return f
}
