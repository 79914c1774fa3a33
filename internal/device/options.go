package device

// OptionKey names one recognized scan option (spec.md §4.2).
type OptionKey string

const (
	OptionConnection    OptionKey = "connection-spec"
	OptionSerialComm     OptionKey = "serial-comm-spec"
	OptionModelHint       OptionKey = "model-hint"
)

// ScanOptions is the set of (key, value) pairs passed to Driver.Scan.
type ScanOptions map[OptionKey]string

// Connection returns the connection-spec option, or "" if absent.
func (o ScanOptions) Connection() string {
	return o[OptionConnection]
}

// SerialComm returns the serial-comm-spec option, or "" if absent.
func (o ScanOptions) SerialComm() string {
	return o[OptionSerialComm]
}

// ModelHint returns the model-hint option, or "" if absent.
func (o ScanOptions) ModelHint() string {
	return o[OptionModelHint]
}
