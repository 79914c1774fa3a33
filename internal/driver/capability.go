package driver

// InfoID names one of the metadata/capability queries a driver answers via
// InfoGet (spec.md §4.2).
type InfoID int

const (
	InfoSupportedOptions InfoID = iota
	InfoSupportedCapabilities
	InfoProbeCount
	InfoProbeNames
	InfoSamplerates
	InfoTriggerAlphabet
	InfoCurrentSamplerate
	InfoPatterns
	InfoBufferSizes
	InfoTimeBases
	InfoTriggerSources
	InfoFilters
	InfoVdivs
	InfoCoupling
)

// ConfigCap names one of the configuration capabilities a driver may accept
// via ConfigSet (spec.md §4.2).
type ConfigCap int

const (
	ConfigSamplerate ConfigCap = iota
	ConfigCaptureRatio
	ConfigLimitSamples
	ConfigLimitMsec
	ConfigLimitFrames
	ConfigContinuous
	ConfigRLE
	ConfigTriggerSlope
	ConfigTriggerSource
	ConfigHorizTriggerPos
	ConfigBufferSize
	ConfigTimeBase
	ConfigFilter
	ConfigVdiv
	ConfigCoupling
	ConfigPatternMode
	ConfigSessionFile
	ConfigCaptureFile
	ConfigCaptureUnitSize
	ConfigCaptureNumProbes
	// ConfigVoltageThreshold is a DSLogic-only supplement (see
	// SPEC_FULL.md "SUPPLEMENTED FEATURES"): the original's
	// dslogic_set_vth has no equivalent spec.md cap.
	ConfigVoltageThreshold
)

// SamplerateRange describes a (low, high, step) samplerate set, returned
// from InfoGet(InfoSamplerates) when the driver supports a continuous
// range rather than an enumerated list. All three fields are nonzero.
type SamplerateRange struct {
	Low, High, Step uint64
}

// SamplerateList is the enumerated alternative to SamplerateRange. A
// driver's InfoGet(InfoSamplerates) result is exactly one of the two, never
// both (spec.md §4.2).
type SamplerateList []uint64

// MinNumSamples is the smallest limit-samples value ConfigSet will accept
// (spec.md §8 boundary case).
const MinNumSamples = 4
