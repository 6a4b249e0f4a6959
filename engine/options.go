package engine

// Option identifies a per-transfer setting. The identifier space is
// segmented by value kind: truncating to a multiple of kindSpan yields the
// kind of value an option accepts, so typed setters can reject a mismatched
// identifier without a lookup table.
type Option int

// OptionKind is the value class encoded in an [Option] identifier.
type OptionKind int

const kindSpan = 10000

const (
	KindLong    OptionKind = 0 * kindSpan
	KindString  OptionKind = 1 * kindSpan
	KindList    OptionKind = 2 * kindSpan
	KindOffset  OptionKind = 3 * kindSpan
	KindPointer OptionKind = 4 * kindSpan
)

// Kind reports the value class of the option.
func (o Option) Kind() OptionKind {
	return OptionKind(int(o) / kindSpan * kindSpan)
}

// Long options. Boolean switches are long options set to 0 or 1.
const (
	OptPort             Option = Option(KindLong) + 3
	OptLowSpeedLimit    Option = Option(KindLong) + 19
	OptLowSpeedTime     Option = Option(KindLong) + 20
	OptVerbose          Option = Option(KindLong) + 41
	OptNoBody           Option = Option(KindLong) + 44
	OptFailOnError      Option = Option(KindLong) + 45
	OptUpload           Option = Option(KindLong) + 46
	OptFollowLocation   Option = Option(KindLong) + 52
	OptMaxRedirs        Option = Option(KindLong) + 68
	OptHTTPGet          Option = Option(KindLong) + 80
	OptBufferSize       Option = Option(KindLong) + 98
	OptTimeoutMS        Option = Option(KindLong) + 155
	OptConnectTimeoutMS Option = Option(KindLong) + 156
)

// String options.
const (
	OptURL        Option = Option(KindString) + 2
	OptProxy      Option = Option(KindString) + 4
	OptPostFields Option = Option(KindString) + 15
	OptUserAgent  Option = Option(KindString) + 18
	OptCookie     Option = Option(KindString) + 22
)

// List options.
const (
	OptHTTPHeader Option = Option(KindList) + 23
	OptResolve    Option = Option(KindList) + 203
)

// Offset options.
const (
	OptUploadSize  Option = Option(KindOffset) + 115
	OptResumeFrom  Option = Option(KindOffset) + 116
	OptMaxFileSize Option = Option(KindOffset) + 117
)

// Pointer options.
const (
	OptPrivate Option = Option(KindPointer) + 21
)

// Info identifies a readable transfer property. Like [Option], identifiers
// carry their value kind, here in a high bit mask.
type Info int

// InfoKind is the value class encoded in an [Info] identifier.
type InfoKind int

const infoKindMask = 0xf00000

const (
	InfoKindString InfoKind = 0x100000
	InfoKindLong   InfoKind = 0x200000
	InfoKindDouble InfoKind = 0x300000
	InfoKindSocket InfoKind = 0x500000
)

// Kind reports the value class of the info identifier.
func (i Info) Kind() InfoKind {
	return InfoKind(int(i) & infoKindMask)
}

const (
	InfoEffectiveURL Info = Info(InfoKindString) + 1
	InfoContentType  Info = Info(InfoKindString) + 18

	InfoResponseCode Info = Info(InfoKindLong) + 2
	InfoNumConnects  Info = Info(InfoKindLong) + 26

	InfoTotalTime     Info = Info(InfoKindDouble) + 3
	InfoSizeUpload    Info = Info(InfoKindDouble) + 7
	InfoSizeDownload  Info = Info(InfoKindDouble) + 8
	InfoSpeedDownload Info = Info(InfoKindDouble) + 9

	InfoActiveSocket Info = Info(InfoKindSocket) + 44
)

// MultiOption identifies a context-wide tuning knob.
type MultiOption int

const (
	MultiPipelining           MultiOption = 3
	MultiMaxConnects          MultiOption = 6
	MultiMaxHostConnections   MultiOption = 7
	MultiMaxPipelineLength    MultiOption = 8
	MultiMaxTotalConnections  MultiOption = 13
	MultiMaxConcurrentStreams MultiOption = 16
)
