package domain

// CameraStyle, MotionLevel, Lighting, Quality and Resolution are closed
// enumerations accepted from callers.
type (
	CameraStyle string
	MotionLevel string
	Lighting    string
	Quality     string
	Resolution  string
)

const (
	CameraStatic   CameraStyle = "static"
	CameraPan      CameraStyle = "pan"
	CameraTilt     CameraStyle = "tilt"
	CameraDolly    CameraStyle = "dolly"
	CameraTracking CameraStyle = "tracking"
	CameraAerial   CameraStyle = "aerial"
	CameraHandheld CameraStyle = "handheld"
	CameraOrbit    CameraStyle = "orbit"

	MotionLow    MotionLevel = "low"
	MotionMedium MotionLevel = "medium"
	MotionHigh   MotionLevel = "high"

	LightingNatural    Lighting = "natural"
	LightingStudio     Lighting = "studio"
	LightingGoldenHour Lighting = "golden_hour"
	LightingDramatic   Lighting = "dramatic"
	LightingNeon       Lighting = "neon"
	LightingSoft       Lighting = "soft"

	QualityFast     Quality = "fast"
	QualityStandard Quality = "standard"

	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
)

var (
	CameraStyles = []CameraStyle{CameraStatic, CameraPan, CameraTilt, CameraDolly, CameraTracking, CameraAerial, CameraHandheld, CameraOrbit}
	MotionLevels = []MotionLevel{MotionLow, MotionMedium, MotionHigh}
	Lightings    = []Lighting{LightingNatural, LightingStudio, LightingGoldenHour, LightingDramatic, LightingNeon, LightingSoft}
	Qualities    = []Quality{QualityFast, QualityStandard}
	Resolutions  = []Resolution{Resolution720p, Resolution1080p}
)

// MediaInput references source media either inline or by storage locator.
type MediaInput struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	GCSURI             string `json:"gcsUri,omitempty"`
	MIMEType           string `json:"mimeType,omitempty"`
}

// Empty reports whether neither inline bytes nor a locator were supplied.
func (m *MediaInput) Empty() bool {
	return m == nil || (m.BytesBase64Encoded == "" && m.GCSURI == "")
}

// GenerationRequest is the validated, strongly typed job request. Optional
// provider parameters are pointers so that "not supplied" is distinguishable
// from the zero value.
type GenerationRequest struct {
	Mode            Mode
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	FPS             int
	CameraStyle     CameraStyle
	MotionLevel     MotionLevel
	Lighting        Lighting
	Quality         Quality
	Image           *MediaInput
	Video           *MediaInput

	SampleCount    *int
	Seed           *int64
	NegativePrompt *string
	GenerateAudio  *bool
	Resolution     *Resolution
}

// Contains reports whether v is a member of set.
func Contains[T comparable](set []T, v T) bool {
	for _, item := range set {
		if item == v {
			return true
		}
	}
	return false
}

// ValidEnum reports whether v is empty or a member of set.
func ValidEnum[T ~string](set []T, v T) bool {
	return v == "" || Contains(set, v)
}
