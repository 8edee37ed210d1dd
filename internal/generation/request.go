package generation

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/providers/video"
)

const (
	maxSampleCount       = 4
	maxNegativePromptLen = 1000
)

// RequestBody is the JSON payload accepted by the job creation endpoints.
type RequestBody struct {
	Prompt          string             `json:"prompt"`
	DurationSeconds *int               `json:"durationSeconds,omitempty"`
	AspectRatio     string             `json:"aspectRatio,omitempty"`
	FPS             *int               `json:"fps,omitempty"`
	CameraStyle     string             `json:"cameraStyle,omitempty"`
	MotionLevel     string             `json:"motionLevel,omitempty"`
	Lighting        string             `json:"lighting,omitempty"`
	Quality         string             `json:"quality,omitempty"`
	SampleCount     *int               `json:"sampleCount,omitempty"`
	Seed            *int64             `json:"seed,omitempty"`
	NegativePrompt  *string            `json:"negativePrompt,omitempty"`
	GenerateAudio   *bool              `json:"generateAudio,omitempty"`
	Resolution      *string            `json:"resolution,omitempty"`
	Image           *domain.MediaInput `json:"image,omitempty"`
	Video           *domain.MediaInput `json:"video,omitempty"`
}

// Forwarding lists the optional provider parameters the deployment has
// cleared for forwarding.
type Forwarding struct {
	SampleCount    bool `json:"sampleCount"`
	Seed           bool `json:"seed"`
	NegativePrompt bool `json:"negativePrompt"`
	GenerateAudio  bool `json:"generateAudio"`
	Resolution     bool `json:"resolution"`
}

// Policy holds the request limits of a deployment.
type Policy struct {
	AllowedDurations    []int      `json:"allowedDurations"`
	AllowedAspectRatios []string   `json:"allowedAspectRatios"`
	AllowedFPS          []int      `json:"allowedFps"`
	DefaultDuration     int        `json:"defaultDuration"`
	MaxPromptLength     int        `json:"maxPromptLength"`
	Forward             Forwarding `json:"forwarding"`
}

// PolicyFromConfig extracts the request policy from cfg.
func PolicyFromConfig(cfg *infra.Config) Policy {
	return Policy{
		AllowedDurations:    cfg.AllowedDurations,
		AllowedAspectRatios: cfg.AllowedAspectRatios,
		AllowedFPS:          cfg.AllowedFPS,
		DefaultDuration:     cfg.DefaultDuration,
		MaxPromptLength:     cfg.MaxPromptLength,
		Forward: Forwarding{
			SampleCount:    cfg.ForwardSampleCount,
			Seed:           cfg.ForwardSeed,
			NegativePrompt: cfg.ForwardNegativePrompt,
			GenerateAudio:  cfg.ForwardGenerateAudio,
			Resolution:     cfg.ForwardResolution,
		},
	}
}

// Validate turns body into a typed request for mode or returns an error
// marked domain.ErrValidation.
func (p Policy) Validate(mode domain.Mode, body RequestBody) (domain.GenerationRequest, error) {
	req := domain.GenerationRequest{Mode: mode}

	prompt := strings.TrimSpace(body.Prompt)
	if prompt == "" {
		return req, domain.Validationf("prompt is required")
	}
	if p.MaxPromptLength > 0 && utf8.RuneCountInString(prompt) > p.MaxPromptLength {
		return req, domain.Validationf("prompt must be at most %d characters", p.MaxPromptLength)
	}
	req.Prompt = prompt

	duration := p.DefaultDuration
	if body.DurationSeconds != nil {
		if *body.DurationSeconds <= 0 {
			return req, domain.Validationf("durationSeconds must be positive")
		}
		duration = *body.DurationSeconds
	}
	req.DurationSeconds = NormalizeDuration(p.AllowedDurations, duration)

	req.AspectRatio = strings.TrimSpace(body.AspectRatio)
	if req.AspectRatio == "" {
		if len(p.AllowedAspectRatios) > 0 {
			req.AspectRatio = p.AllowedAspectRatios[0]
		}
	} else if !domain.Contains(p.AllowedAspectRatios, req.AspectRatio) {
		return req, domain.Validationf("aspectRatio must be one of %s", strings.Join(p.AllowedAspectRatios, ", "))
	}

	if body.FPS == nil {
		if len(p.AllowedFPS) > 0 {
			req.FPS = p.AllowedFPS[0]
		}
	} else if !domain.Contains(p.AllowedFPS, *body.FPS) {
		return req, domain.Validationf("fps %d is not allowed", *body.FPS)
	} else {
		req.FPS = *body.FPS
	}

	req.CameraStyle = domain.CameraStyle(strings.ToLower(strings.TrimSpace(body.CameraStyle)))
	if !domain.ValidEnum(domain.CameraStyles, req.CameraStyle) {
		return req, domain.Validationf("cameraStyle %q is not supported", body.CameraStyle)
	}
	req.MotionLevel = domain.MotionLevel(strings.ToLower(strings.TrimSpace(body.MotionLevel)))
	if !domain.ValidEnum(domain.MotionLevels, req.MotionLevel) {
		return req, domain.Validationf("motionLevel %q is not supported", body.MotionLevel)
	}
	req.Lighting = domain.Lighting(strings.ToLower(strings.TrimSpace(body.Lighting)))
	if !domain.ValidEnum(domain.Lightings, req.Lighting) {
		return req, domain.Validationf("lighting %q is not supported", body.Lighting)
	}
	req.Quality = domain.Quality(strings.ToLower(strings.TrimSpace(body.Quality)))
	if !domain.ValidEnum(domain.Qualities, req.Quality) {
		return req, domain.Validationf("quality %q is not supported", body.Quality)
	}
	if req.Quality == "" {
		req.Quality = domain.QualityStandard
	}

	if body.SampleCount != nil {
		if *body.SampleCount < 1 || *body.SampleCount > maxSampleCount {
			return req, domain.Validationf("sampleCount must be between 1 and %d", maxSampleCount)
		}
		req.SampleCount = body.SampleCount
	}
	if body.Seed != nil {
		if *body.Seed < 0 || *body.Seed > 1<<32-1 {
			return req, domain.Validationf("seed must be an unsigned 32-bit integer")
		}
		req.Seed = body.Seed
	}
	if body.NegativePrompt != nil {
		neg := strings.TrimSpace(*body.NegativePrompt)
		if utf8.RuneCountInString(neg) > maxNegativePromptLen {
			return req, domain.Validationf("negativePrompt must be at most %d characters", maxNegativePromptLen)
		}
		if neg != "" {
			req.NegativePrompt = &neg
		}
	}
	req.GenerateAudio = body.GenerateAudio
	if body.Resolution != nil {
		res := domain.Resolution(strings.ToLower(strings.TrimSpace(*body.Resolution)))
		if res == "" || !domain.ValidEnum(domain.Resolutions, res) {
			return req, domain.Validationf("resolution %q is not supported", *body.Resolution)
		}
		req.Resolution = &res
	}

	switch mode {
	case domain.ModeImage:
		img, err := validateMedia("image", body.Image, "image/png", "image/jpeg")
		if err != nil {
			return req, err
		}
		req.Image = img
	case domain.ModeVideo:
		vid, err := validateMedia("video", body.Video, "video/mp4")
		if err != nil {
			return req, err
		}
		req.Video = vid
	}

	return req, nil
}

func validateMedia(field string, in *domain.MediaInput, mimeTypes ...string) (*domain.MediaInput, error) {
	if in.Empty() {
		return nil, domain.Validationf("%s is required", field)
	}
	out := &domain.MediaInput{
		BytesBase64Encoded: strings.TrimSpace(in.BytesBase64Encoded),
		GCSURI:             strings.TrimSpace(in.GCSURI),
		MIMEType:           strings.ToLower(strings.TrimSpace(in.MIMEType)),
	}
	if out.BytesBase64Encoded != "" && out.GCSURI != "" {
		return nil, domain.Validationf("%s must carry either bytesBase64Encoded or gcsUri, not both", field)
	}
	if out.BytesBase64Encoded != "" {
		if _, err := base64.StdEncoding.DecodeString(out.BytesBase64Encoded); err != nil {
			return nil, domain.Validationf("%s.bytesBase64Encoded is not valid base64", field)
		}
	}
	if out.GCSURI != "" && !strings.HasPrefix(out.GCSURI, "gs://") {
		return nil, domain.Validationf("%s.gcsUri must start with gs://", field)
	}
	if out.MIMEType == "" {
		out.MIMEType = mimeTypes[0]
	} else if !domain.Contains(mimeTypes, out.MIMEType) {
		return nil, domain.Validationf("%s.mimeType must be one of %s", field, strings.Join(mimeTypes, ", "))
	}
	return out, nil
}

// NormalizeDuration maps requested onto the nearest allowed value. On a tie
// the shorter duration wins. allowed must be sorted ascending.
func NormalizeDuration(allowed []int, requested int) int {
	if len(allowed) == 0 {
		return requested
	}
	best := allowed[0]
	for _, candidate := range allowed[1:] {
		if absInt(candidate-requested) < absInt(best-requested) {
			best = candidate
		}
	}
	return best
}

// BuildPrompt appends the camera, motion and lighting directives to the
// caller's prompt, each as its own sentence and in that order.
func BuildPrompt(req domain.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(sentence(req.Prompt))
	appendDirective(&b, "Camera style", string(req.CameraStyle))
	appendDirective(&b, "Motion level", string(req.MotionLevel))
	appendDirective(&b, "Lighting", string(req.Lighting))
	return b.String()
}

func appendDirective(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(cases.Title(language.Und).String(strings.ReplaceAll(value, "_", " ")))
	b.WriteString(".")
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

// Parameters returns the provider parameters for req. Optional fields are
// included only when the caller supplied them and forwarding is enabled.
func (p Policy) Parameters(req domain.GenerationRequest) map[string]any {
	params := map[string]any{
		"durationSeconds": req.DurationSeconds,
	}
	if req.AspectRatio != "" {
		params["aspectRatio"] = req.AspectRatio
	}
	if p.Forward.SampleCount && req.SampleCount != nil {
		params["sampleCount"] = *req.SampleCount
	}
	if p.Forward.Seed && req.Seed != nil {
		params["seed"] = *req.Seed
	}
	if p.Forward.NegativePrompt && req.NegativePrompt != nil {
		params["negativePrompt"] = *req.NegativePrompt
	}
	if p.Forward.GenerateAudio && req.GenerateAudio != nil {
		params["generateAudio"] = *req.GenerateAudio
	}
	if p.Forward.Resolution && req.Resolution != nil {
		params["resolution"] = string(*req.Resolution)
	}
	return params
}

// ProviderRequest assembles the provider call for job jobID.
func (p Policy) ProviderRequest(jobID string, req domain.GenerationRequest) video.GenerateRequest {
	return video.GenerateRequest{
		JobID:      jobID,
		Prompt:     BuildPrompt(req),
		Quality:    req.Quality,
		Image:      req.Image,
		Video:      req.Video,
		Parameters: p.Parameters(req),
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
