package video

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/providers/vertex"
)

// GenerateRequest is a fully built provider call: the prompt already carries
// its directives and Parameters holds only fields cleared for forwarding.
type GenerateRequest struct {
	JobID      string
	Prompt     string
	Quality    domain.Quality
	Image      *domain.MediaInput
	Video      *domain.MediaInput
	Parameters map[string]any
}

// Artifact is the generated output. Either Data holds inline bytes that still
// need uploading, or Locator references an object the provider already wrote.
type Artifact struct {
	Data     []byte
	Locator  string
	MIMEType string
}

type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Artifact, error)
}

// Predictor is the subset of the Vertex client used by VEO.
type Predictor interface {
	Predict(ctx context.Context, model string, instances []map[string]any, params map[string]any) ([]vertex.Prediction, error)
}

// VEO generates videos with the Veo publisher models on Vertex AI.
type VEO struct {
	predictor     Predictor
	model         string
	fastModel     string
	outputGCSBase string
}

// NewVEO builds a generator. When outputGCS is set the provider writes
// samples under outputGCS/<jobID>/ instead of returning inline bytes.
func NewVEO(predictor Predictor, model, fastModel, outputGCS string) *VEO {
	if fastModel == "" {
		fastModel = model
	}
	return &VEO{
		predictor:     predictor,
		model:         model,
		fastModel:     fastModel,
		outputGCSBase: strings.TrimRight(outputGCS, "/"),
	}
}

// Model returns the model identifier used for quality q.
func (v *VEO) Model(q domain.Quality) string {
	if q == domain.QualityFast {
		return v.fastModel
	}
	return v.model
}

func (v *VEO) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	instance := map[string]any{"prompt": req.Prompt}
	if !req.Image.Empty() {
		instance["image"] = mediaPayload(req.Image)
	}
	if !req.Video.Empty() {
		instance["video"] = mediaPayload(req.Video)
	}

	params := make(map[string]any, len(req.Parameters)+1)
	for k, val := range req.Parameters {
		params[k] = val
	}
	if v.outputGCSBase != "" && req.JobID != "" {
		params["storageUri"] = v.outputGCSBase + "/" + req.JobID + "/"
	}

	predictions, err := v.predictor.Predict(ctx, v.Model(req.Quality), []map[string]any{instance}, params)
	if err != nil {
		return nil, err
	}
	return artifactFromPredictions(predictions)
}

func mediaPayload(m *domain.MediaInput) map[string]any {
	out := map[string]any{}
	if m.BytesBase64Encoded != "" {
		out["bytesBase64Encoded"] = m.BytesBase64Encoded
	} else {
		out["gcsUri"] = m.GCSURI
	}
	if m.MIMEType != "" {
		out["mimeType"] = m.MIMEType
	}
	return out
}

// artifactFromPredictions takes the first sample; any shape other than inline
// bytes or a storage locator is rejected.
func artifactFromPredictions(predictions []vertex.Prediction) (*Artifact, error) {
	if len(predictions) == 0 {
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "veo: no predictions")
	}
	p := predictions[0]
	mime := p.MIMEType
	if mime == "" {
		mime = "video/mp4"
	}
	switch {
	case p.BytesBase64Encoded != "":
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "veo: decode inline video"), domain.ErrUnexpectedOutput)
		}
		if len(data) == 0 {
			return nil, errors.Wrap(domain.ErrUnexpectedOutput, "veo: empty inline video")
		}
		return &Artifact{Data: data, MIMEType: mime}, nil
	case p.GCSURI != "":
		return &Artifact{Locator: p.GCSURI, MIMEType: mime}, nil
	default:
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "veo: prediction has neither bytes nor locator")
	}
}

var _ Generator = (*VEO)(nil)
