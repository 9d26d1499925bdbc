package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ovaphlow/pictoria/service-api/internal/action"
)

// ModelKind names one of the supported generation pipelines.
type ModelKind string

const (
	ModelFluxSchnell ModelKind = "flux-schnell"
	ModelFluxDev     ModelKind = "flux-dev"
	ModelHanziSeed   ModelKind = "hanzi-seed"
)

// hosted model identifiers on the inference API
const (
	fluxSchnellModel = "black-forest-labs/flux-schnell"
	fluxDevModel     = "black-forest-labs/flux-dev"
)

var aspectRatios = map[string]bool{
	"1:1": true, "16:9": true, "21:9": true, "3:2": true, "2:3": true, "4:5": true,
	"5:4": true, "3:4": true, "4:3": true, "9:16": true, "9:21": true,
}

var outputFormats = map[string]bool{"webp": true, "jpg": true, "png": true}

const (
	defaultAspectRatio    = "1:1"
	defaultOutputFormat   = "webp"
	defaultOutputQuality  = 80
	defaultSchnellSteps   = 4
	defaultDevSteps       = 28
	defaultGuidance       = 3.5
	defaultPromptStrength = 0.8
	maxOutputs            = 4
)

// Params is implemented by the parameter struct of every ModelKind.
type Params interface {
	Kind() ModelKind
	Validate() *action.ValidationError
}

// FluxSchnellParams drives the fast text-to-image model.
type FluxSchnellParams struct {
	Prompt            string `json:"prompt"`
	AspectRatio       string `json:"aspect_ratio,omitempty"`
	NumOutputs        int    `json:"num_outputs,omitempty"`
	NumInferenceSteps int    `json:"num_inference_steps,omitempty"`
	OutputFormat      string `json:"output_format,omitempty"`
	OutputQuality     *int   `json:"output_quality,omitempty"`
}

func (FluxSchnellParams) Kind() ModelKind { return ModelFluxSchnell }

func (p *FluxSchnellParams) applyDefaults() {
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.AspectRatio = orDefault(p.AspectRatio, defaultAspectRatio)
	p.OutputFormat = orDefault(p.OutputFormat, defaultOutputFormat)
	if p.NumOutputs == 0 {
		p.NumOutputs = 1
	}
	if p.NumInferenceSteps == 0 {
		p.NumInferenceSteps = defaultSchnellSteps
	}
	if p.OutputQuality == nil {
		q := defaultOutputQuality
		p.OutputQuality = &q
	}
}

func (p FluxSchnellParams) Validate() *action.ValidationError {
	v := &action.ValidationError{}
	checkPrompt(v, p.Prompt)
	checkCommon(v, p.AspectRatio, p.NumOutputs, p.OutputFormat, p.OutputQuality)
	checkRange(v, "params.num_inference_steps", p.NumInferenceSteps, 1, 4)
	return v
}

func (p FluxSchnellParams) input() map[string]any {
	return map[string]any{
		"prompt":              p.Prompt,
		"aspect_ratio":        p.AspectRatio,
		"num_outputs":         p.NumOutputs,
		"num_inference_steps": p.NumInferenceSteps,
		"output_format":       p.OutputFormat,
		"output_quality":      *p.OutputQuality,
	}
}

// FluxDevParams drives the guided model, optionally image-to-image.
type FluxDevParams struct {
	Prompt            string   `json:"prompt"`
	AspectRatio       string   `json:"aspect_ratio,omitempty"`
	NumOutputs        int      `json:"num_outputs,omitempty"`
	NumInferenceSteps int      `json:"num_inference_steps,omitempty"`
	Guidance          *float64 `json:"guidance,omitempty"`
	PromptStrength    *float64 `json:"prompt_strength,omitempty"`
	OutputFormat      string   `json:"output_format,omitempty"`
	OutputQuality     *int     `json:"output_quality,omitempty"`
	ImageURL          string   `json:"image_url,omitempty"`
}

func (FluxDevParams) Kind() ModelKind { return ModelFluxDev }

func (p *FluxDevParams) applyDefaults() {
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.AspectRatio = orDefault(p.AspectRatio, defaultAspectRatio)
	p.OutputFormat = orDefault(p.OutputFormat, defaultOutputFormat)
	if p.NumOutputs == 0 {
		p.NumOutputs = 1
	}
	if p.NumInferenceSteps == 0 {
		p.NumInferenceSteps = defaultDevSteps
	}
	if p.Guidance == nil {
		g := defaultGuidance
		p.Guidance = &g
	}
	if p.PromptStrength == nil {
		s := defaultPromptStrength
		p.PromptStrength = &s
	}
	if p.OutputQuality == nil {
		q := defaultOutputQuality
		p.OutputQuality = &q
	}
}

func (p FluxDevParams) Validate() *action.ValidationError {
	v := &action.ValidationError{}
	checkPrompt(v, p.Prompt)
	checkCommon(v, p.AspectRatio, p.NumOutputs, p.OutputFormat, p.OutputQuality)
	checkRange(v, "params.num_inference_steps", p.NumInferenceSteps, 1, 50)
	if p.Guidance != nil && (*p.Guidance < 0 || *p.Guidance > 10) {
		v.Add("params.guidance", "must be between 0 and 10")
	}
	if p.PromptStrength != nil && (*p.PromptStrength < 0 || *p.PromptStrength > 1) {
		v.Add("params.prompt_strength", "must be between 0 and 1")
	}
	if p.ImageURL != "" && !strings.HasPrefix(p.ImageURL, "http://") && !strings.HasPrefix(p.ImageURL, "https://") {
		v.Add("params.image_url", "must be an http(s) URL")
	}
	return v
}

func (p FluxDevParams) input() map[string]any {
	in := map[string]any{
		"prompt":              p.Prompt,
		"aspect_ratio":        p.AspectRatio,
		"num_outputs":         p.NumOutputs,
		"num_inference_steps": p.NumInferenceSteps,
		"guidance":            *p.Guidance,
		"output_format":       p.OutputFormat,
		"output_quality":      *p.OutputQuality,
	}
	if p.ImageURL != "" {
		in["image"] = p.ImageURL
		in["prompt_strength"] = *p.PromptStrength
	}
	return in
}

// HanziSeedParams renders a character card and uses it as the init image of
// an image-to-image run.
type HanziSeedParams struct {
	Character      string   `json:"character"`
	Pronunciations []string `json:"pronunciations,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	PromptStrength *float64 `json:"prompt_strength,omitempty"`
	NumOutputs     int      `json:"num_outputs,omitempty"`
	OutputFormat   string   `json:"output_format,omitempty"`
}

func (HanziSeedParams) Kind() ModelKind { return ModelHanziSeed }

func (p *HanziSeedParams) applyDefaults() {
	p.Character = strings.TrimSpace(p.Character)
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Prompt == "" && p.Character != "" {
		p.Prompt = fmt.Sprintf("an illustration built around the Chinese character %s", p.Character)
	}
	p.OutputFormat = orDefault(p.OutputFormat, defaultOutputFormat)
	if p.NumOutputs == 0 {
		p.NumOutputs = 1
	}
	if p.PromptStrength == nil {
		s := defaultPromptStrength
		p.PromptStrength = &s
	}
}

func (p HanziSeedParams) Validate() *action.ValidationError {
	v := &action.ValidationError{}
	if p.Character == "" {
		v.Add("params.character", "is required")
	}
	checkPrompt(v, p.Prompt)
	checkRange(v, "params.num_outputs", p.NumOutputs, 1, maxOutputs)
	if !outputFormats[p.OutputFormat] {
		v.Add("params.output_format", "must be one of webp, jpg, png")
	}
	if p.PromptStrength != nil && (*p.PromptStrength < 0 || *p.PromptStrength > 1) {
		v.Add("params.prompt_strength", "must be between 0 and 1")
	}
	return v
}

// devParams is the flux-dev run seeded with the uploaded card.
func (p HanziSeedParams) devParams(seedURL string) FluxDevParams {
	d := FluxDevParams{
		Prompt:         p.Prompt,
		NumOutputs:     p.NumOutputs,
		PromptStrength: p.PromptStrength,
		OutputFormat:   p.OutputFormat,
		ImageURL:       seedURL,
	}
	d.applyDefaults()
	return d
}

// Request is the body of POST /api/images/generate. Decoding dispatches on
// model so every kind gets its own typed params.
type Request struct {
	Model  ModelKind `json:"model"`
	Params Params    `json:"params"`
}

func (r *Request) UnmarshalJSON(b []byte) error {
	var raw struct {
		Model  ModelKind       `json:"model"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.Params) == 0 {
		raw.Params = json.RawMessage("{}")
	}
	switch raw.Model {
	case ModelFluxSchnell:
		var p FluxSchnellParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return err
		}
		p.applyDefaults()
		r.Params = p
	case ModelFluxDev:
		var p FluxDevParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return err
		}
		p.applyDefaults()
		r.Params = p
	case ModelHanziSeed:
		var p HanziSeedParams
		if err := json.Unmarshal(raw.Params, &p); err != nil {
			return err
		}
		p.applyDefaults()
		r.Params = p
	default:
		return action.Validation("model", "unknown model %q", raw.Model)
	}
	r.Model = raw.Model
	return nil
}

func checkPrompt(v *action.ValidationError, prompt string) {
	if prompt == "" {
		v.Add("params.prompt", "is required")
	}
}

func checkCommon(v *action.ValidationError, aspect string, outputs int, format string, quality *int) {
	if !aspectRatios[aspect] {
		v.Add("params.aspect_ratio", "unsupported aspect ratio %q", aspect)
	}
	checkRange(v, "params.num_outputs", outputs, 1, maxOutputs)
	if !outputFormats[format] {
		v.Add("params.output_format", "must be one of webp, jpg, png")
	}
	if quality != nil {
		checkRange(v, "params.output_quality", *quality, 0, 100)
	}
}

func checkRange(v *action.ValidationError, field string, n, lo, hi int) {
	if n < lo || n > hi {
		v.Add(field, "must be between %d and %d, got %d", lo, hi, n)
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}
