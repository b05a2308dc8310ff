package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/grasp.report/internal/fsutil"
	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/l2clean"
	"github.com/banshee-data/grasp.report/internal/grasp/l3segment"
	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// TuningConfig represents the root configuration for the grasp pipeline.
// Every field is optional; the Get* accessors fall back to the defaults.
type TuningConfig struct {
	// Segmentation params
	Window   *int     `json:"window,omitempty" yaml:"window,omitempty"`
	StartStd *float64 `json:"start_std,omitempty" yaml:"start_std,omitempty"`
	StopStd  *float64 `json:"stop_std,omitempty" yaml:"stop_std,omitempty"`
	LeadIn   *int     `json:"lead_in,omitempty" yaml:"lead_in,omitempty"`
	LeadOut  *int     `json:"lead_out,omitempty" yaml:"lead_out,omitempty"`

	// Cleaning params
	ProbabilityThreshold *float64 `json:"probability_threshold,omitempty" yaml:"probability_threshold,omitempty"`
	DistanceThreshold    *float64 `json:"distance_threshold,omitempty" yaml:"distance_threshold,omitempty"`

	// Joint names as they appear in the CSV header
	ReferenceJoint *string `json:"reference_joint,omitempty" yaml:"reference_joint,omitempty"`
	WristJoint     *string `json:"wrist_joint,omitempty" yaml:"wrist_joint,omitempty"`
	ThumbJoint     *string `json:"thumb_joint,omitempty" yaml:"thumb_joint,omitempty"`
	IndexJoint     *string `json:"index_joint,omitempty" yaml:"index_joint,omitempty"`
	MiddleJoint    *string `json:"middle_joint,omitempty" yaml:"middle_joint,omitempty"`

	// Summary params
	CompletionCheckpoints []float64 `json:"completion_checkpoints,omitempty" yaml:"completion_checkpoints,omitempty"`
	Features              []string  `json:"features,omitempty" yaml:"features,omitempty"`

	// Batch params
	Workers *int `json:"workers,omitempty" yaml:"workers,omitempty"` // 0 = GOMAXPROCS
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a config with every field set to its
// default, matching DefaultConfigPath.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	features := make([]string, len(l4kinematics.AllFeatures))
	for i, f := range l4kinematics.AllFeatures {
		features[i] = string(f)
	}
	return &TuningConfig{
		Window:                ptrInt(c.GetWindow()),
		StartStd:              ptrFloat64(c.GetStartStd()),
		StopStd:               ptrFloat64(c.GetStopStd()),
		LeadIn:                ptrInt(c.GetLeadIn()),
		LeadOut:               ptrInt(c.GetLeadOut()),
		ProbabilityThreshold:  ptrFloat64(c.GetProbabilityThreshold()),
		DistanceThreshold:     ptrFloat64(c.GetDistanceThreshold()),
		ReferenceJoint:        ptrString(c.GetReferenceJoint()),
		WristJoint:            ptrString(c.GetWristJoint()),
		ThumbJoint:            ptrString(c.GetThumbJoint()),
		IndexJoint:            ptrString(c.GetIndexJoint()),
		MiddleJoint:           ptrString(c.GetMiddleJoint()),
		CompletionCheckpoints: c.GetCompletionCheckpoints(),
		Features:              features,
		Workers:               ptrInt(c.GetWorkers()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file on disk.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	return LoadTuningConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadTuningConfigFS loads a TuningConfig through fsys.
// The file must have a .json, .yaml or .yml extension and be under the max
// file size. Fields omitted from the file retain their default values, so
// partial configs are safe.
func LoadTuningConfigFS(fsys fsutil.FileSystem, path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	// Check file size for safety
	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/grasp/pipeline/
		"../../../../" + DefaultConfigPath, // from internal/grasp/storage/sqlite/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// JSON returns the config as it would be written to a config file.
func (c *TuningConfig) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return string(data), nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Window != nil && *c.Window < 2 {
		return fmt.Errorf("window must be at least 2, got %d", *c.Window)
	}
	if c.ProbabilityThreshold != nil {
		if *c.ProbabilityThreshold < 0 || *c.ProbabilityThreshold > 1 {
			return fmt.Errorf("probability_threshold must be between 0 and 1, got %f", *c.ProbabilityThreshold)
		}
	}
	if c.DistanceThreshold != nil && *c.DistanceThreshold <= 0 {
		return fmt.Errorf("distance_threshold must be positive, got %f", *c.DistanceThreshold)
	}
	if c.StartStd != nil && *c.StartStd < 0 {
		return fmt.Errorf("start_std must be non-negative, got %f", *c.StartStd)
	}
	if c.StopStd != nil && *c.StopStd < 0 {
		return fmt.Errorf("stop_std must be non-negative, got %f", *c.StopStd)
	}
	if c.LeadIn != nil && *c.LeadIn < 0 {
		return fmt.Errorf("lead_in must be non-negative, got %d", *c.LeadIn)
	}
	if c.LeadOut != nil && *c.LeadOut < 0 {
		return fmt.Errorf("lead_out must be non-negative, got %d", *c.LeadOut)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	for name, j := range map[string]*string{
		"reference_joint": c.ReferenceJoint,
		"wrist_joint":     c.WristJoint,
		"thumb_joint":     c.ThumbJoint,
		"index_joint":     c.IndexJoint,
		"middle_joint":    c.MiddleJoint,
	} {
		if j != nil && *j == "" {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	if c.CompletionCheckpoints != nil {
		if err := l5summary.ValidateCheckpoints(c.CompletionCheckpoints); err != nil {
			return fmt.Errorf("completion_checkpoints: %w", err)
		}
	}
	if _, err := c.GetFeatures(); err != nil {
		return fmt.Errorf("features: %w", err)
	}
	return nil
}

// GetWindow returns the window value or the default.
func (c *TuningConfig) GetWindow() int {
	if c.Window == nil {
		return 10
	}
	return *c.Window
}

// GetStartStd returns the start_std value or the default.
func (c *TuningConfig) GetStartStd() float64 {
	if c.StartStd == nil {
		return 2.0
	}
	return *c.StartStd
}

// GetStopStd returns the stop_std value or the default.
func (c *TuningConfig) GetStopStd() float64 {
	if c.StopStd == nil {
		return 1.5
	}
	return *c.StopStd
}

// GetLeadIn returns the lead_in value or the default.
func (c *TuningConfig) GetLeadIn() int {
	if c.LeadIn == nil {
		return 0
	}
	return *c.LeadIn
}

// GetLeadOut returns the lead_out value or the default.
func (c *TuningConfig) GetLeadOut() int {
	if c.LeadOut == nil {
		return 0
	}
	return *c.LeadOut
}

// GetProbabilityThreshold returns the probability_threshold value or the default.
func (c *TuningConfig) GetProbabilityThreshold() float64 {
	if c.ProbabilityThreshold == nil {
		return 0.6
	}
	return *c.ProbabilityThreshold
}

// GetDistanceThreshold returns the distance_threshold value or the default.
func (c *TuningConfig) GetDistanceThreshold() float64 {
	if c.DistanceThreshold == nil {
		return 10
	}
	return *c.DistanceThreshold
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

// GetReferenceJoint returns the joint the segmenter tracks.
func (c *TuningConfig) GetReferenceJoint() string {
	return stringOr(c.ReferenceJoint, l1frames.RightWrist)
}

// GetWristJoint returns the joint the wrist features are derived from.
func (c *TuningConfig) GetWristJoint() string {
	return stringOr(c.WristJoint, l1frames.RightWrist)
}

// GetThumbJoint returns the thumb fingertip joint.
func (c *TuningConfig) GetThumbJoint() string {
	return stringOr(c.ThumbJoint, l1frames.RightThumbTip)
}

// GetIndexJoint returns the index fingertip joint.
func (c *TuningConfig) GetIndexJoint() string {
	return stringOr(c.IndexJoint, l1frames.RightIndexTip)
}

// GetMiddleJoint returns the middle fingertip joint.
func (c *TuningConfig) GetMiddleJoint() string {
	return stringOr(c.MiddleJoint, l1frames.RightMiddleTip)
}

// GetCompletionCheckpoints returns a copy of the checkpoints or the defaults.
func (c *TuningConfig) GetCompletionCheckpoints() []float64 {
	if c.CompletionCheckpoints == nil {
		return append([]float64(nil), l5summary.DefaultCheckpoints...)
	}
	return append([]float64(nil), c.CompletionCheckpoints...)
}

// GetFeatures returns the configured features in canonical order, or all
// features when none are configured.
func (c *TuningConfig) GetFeatures() ([]l4kinematics.Feature, error) {
	if len(c.Features) == 0 {
		return append([]l4kinematics.Feature(nil), l4kinematics.AllFeatures...), nil
	}
	fs := make([]l4kinematics.Feature, 0, len(c.Features))
	for _, name := range c.Features {
		f, err := l4kinematics.ParseFeature(name)
		if err != nil {
			return nil, err
		}
		fs = append(fs, f)
	}
	return l4kinematics.Canonical(fs)
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// Joints returns every joint the pipeline reads, without duplicates.
func (c *TuningConfig) Joints() []string {
	var out []string
	seen := map[string]bool{}
	for _, j := range []string{c.GetReferenceJoint(), c.GetWristJoint(), c.GetThumbJoint(), c.GetIndexJoint(), c.GetMiddleJoint()} {
		if !seen[j] {
			seen[j] = true
			out = append(out, j)
		}
	}
	return out
}

// CleanParams returns the keypoint cleaner thresholds.
func (c *TuningConfig) CleanParams() l2clean.Params {
	return l2clean.Params{
		ProbThreshold: c.GetProbabilityThreshold(),
		DistThreshold: c.GetDistanceThreshold(),
	}
}

// SegmentParams returns the movement segmenter parameters.
func (c *TuningConfig) SegmentParams() l3segment.Params {
	return l3segment.Params{
		Window:   c.GetWindow(),
		StartStd: c.GetStartStd(),
		StopStd:  c.GetStopStd(),
	}
}

// KinematicParams returns the feature engine parameters.
func (c *TuningConfig) KinematicParams() l4kinematics.Params {
	return l4kinematics.Params{
		Window: c.GetWindow(),
		Clean:  c.CleanParams(),
		Joints: l4kinematics.Joints{
			Wrist:  c.GetWristJoint(),
			Thumb:  c.GetThumbJoint(),
			Index:  c.GetIndexJoint(),
			Middle: c.GetMiddleJoint(),
		},
	}
}
