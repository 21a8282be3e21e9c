package curve

import "fmt"

// ModelKind identifies a member of the Nelson-Siegel model family.
type ModelKind string

const (
	// ModelNS is the classic 3-beta Nelson-Siegel curve (one decay constant).
	ModelNS ModelKind = "ns"
	// ModelNSS is the Svensson extension with a second hump term (two decay constants).
	ModelNSS ModelKind = "nss"
	// ModelNSSC adds a third hump term (three decay constants).
	ModelNSSC ModelKind = "nssc"
)

// AllModelKinds lists the model kinds in simplest-to-most-complex order.
// Model selection walks this order when applying the simplicity preference.
var AllModelKinds = []ModelKind{ModelNS, ModelNSS, ModelNSSC}

// DisplayName returns a human-readable label for terminal output and exports.
func (m ModelKind) DisplayName() string {
	switch m {
	case ModelNS:
		return "NS"
	case ModelNSS:
		return "NSS"
	case ModelNSSC:
		return "NSS+ (3-hump)"
	default:
		return string(m)
	}
}

// BetaLen returns the number of linear beta coefficients for this model.
func (m ModelKind) BetaLen() int {
	switch m {
	case ModelNS:
		return 3
	case ModelNSS:
		return 4
	case ModelNSSC:
		return 5
	default:
		return 0
	}
}

// TauLen returns the number of decay constants for this model.
func (m ModelKind) TauLen() int {
	switch m {
	case ModelNS:
		return 1
	case ModelNSS:
		return 2
	case ModelNSSC:
		return 3
	default:
		return 0
	}
}

// ParamCount returns the total parameter count (betas + taus) used by
// information criteria.
func (m ModelKind) ParamCount() int {
	return m.BetaLen() + m.TauLen()
}

// Valid reports whether m is one of the three supported model kinds.
func (m ModelKind) Valid() bool {
	return m == ModelNS || m == ModelNSS || m == ModelNSSC
}

// ModelSpec selects which model(s) a run should attempt.
type ModelSpec string

const (
	ModelSpecAuto ModelSpec = "auto"
	ModelSpecNS   ModelSpec = "ns"
	ModelSpecNSS  ModelSpec = "nss"
	ModelSpecNSSC ModelSpec = "nssc"
	ModelSpecAll  ModelSpec = "all"
)

// Kinds resolves a ModelSpec into the concrete model kinds to attempt.
func (s ModelSpec) Kinds() []ModelKind {
	switch s {
	case ModelSpecNS:
		return []ModelKind{ModelNS}
	case ModelSpecNSS:
		return []ModelKind{ModelNSS}
	case ModelSpecNSSC:
		return []ModelKind{ModelNSSC}
	default:
		return []ModelKind{ModelNS, ModelNSS, ModelNSSC}
	}
}

// Single reports whether exactly one model is requested (no selection needed).
func (s ModelSpec) Single() bool {
	return s == ModelSpecNS || s == ModelSpecNSS || s == ModelSpecNSSC
}

// FrontEndMode controls how the curve is conditioned as tenor -> 0.
//
// In the Nelson-Siegel family the limiting short-end value is
// y(0) = beta0 + beta1. When the dataset has no very short maturities,
// y(0) is weakly identified and fitted curves can hook unrealistically
// near zero. This knob constrains y(0) as a parameter constraint, never
// as a synthetic observation.
type FrontEndMode string

const (
	// FrontEndOff leaves all betas free.
	FrontEndOff FrontEndMode = "off"
	// FrontEndAuto fixes y(0) to a robust short-end level estimated from the data.
	FrontEndAuto FrontEndMode = "auto"
	// FrontEndZero fixes y(0) = 0.
	FrontEndZero FrontEndMode = "zero"
	// FrontEndFixed fixes y(0) to an explicit caller-supplied value.
	FrontEndFixed FrontEndMode = "fixed"
)

// ShortEndMonotone is the shape guardrail applied as a candidate filter
// during the tau grid search: candidates whose fitted curve violates the
// chosen monotone direction over [0, window] years are rejected.
type ShortEndMonotone string

const (
	MonotoneNone       ShortEndMonotone = "none"
	MonotoneAuto       ShortEndMonotone = "auto"
	MonotoneIncreasing ShortEndMonotone = "increasing"
	MonotoneDecreasing ShortEndMonotone = "decreasing"
)

// RobustKind selects the outlier-robust fitting mode.
type RobustKind string

const (
	// RobustNone is plain weighted least squares.
	RobustNone RobustKind = "none"
	// RobustHuber enables Huber M-estimation via iteratively reweighted
	// least squares.
	RobustHuber RobustKind = "huber"
)

// WeightMode selects how per-observation fit weights are derived.
type WeightMode string

const (
	// WeightUniform gives every observation weight 1.
	WeightUniform WeightMode = "uniform"
	// WeightColumn uses the supplied weight field directly.
	WeightColumn WeightMode = "weight"
	// WeightDV01 uses squared DV01 (sensitivity magnitude).
	WeightDV01 WeightMode = "dv01"
	// WeightDV01Weight uses squared DV01 multiplied by the weight field.
	WeightDV01Weight WeightMode = "dv01-weight"
	// WeightAuto prefers dv01^2 when available, then the weight field, then 1.
	WeightAuto WeightMode = "auto"
)

// Observation is a normalized (tenor, value, weight) point used for fitting.
// Invariants: Tenor > 0, Value finite, Weight finite and >= 0.
type Observation struct {
	ID     string  `json:"id"`
	Tenor  float64 `json:"tenor_years"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`

	// DV01 is an optional sensitivity magnitude used by dv01-based weight modes.
	DV01 float64 `json:"dv01,omitempty"`

	// Optional metadata carried through to reports and exports.
	Issuer string `json:"issuer,omitempty"`
	Rating string `json:"rating,omitempty"`
}

// FitConfig is the immutable configuration for one fit run. It is derived
// from flags/environment once and threaded through every pipeline stage;
// nothing in the core mutates it.
type FitConfig struct {
	ModelSpec ModelSpec `json:"model_spec"`

	TauMin       float64 `json:"tau_min"`
	TauMax       float64 `json:"tau_max"`
	TauStepsNS   int     `json:"tau_steps_ns"`
	TauStepsNSS  int     `json:"tau_steps_nss"`
	TauStepsNSSC int     `json:"tau_steps_nssc"`

	WeightMode WeightMode `json:"weight_mode"`

	FrontEndMode   FrontEndMode `json:"front_end_mode"`
	FrontEndValue  float64      `json:"front_end_value"`  // used when mode=fixed
	FrontEndWindow float64      `json:"front_end_window"` // years, used by mode=auto

	ShortEndMonotone ShortEndMonotone `json:"short_end_monotone"`
	ShortEndWindow   float64          `json:"short_end_window"` // years

	Robust      RobustKind `json:"robust"`
	RobustIters int        `json:"robust_iters"`
	RobustK     float64    `json:"robust_k"`

	// Workers bounds the grid-search worker pool. Zero means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`
}

// DefaultFitConfig returns the configuration used when no overrides are set.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		ModelSpec:        ModelSpecAuto,
		TauMin:           0.05,
		TauMax:           30.0,
		TauStepsNS:       25,
		TauStepsNSS:      15,
		TauStepsNSSC:     9,
		WeightMode:       WeightAuto,
		FrontEndMode:     FrontEndOff,
		FrontEndWindow:   1.0,
		ShortEndMonotone: MonotoneNone,
		ShortEndWindow:   1.0,
		Robust:           RobustNone,
		RobustIters:      3,
		RobustK:          1.5,
	}
}

// Validate checks config invariants that the core relies on.
func (c FitConfig) Validate() error {
	if !(c.TauMin > 0 && c.TauMax > c.TauMin) {
		return fmt.Errorf("invalid tau range: min=%v max=%v (need 0 < min < max)", c.TauMin, c.TauMax)
	}
	if c.TauStepsNS < 2 || c.TauStepsNSS < 2 || c.TauStepsNSSC < 2 {
		return fmt.Errorf("tau steps must be >= 2")
	}
	if c.RobustIters < 0 {
		return fmt.Errorf("robust_iters must be >= 0")
	}
	if c.Robust == RobustHuber && !(c.RobustK > 0) {
		return fmt.Errorf("robust_k must be > 0 for huber mode")
	}
	if c.FrontEndMode == FrontEndAuto && !(c.FrontEndWindow > 0) {
		return fmt.Errorf("front_end_window must be > 0 for auto front-end mode")
	}
	return nil
}

// CurveModel is the portable representation of a fitted curve's parameters.
type CurveModel struct {
	Name        ModelKind `json:"name"`
	DisplayName string    `json:"display_name"`
	Betas       []float64 `json:"betas"`
	Taus        []float64 `json:"taus"`
}

// FitQuality holds fit diagnostics for one model.
type FitQuality struct {
	SSE  float64 `json:"sse"`
	RMSE float64 `json:"rmse"` // sqrt(SSE/n)
	BIC  float64 `json:"bic"`
	N    int     `json:"n"`
}

// FitResult is the pipeline's external output for one fitted model.
type FitResult struct {
	Model   CurveModel `json:"model"`
	Quality FitQuality `json:"quality"`

	// EffectiveParams is the parameter count used for BIC. It is one less
	// than the model's nominal count when a front-end constraint was active.
	EffectiveParams int `json:"effective_params"`

	// FrontEndMode and MonotoneApplied record the constraints as actually
	// applied. MonotoneApplied is false when the guardrail fallback fired.
	FrontEndMode    FrontEndMode     `json:"front_end_mode"`
	MonotoneMode    ShortEndMonotone `json:"monotone_mode"`
	MonotoneApplied bool             `json:"monotone_applied"`

	// RobustIters is the number of IRLS reweight passes actually run.
	RobustIters int `json:"robust_iters"`
}

// Residual pairs an observation with its fitted value.
type Residual struct {
	Point    Observation `json:"point"`
	Fitted   float64     `json:"fitted"`
	Residual float64     `json:"residual"`
}

// DatasetStats summarizes the observations actually used for fitting.
type DatasetStats struct {
	N        int     `json:"n"`
	TenorMin float64 `json:"tenor_min"`
	TenorMax float64 `json:"tenor_max"`
	ValueMin float64 `json:"value_min"`
	ValueMax float64 `json:"value_max"`
}
