package domain

// LivenessResult is the outcome of a single anti-spoof assessment.
// It is produced per verification attempt and never persisted.
type LivenessResult struct {
	IsLive     bool    `json:"is_live"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message"`

	// Per-signal scores kept for diagnostics only.
	TextureScore    float64 `json:"texture_score,omitempty"`
	ReflectionScore float64 `json:"reflection_score,omitempty"`
	SizeRatio       float64 `json:"size_ratio,omitempty"`
}

// OutcomeCode classifies why a verification attempt succeeded or failed.
// These are result values, not errors: every attempt terminates with
// exactly one code.
type OutcomeCode string

const (
	OutcomeVerified         OutcomeCode = "VERIFIED"
	OutcomeNoFaceDetected   OutcomeCode = "NO_FACE_DETECTED"
	OutcomeNotEnrolled      OutcomeCode = "NOT_ENROLLED"
	OutcomeLivenessFailed   OutcomeCode = "LIVENESS_FAILED"
	OutcomeIdentityMismatch OutcomeCode = "IDENTITY_MISMATCH"
	OutcomeInconclusive     OutcomeCode = "INCONCLUSIVE"
)

// outcomeMessages maps each code to its user-facing message.
var outcomeMessages = map[OutcomeCode]string{
	OutcomeVerified:         "identity verified",
	OutcomeNoFaceDetected:   "no face detected in the image",
	OutcomeNotEnrolled:      "face not recognized, identity is not enrolled",
	OutcomeLivenessFailed:   "liveness check failed, possible spoofing attempt",
	OutcomeIdentityMismatch: "face matches a different enrolled identity",
	OutcomeInconclusive:     "match confidence below acceptance thresholds",
}

// Message returns the user-facing description of the code.
func (c OutcomeCode) Message() string {
	if msg, ok := outcomeMessages[c]; ok {
		return msg
	}
	return "verification failed"
}

// VerificationOutcome é o resultado final de uma tentativa de verificação.
type VerificationOutcome struct {
	Matched            bool        `json:"matched"`
	Confidence         float64     `json:"confidence"`
	IsLive             bool        `json:"is_live"`
	LivenessConfidence float64     `json:"liveness_confidence"`
	IdentityID         string      `json:"identity_id,omitempty"`
	Code               OutcomeCode `json:"code"`
	Message            string      `json:"message"`
}
