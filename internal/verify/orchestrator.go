// Package verify composes the liveness assessor, embedder, match decider
// and identity store into the per-attempt verification flow.
package verify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"

	"github.com/saturnino-fabrica-de-software/ponto/internal/attendance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/embedding"
	"github.com/saturnino-fabrica-de-software/ponto/internal/identity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/match"
	"github.com/saturnino-fabrica-de-software/ponto/internal/remote"
)

// LivenessAssessor is the liveness surface the orchestrator depends on.
type LivenessAssessor interface {
	Assess(img image.Image) domain.LivenessResult
	AssessBurst(frames []image.Image) domain.LivenessResult
}

// Matcher decides whether two embeddings belong to the same face.
type Matcher interface {
	Compare(a, b domain.Embedding) (match.Result, error)
	Decide(a, b domain.Embedding) (bool, error)
}

// Options tunes the orchestrator thresholds and feature gates.
type Options struct {
	// IdentificationThreshold is the minimum best-match similarity for
	// the login flow to consider a face recognized.
	IdentificationThreshold float64

	// RequireLiveness gates every attempt behind the liveness check.
	RequireLiveness bool

	// DeviceID stamps captured attendance records.
	DeviceID string
}

// Orchestrator runs verification attempts. Each attempt is a linear
// terminal state machine: liveness gate, identification, verification
// against the claimed identity, global best-match check.
type Orchestrator struct {
	embedder embedding.Source
	liveness LivenessAssessor
	decider  Matcher
	store    identity.Store
	queue    attendance.Queue
	remote   remote.IdentityService
	auditLog audit.Logger
	logger   *slog.Logger
	opts     Options

	// online reports current connectivity; it only affects the mode
	// stamped on captured records and whether the remote advisory
	// lookup is attempted.
	online func() bool

	// mu wraps best_match plus decide so a concurrent enroll can never
	// expose a half-written embedding to a running verification.
	mu sync.Mutex
}

func NewOrchestrator(
	embedder embedding.Source,
	liveness LivenessAssessor,
	decider Matcher,
	store identity.Store,
	queue attendance.Queue,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		embedder: embedder,
		liveness: liveness,
		decider:  decider,
		store:    store,
		queue:    queue,
		remote:   remote.DisabledIdentityService{},
		auditLog: &audit.NoOpLogger{},
		logger:   logger,
		opts:     opts,
		online:   func() bool { return false },
	}
}

// WithRemote sets the advisory remote identity service.
func (o *Orchestrator) WithRemote(svc remote.IdentityService) *Orchestrator {
	o.remote = svc
	return o
}

// WithAudit sets the audit logger.
func (o *Orchestrator) WithAudit(l audit.Logger) *Orchestrator {
	o.auditLog = l
	return o
}

// WithConnectivity sets the online probe used to stamp capture mode.
func (o *Orchestrator) WithConnectivity(online func() bool) *Orchestrator {
	o.online = online
	return o
}

// Enroll embeds the face and stores it under the identity. When a remote
// identity service is configured the face is mirrored there too; remote
// failure does not fail the enrollment.
func (o *Orchestrator) Enroll(ctx context.Context, ident *domain.Identity, img image.Image, rawImage []byte) error {
	emb, err := o.embedder.Embed(img)
	if err != nil {
		return err
	}
	if emb.IsZero() {
		return domain.ErrNoFace
	}

	ident.Embedding = emb

	o.mu.Lock()
	err = o.store.Put(ctx, ident)
	o.mu.Unlock()
	if err != nil {
		o.logAudit(ctx, audit.EventIdentityEnrolled, ident.ID, "", false, err)
		return err
	}

	if o.online() && len(rawImage) > 0 {
		if externalID, rerr := o.remote.Enroll(ctx, ident, rawImage); rerr != nil {
			o.logger.WarnContext(ctx, "remote enroll failed, identity stored locally only",
				slog.String("identity_id", ident.ID),
				slog.String("error", rerr.Error()),
			)
		} else if externalID != "" {
			ident.ExternalID = &externalID
			o.mu.Lock()
			if perr := o.store.Put(ctx, ident); perr != nil {
				o.logger.WarnContext(ctx, "failed to persist external id",
					slog.String("identity_id", ident.ID),
					slog.String("error", perr.Error()),
				)
			}
			o.mu.Unlock()
		}
	}

	o.logAudit(ctx, audit.EventIdentityEnrolled, ident.ID, "", true, nil)
	return nil
}

// Delete removes an identity from the local store. When the identity was
// mirrored remotely and the device is online, the remote face is removed
// too; a remote failure leaves the local deletion in place, since the
// local roster is what gates verification.
func (o *Orchestrator) Delete(ctx context.Context, identityID string) (bool, error) {
	o.mu.Lock()
	stored, err := o.store.Get(ctx, identityID)
	if err != nil {
		o.mu.Unlock()
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return false, nil
		}
		return false, err
	}

	removed, err := o.store.Delete(ctx, identityID)
	o.mu.Unlock()
	if err != nil {
		o.logAudit(ctx, audit.EventIdentityDeleted, identityID, "", false, err)
		return false, err
	}
	if !removed {
		return false, nil
	}

	if o.online() && stored.ExternalID != nil {
		if rerr := o.remote.Delete(ctx, *stored.ExternalID); rerr != nil {
			o.logger.WarnContext(ctx, "remote face delete failed, identity removed locally only",
				slog.String("identity_id", identityID),
				slog.String("external_id", *stored.ExternalID),
				slog.String("error", rerr.Error()),
			)
		}
	}

	o.logAudit(ctx, audit.EventIdentityDeleted, identityID, "", true, nil)
	return true, nil
}

// Verify runs the full attempt against a claimed identity. The returned
// outcome is always a value; only infrastructure failures (store I/O,
// embedder model loading) surface as errors.
func (o *Orchestrator) Verify(ctx context.Context, claimedID string, frames []image.Image) (domain.VerificationOutcome, error) {
	outcome := domain.VerificationOutcome{IdentityID: claimedID}

	if len(frames) == 0 {
		return o.reject(ctx, outcome, domain.OutcomeNoFaceDetected), nil
	}

	live, res, terminal := o.livenessGate(frames)
	outcome.IsLive = live
	outcome.LivenessConfidence = res.Confidence
	if terminal {
		return o.reject(ctx, outcome, domain.OutcomeLivenessFailed), nil
	}

	probe, err := o.embedProbe(frames[0])
	if err != nil {
		if errors.Is(err, domain.ErrNoFace) || errors.Is(err, domain.ErrInvalidImage) {
			return o.reject(ctx, outcome, domain.OutcomeNoFaceDetected), nil
		}
		return outcome, err
	}

	o.consultRemote(ctx, frames, claimedID)

	o.mu.Lock()
	defer o.mu.Unlock()

	stored, err := o.store.Get(ctx, claimedID)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return o.reject(ctx, outcome, domain.OutcomeNotEnrolled), nil
		}
		return outcome, err
	}

	result, err := o.decider.Compare(probe, stored.Embedding)
	if err != nil {
		// Dimension mismatch means the stored embedding is unusable for
		// this probe; fail this attempt only.
		return outcome, err
	}
	outcome.Confidence = result.Similarity

	accepted, err := o.decider.Decide(probe, stored.Embedding)
	if err != nil {
		return outcome, err
	}
	if !accepted {
		return o.reject(ctx, outcome, domain.OutcomeInconclusive), nil
	}

	mismatch, err := o.globalMismatch(ctx, probe, claimedID)
	if err != nil {
		return outcome, err
	}
	if mismatch {
		return o.reject(ctx, outcome, domain.OutcomeIdentityMismatch), nil
	}

	outcome.Matched = true
	outcome.Code = domain.OutcomeVerified
	outcome.Message = domain.OutcomeVerified.Message()
	o.logAudit(ctx, audit.EventFaceVerified, claimedID, string(outcome.Code), true, nil)
	return outcome, nil
}

// Identify runs the login flow: best-match identification first, then
// the regular claimed-identity verification against the winner.
func (o *Orchestrator) Identify(ctx context.Context, frames []image.Image) (domain.VerificationOutcome, error) {
	outcome := domain.VerificationOutcome{}

	if len(frames) == 0 {
		return o.reject(ctx, outcome, domain.OutcomeNoFaceDetected), nil
	}

	live, res, terminal := o.livenessGate(frames)
	outcome.IsLive = live
	outcome.LivenessConfidence = res.Confidence
	if terminal {
		return o.reject(ctx, outcome, domain.OutcomeLivenessFailed), nil
	}

	probe, err := o.embedProbe(frames[0])
	if err != nil {
		if errors.Is(err, domain.ErrNoFace) || errors.Is(err, domain.ErrInvalidImage) {
			return o.reject(ctx, outcome, domain.OutcomeNoFaceDetected), nil
		}
		return outcome, err
	}

	o.mu.Lock()
	best, found, err := o.store.BestMatch(ctx, probe)
	o.mu.Unlock()
	if err != nil {
		return outcome, err
	}
	if !found || best.Similarity < o.opts.IdentificationThreshold {
		return o.reject(ctx, outcome, domain.OutcomeNotEnrolled), nil
	}

	return o.Verify(ctx, best.IdentityID, frames)
}

// Clock runs the verification attempt and queues an attendance record
// for every capture that produced frames, matched or not. The outcome
// code gates what the console reports; the record itself is the durable
// trace of the capture and feeds the sync queue either way.
func (o *Orchestrator) Clock(ctx context.Context, claimedID string, frames []image.Image, event domain.EventType) (domain.VerificationOutcome, *domain.AttendanceRecord, error) {
	outcome, err := o.Verify(ctx, claimedID, frames)
	if err != nil {
		return outcome, nil, err
	}
	if len(frames) == 0 {
		return outcome, nil, nil
	}

	mode := domain.ModeOffline
	if o.online() {
		mode = domain.ModeOnline
	}

	record := domain.NewAttendanceRecord(claimedID, event, mode, o.opts.DeviceID)
	if err := o.queue.Insert(ctx, record); err != nil {
		o.logAudit(ctx, audit.EventAttendanceLogged, claimedID, string(event), false, err)
		return outcome, nil, err
	}

	o.logAudit(ctx, audit.EventAttendanceLogged, claimedID, string(event), outcome.Matched, nil)
	return outcome, record, nil
}

// livenessGate runs the single- or multi-frame assessment. terminal is
// true when the attempt must stop here.
func (o *Orchestrator) livenessGate(frames []image.Image) (bool, domain.LivenessResult, bool) {
	if !o.opts.RequireLiveness {
		return true, domain.LivenessResult{IsLive: true, Confidence: 1}, false
	}

	var res domain.LivenessResult
	if len(frames) > 1 {
		res = o.liveness.AssessBurst(frames)
	} else if len(frames) == 1 {
		res = o.liveness.Assess(frames[0])
	}
	return res.IsLive, res, !res.IsLive
}

func (o *Orchestrator) embedProbe(img image.Image) (domain.Embedding, error) {
	if img == nil {
		return nil, domain.ErrInvalidImage
	}
	probe, err := o.embedder.Embed(img)
	if err != nil {
		return nil, err
	}
	if probe.IsZero() {
		return nil, domain.ErrNoFace
	}
	return probe, nil
}

// globalMismatch re-runs best_match over the whole enrollment. With more
// than one identity enrolled, a probe that scores higher against someone
// other than the claimed identity is rejected even though it cleared the
// pairwise thresholds.
func (o *Orchestrator) globalMismatch(ctx context.Context, probe domain.Embedding, claimedID string) (bool, error) {
	all, err := o.store.All(ctx)
	if err != nil {
		return false, err
	}
	if len(all) <= 1 {
		return false, nil
	}

	best, found, err := o.store.BestMatch(ctx, probe)
	if err != nil {
		return false, err
	}
	return found && best.IdentityID != claimedID, nil
}

// consultRemote runs the advisory detect/identify pair. The local flow
// is always authoritative; any disagreement or failure here is logged
// and otherwise ignored.
func (o *Orchestrator) consultRemote(ctx context.Context, frames []image.Image, claimedID string) {
	if !o.online() {
		return
	}

	raw := encodeFrame(frames[0])
	if raw == nil {
		return
	}

	handles, err := o.remote.Detect(ctx, raw)
	if err != nil || len(handles) == 0 {
		return
	}

	cand, err := o.remote.Identify(ctx, handles[0])
	if err != nil || cand == nil {
		return
	}

	if claimedID != "" && cand.IdentityID != claimedID {
		o.logger.InfoContext(ctx, "remote identification disagrees with claim",
			slog.String("claimed", claimedID),
			slog.String("remote_candidate", cand.IdentityID),
			slog.Float64("remote_similarity", cand.Similarity),
		)
	}
}

// encodeFrame produces the JPEG bytes sent to the remote service.
// Returns nil when the frame cannot be encoded.
func encodeFrame(img image.Image) []byte {
	if img == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil
	}
	return buf.Bytes()
}

func (o *Orchestrator) reject(ctx context.Context, outcome domain.VerificationOutcome, code domain.OutcomeCode) domain.VerificationOutcome {
	outcome.Matched = false
	outcome.Code = code
	outcome.Message = code.Message()
	o.logAudit(ctx, audit.EventFaceVerified, outcome.IdentityID, string(code), false, nil)
	return outcome
}

func (o *Orchestrator) logAudit(ctx context.Context, event audit.EventType, identityID, outcome string, success bool, err error) {
	e := audit.Event{
		EventType:  event,
		IdentityID: identityID,
		Outcome:    outcome,
		Success:    success,
		DeviceID:   o.opts.DeviceID,
	}
	if err != nil {
		e.Error = err.Error()
	}
	_ = o.auditLog.Log(ctx, e)
}
