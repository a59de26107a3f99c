// Package orchestrator is the per-user conversation state machine. Every
// inbound utterance runs the same resolution order: meta commands, /start,
// missing profile, pending actions, analyzer intents, message
// classification, and finally the general saju Q&A. Turns from one user
// are strictly serialized; turns across users are independent.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/classics"
	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/intent"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/limits"
	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/internal/manse"
	"github.com/haneul-labs/saju-engine/internal/metrics"
	"github.com/haneul-labs/saju-engine/internal/pending"
	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/prompt"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// Inbound is the tagged union of things a platform adapter can deliver:
// a text utterance or a callback tap. The adapter is the sole producer;
// exactly one branch is set.
type Inbound struct {
	Platform    models.Platform
	UserID      string
	DisplayName string
	Text        string
	Callback    *Callback
}

// Callback is an inline-button tap.
type Callback struct {
	ID      string
	Payload string
}

// Responder delivers a reply to the user on whatever platform they came
// from.
type Responder interface {
	Send(ctx context.Context, reply platform.Reply) error
}

// ProgressResponder is a duplex platform that can show a live progress
// message while a long analysis runs. Adapters that cannot (the Kakao
// skill) just implement Responder and the orchestrator waits silently.
type ProgressResponder interface {
	Responder
	Typing(ctx context.Context) error
	SendProgress(ctx context.Context, text string) (int64, error)
	EditProgress(ctx context.Context, id int64, text string) error
	DeleteProgress(ctx context.Context, id int64) error
}

// Events receives anonymized activity for the ops stream. Optional.
type Events interface {
	Broadcast(models.OpsEvent)
}

// Orchestrator wires the whole conversational pipeline. The LLM client
// may be nil (no API key); analysis paths then answer with a maintenance
// notice while deterministic paths keep working.
type Orchestrator struct {
	store    db.Store
	chat     llm.ChatCompleter
	manse    *manse.Resolver
	classics *classics.Retriever
	prompts  *prompt.Builder
	throttle *limits.Throttle
	quota    *limits.Quota
	pending  *pending.Manager
	locks    *userLocks
	events   Events
	now      func() time.Time

	// Progress pacing, shrunk in tests.
	progressRace time.Duration
	progressTick time.Duration
}

// New builds the orchestrator. now must produce KST time; pass kst.Now
// in production.
func New(store db.Store, chat llm.ChatCompleter, resolver *manse.Resolver, retriever *classics.Retriever, events Events, now func() time.Time) *Orchestrator {
	if now == nil {
		now = kst.Now
	}
	return &Orchestrator{
		store:        store,
		chat:         chat,
		manse:        resolver,
		classics:     retriever,
		prompts:      prompt.NewBuilder(now),
		throttle:     limits.NewThrottle(),
		quota:        limits.NewQuota(store, store),
		pending:      pending.NewManager(store, now),
		locks:        newUserLocks(now),
		events:       events,
		now:          now,
		progressRace: 3 * time.Second,
		progressTick: 2 * time.Second,
	}
}

// Pending exposes the pending-action manager for sweep jobs.
func (o *Orchestrator) Pending() *pending.Manager { return o.pending }

func (o *Orchestrator) broadcast(eventType string, p models.Platform, detail string) {
	if o.events == nil {
		return
	}
	o.events.Broadcast(models.OpsEvent{Type: eventType, Platform: p, Detail: detail, At: o.now()})
}

// Handle processes one inbound item end to end. The returned error is
// for logging only; the user always got some reply (or the send itself
// failed).
func (o *Orchestrator) Handle(ctx context.Context, in Inbound, r Responder) error {
	release := o.locks.acquire(string(in.Platform) + "|" + in.UserID)
	defer release()

	started := time.Now()
	o.broadcast(models.OpsInbound, in.Platform, "")

	label, err := o.dispatch(ctx, in, r)
	metrics.HandleLatency.WithLabelValues(label).Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.InboundMessages.WithLabelValues(string(in.Platform), "error").Inc()
		o.broadcast(models.OpsError, in.Platform, label)
		log.Error().Err(err).
			Str("platform", string(in.Platform)).
			Str("user", in.UserID).
			Str("phase", label).
			Msg("turn failed")
		return err
	}

	metrics.InboundMessages.WithLabelValues(string(in.Platform), "ok").Inc()
	o.broadcast(models.OpsReply, in.Platform, label)

	// Last activity feeds the push eligibility window; every successfully
	// handled inbound counts.
	if terr := o.store.TouchLastActive(ctx, in.Platform, in.UserID, o.now()); terr != nil {
		log.Warn().Err(terr).Str("user", in.UserID).Msg("last-active update failed")
	}
	return nil
}

// dispatch runs the resolution order and returns the phase label for
// metrics and logs.
func (o *Orchestrator) dispatch(ctx context.Context, in Inbound, r Responder) (string, error) {
	if in.Callback != nil {
		return "callback", o.handleCallback(ctx, in, r)
	}

	text := strings.TrimSpace(in.Text)
	now := o.now()

	// Spam gate before anything that costs money or I/O.
	if err := o.throttle.Allow(in.Platform, in.UserID, now); err != nil {
		return "throttled", r.Send(ctx, platform.Reply{Text: rateLimitedText(apperr.RetryAfterOf(err))})
	}

	// 1. Meta commands and 2. /start.
	if handled, label, err := o.handleMeta(ctx, in, text, r); handled {
		return label, err
	}

	profile, err := o.store.GetProfile(ctx, in.Platform, in.UserID)
	if err != nil {
		return "profile_load", r.Send(ctx, platform.Reply{Text: errorReply(err)})
	}

	// 3. No profile yet: a parseable birth tuple registers, anything else
	// asks for one.
	if profile == nil {
		return o.handleRegistration(ctx, in, text, r)
	}

	// 4. A pending compatibility slot is the sole arbiter of what this
	// utterance means: the partner's birth.
	slot, err := o.pending.Peek(ctx, in.Platform, in.UserID, models.PendingCompatibility)
	if err != nil {
		log.Warn().Err(err).Str("user", in.UserID).Msg("pending lookup failed")
	}
	if slot != nil {
		return "compatibility", o.handlePartnerBirth(ctx, in, text, profile, slot, r)
	}

	// Harmful content beats every intent.
	if intent.ClassifyMessage(text) == intent.ClassHarmful {
		return "harmful", r.Send(ctx, platform.Reply{Text: harmfulReplyText})
	}

	// 5.–8. Analyzer intents.
	switch intent.DetectIntent(text) {
	case intent.IntentCompatibility:
		return "compatibility", o.stageCompatibility(ctx, in, text, r)
	case intent.IntentWealth:
		return "wealth", o.handleWealth(ctx, in, text, profile, r)
	case intent.IntentDatePick:
		return "date_pick", o.handleDatePick(ctx, in, text, profile, r)
	case intent.IntentDailyFortune:
		return "daily_fortune", o.handleDailyFortune(ctx, in, profile, r)
	}

	// 9. Non-saju classes get templated replies.
	switch intent.ClassifyMessage(text) {
	case intent.ClassGreeting:
		return "greeting", r.Send(ctx, platform.Reply{Text: greetingReplyText})
	case intent.ClassMeta:
		return "meta_question", r.Send(ctx, platform.Reply{Text: metaReplyText})
	case intent.ClassCasual:
		return "casual", r.Send(ctx, platform.Reply{Text: casualReplyText})
	}

	// 10. The general saju question.
	return "saju", o.handleSajuQuestion(ctx, in, text, profile, r)
}

// newReferralCode mints the short shareable code attached to a profile.
func newReferralCode() string {
	return "ref_" + strings.ToUpper(uuid.NewString()[:6])
}
