package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/platform"
	"github.com/haneul-labs/saju-engine/internal/prompt"
)

// progressStages is the fixed edit sequence shown while a long analysis
// runs. The loop parks on the last stage until the result lands.
var progressStages = []string{
	"사주 명식 계산 중 🔮",
	"오행의 흐름을 읽는 중 🌊",
	"올해 세운과 대조하는 중 📅",
	"거의 다 됐어 ✨",
}

const interimTimeout = 5 * time.Second

type analysisResult struct {
	reply platform.Reply
	err   error
}

// runWithProgress executes a long analysis under the two-phase pattern:
// race the analysis against a short timer, and only when it loses post a
// progress message that gets edited every tick. The interim one-liner is
// generated in parallel and swapped in if it arrives while the progress
// message is up. Request/response platforms without edit support just
// wait out the analysis.
func (o *Orchestrator) runWithProgress(ctx context.Context, r Responder, tone prompt.Tone, question string, run func(context.Context) (platform.Reply, error)) error {
	resultCh := make(chan analysisResult, 1)
	go func() {
		reply, err := run(ctx)
		resultCh <- analysisResult{reply: reply, err: err}
	}()

	interimCh := make(chan string, 1)
	go func() {
		defer close(interimCh)
		if o.chat == nil {
			return
		}
		ictx, cancel := context.WithTimeout(ctx, interimTimeout)
		defer cancel()
		resp, err := o.chat.Complete(ictx, o.prompts.Interim(tone, question))
		if err != nil {
			return
		}
		if line := strings.TrimSpace(resp.Content); line != "" {
			interimCh <- line
		}
	}()

	timer := time.NewTimer(o.progressRace)
	defer timer.Stop()
	select {
	case res := <-resultCh:
		return o.finish(ctx, r, res)
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	pr, ok := r.(ProgressResponder)
	if !ok {
		select {
		case res := <-resultCh:
			return o.finish(ctx, r, res)
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := pr.Typing(ctx); err != nil {
		log.Debug().Err(err).Msg("typing indicator failed")
	}

	first := progressStages[0]
	select {
	case line, more := <-interimCh:
		if more && line != "" {
			first = line
		}
		interimCh = nil
	default:
	}

	msgID, err := pr.SendProgress(ctx, first)
	if err != nil {
		// Best-effort UX: without a progress message we still deliver the
		// final reply.
		log.Warn().Err(err).Msg("progress message send failed")
		msgID = 0
	}

	stage := 0
	ticker := time.NewTicker(o.progressTick)
	defer ticker.Stop()
	for {
		select {
		case res := <-resultCh:
			if msgID != 0 {
				if derr := pr.DeleteProgress(ctx, msgID); derr != nil {
					log.Debug().Err(derr).Msg("progress delete failed")
				}
			}
			return o.finish(ctx, pr, res)

		case line, more := <-interimCh:
			interimCh = nil
			if more && line != "" && msgID != 0 {
				_ = pr.EditProgress(ctx, msgID, line)
			}

		case <-ticker.C:
			if stage < len(progressStages)-1 {
				stage++
			}
			if msgID != 0 {
				// Edit failures are swallowed; the loop keeps its rhythm.
				_ = pr.EditProgress(ctx, msgID, progressStages[stage])
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// finish delivers either the reply or the per-kind apology. The original
// error is returned so the caller logs it and skips billing.
func (o *Orchestrator) finish(ctx context.Context, r Responder, res analysisResult) error {
	if res.err != nil {
		if serr := r.Send(ctx, platform.Reply{Text: errorReply(res.err)}); serr != nil {
			return serr
		}
		return res.err
	}
	return r.Send(ctx, res.reply)
}
