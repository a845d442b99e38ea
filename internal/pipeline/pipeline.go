// Package pipeline drives one relay run: fetch, filter, translate, stage,
// publish and record, one post at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"tgfb-relay/internal/caption"
	"tgfb-relay/internal/database"
	"tgfb-relay/internal/database/models"
	"tgfb-relay/internal/dedup"
	"tgfb-relay/internal/facebook"
	"tgfb-relay/internal/locales"
	"tgfb-relay/internal/mediagroups"
	"tgfb-relay/internal/source"
	"tgfb-relay/internal/stager"

	"github.com/getsentry/sentry-go"
	"go.uber.org/ratelimit"
)

// Locale message ids used as skip and failure reasons.
const (
	reasonAlreadyPosted = "MsgSkipAlreadyPosted"
	reasonGroupHandled  = "MsgSkipGroupHandled"
	reasonEmpty         = "MsgSkipEmpty"
	reasonTranslation   = "MsgTranslationFailed"
	reasonPublish       = "MsgPublishFailed"
	reasonRecord        = "MsgRecordFailed"
)

const (
	ackTimeout        = 15 * time.Second
	defaultFetchLimit = 10
	defaultItemPause  = time.Second
)

// PublishError is returned when the page rejected a post or media could not be staged.
type PublishError struct {
	PostID int
	Reason string
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish post %d: %s", e.PostID, e.Reason)
}

// errNotRecorded marks a post that is live on the page but missing from the store.
var errNotRecorded = errors.New("published but not recorded")

// Fetcher reads recent channel posts and confirms the ones that are settled.
type Fetcher interface {
	FetchRecent(ctx context.Context, limit int) ([]source.Item, error)
	Acknowledge(ctx context.Context, before int) error
	AcknowledgeAll(ctx context.Context) error
}

// Translator turns cleaned source text into a page caption.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Stager materializes the media of a post.
type Stager interface {
	Stage(ctx context.Context, post source.Post) (*stager.MediaGroup, error)
}

// Publisher posts to the page within a run session.
type Publisher interface {
	NewSession() *facebook.Session
	Publish(ctx context.Context, s *facebook.Session, caption string, group *stager.MediaGroup) bool
}

// Options tunes a run.
type Options struct {
	FetchLimit      int
	GroupScanWindow int
	MinTokens       int
	DedupByText     bool
	ItemPause       time.Duration
	// Limiter overrides the limiter derived from ItemPause.
	Limiter ratelimit.Limiter
}

// Deps holds the collaborators of a Pipeline.
type Deps struct {
	Fetcher    Fetcher
	Store      database.ResultStore
	Translator Translator
	Stager     Stager
	Publisher  Publisher
	Printer    *locales.Printer
	// Report receives per-item errors. Defaults to sentry.CaptureException.
	Report func(error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	Fetched int
	Posted  int
	Skipped int
	Failed  int
	// Records holds what was appended to the store during the run.
	Records []models.PublishRecord
	// AckBefore is the update id the queue was confirmed up to, unless AckedAll.
	AckBefore int
	AckedAll  bool
}

// Pipeline runs the relay once per call to Run.
type Pipeline struct {
	fetcher    Fetcher
	store      database.ResultStore
	translator Translator
	stager     Stager
	publisher  Publisher
	printer    *locales.Printer
	report     func(error)
	now        func() time.Time
	opts       Options
	limiter    ratelimit.Limiter
}

// New creates a Pipeline from its dependencies.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("result store cannot be nil")
	}
	if deps.Translator == nil {
		return nil, fmt.Errorf("translator cannot be nil")
	}
	if deps.Stager == nil {
		return nil, fmt.Errorf("media stager cannot be nil")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if deps.Printer == nil {
		return nil, fmt.Errorf("status printer cannot be nil")
	}

	if opts.FetchLimit <= 0 {
		opts.FetchLimit = defaultFetchLimit
	}
	limiter := opts.Limiter
	if limiter == nil {
		pause := opts.ItemPause
		if pause <= 0 {
			pause = defaultItemPause
		}
		limiter = ratelimit.New(1, ratelimit.Per(pause), ratelimit.WithoutSlack)
	}
	report := deps.Report
	if report == nil {
		report = func(err error) { sentry.CaptureException(err) }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		translator: deps.Translator,
		stager:     deps.Stager,
		publisher:  deps.Publisher,
		printer:    deps.Printer,
		report:     report,
		now:        now,
		opts:       opts,
		limiter:    limiter,
	}, nil
}

// runState is the per-run mutable context shared by the stages.
type runState struct {
	index   *dedup.Index
	groups  *mediagroups.Manager
	session *facebook.Session
	batch   []source.Item
}

// Run executes one scan. Only an unreachable store or a fetch failure is
// returned as an error; every per-item failure is logged, reported and
// counted in the summary.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	records, err := p.store.Load(ctx)
	switch {
	case errors.Is(err, database.ErrCorruptStore):
		// Undecodable content means nothing is known to be posted.
		log.Printf("[Store] Could not decode results, starting with an empty set: %v", err)
		p.report(fmt.Errorf("[Store] load: %w", err))
		records = nil
	case err != nil:
		// Publishing without the store would repost everything.
		return summary, fmt.Errorf("failed to load results: %w", err)
	}

	items, err := p.fetcher.FetchRecent(ctx, p.opts.FetchLimit)
	if err != nil {
		return summary, err
	}
	summary.Fetched = len(items)
	p.printer.Println("MsgFetchedMessages", map[string]interface{}{"Count": len(items)})

	// FetchRecent returns newest first; publish in chronological order.
	batch := make([]source.Item, len(items))
	for i, it := range items {
		batch[len(items)-1-i] = it
	}

	st := &runState{
		index:   dedup.NewIndex(records, p.opts.DedupByText),
		groups:  mediagroups.NewManager(p.opts.GroupScanWindow, mediagroups.DefaultMaxGroupSize),
		session: p.publisher.NewSession(),
		batch:   batch,
	}

	ackBefore, pending := 0, false
	unsettled := func(updateID int) {
		if !pending || updateID < ackBefore {
			ackBefore, pending = updateID, true
		}
	}

	for i, item := range batch {
		if ctx.Err() != nil {
			log.Printf("[Run] Cancelled, %d message(s) left for the next run", len(batch)-i)
			for _, rest := range batch[i:] {
				unsettled(rest.UpdateID)
			}
			break
		}

		res, updateID := p.processItem(ctx, st, item)
		data := map[string]interface{}{"ID": item.ID, "Group": item.GroupKey}
		switch res.Outcome {
		case OutcomeOK:
			summary.Posted++
			summary.Records = append(summary.Records, res.Value)
		case OutcomeSkip:
			summary.Skipped++
			p.printer.Println(res.Reason, data)
		case OutcomeFail:
			p.printer.Println(res.Reason, data)
			p.report(fmt.Errorf("[Item:%d] %w", item.ID, res.Err))
			if errors.Is(res.Err, errNotRecorded) {
				// The post is live; letting Telegram redeliver it would duplicate it.
				summary.Posted++
				continue
			}
			summary.Failed++
			unsettled(updateID)
		}
	}

	summary.AckBefore, summary.AckedAll = ackBefore, !pending
	p.acknowledge(ctx, ackBefore, !pending)

	p.printer.Println("MsgRunSummary", map[string]interface{}{
		"Posted":  summary.Posted,
		"Skipped": summary.Skipped,
		"Failed":  summary.Failed,
	})
	return summary, nil
}

// acknowledge confirms the settled prefix of the update queue.
func (p *Pipeline) acknowledge(ctx context.Context, before int, all bool) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackTimeout)
	defer cancel()

	var err error
	if all {
		err = p.fetcher.AcknowledgeAll(ackCtx)
	} else {
		err = p.fetcher.Acknowledge(ackCtx, before)
	}
	if err != nil {
		log.Printf("[Fetch] Acknowledge failed, updates will be redelivered: %v", err)
		p.report(err)
	}
}

// processItem runs one item through every stage. It returns the stage result
// and the update id that must stay unconfirmed if the item failed.
func (p *Pipeline) processItem(ctx context.Context, st *runState, item source.Item) (res Result[models.PublishRecord], updateID int) {
	updateID = item.UpdateID
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered while processing message %d: %v\n%s", item.ID, r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			res = Fail[models.PublishRecord](reasonPublish, fmt.Errorf("panic: %v", r))
		}
	}()

	filtered := p.filter(st, item)
	if filtered.Outcome != OutcomeOK {
		return carry[models.PublishRecord](filtered), updateID
	}
	c := filtered.Value
	updateID = c.post.UpdateID

	p.limiter.Take()
	p.printer.Println("MsgProcessing", map[string]interface{}{"ID": c.post.AnchorID})

	translated := p.translate(ctx, c)
	if translated.Outcome != OutcomeOK {
		return carry[models.PublishRecord](translated), updateID
	}

	staged := p.stage(ctx, c.post)
	// Staged files go away before the next item whatever happens below.
	defer func() {
		if err := staged.Value.Cleanup(); err != nil {
			log.Printf("[Item:%d] Media cleanup failed: %v", c.post.AnchorID, err)
		}
	}()
	if staged.Outcome != OutcomeOK {
		return carry[models.PublishRecord](staged), updateID
	}

	if !p.publisher.Publish(ctx, st.session, translated.Value, staged.Value) {
		return Fail[models.PublishRecord](reasonPublish, &PublishError{PostID: c.post.AnchorID, Reason: "page rejected the post"}), updateID
	}
	p.printer.Println("MsgPublishSuccess", map[string]interface{}{"ID": c.post.AnchorID})

	return p.record(ctx, st, c.post, translated.Value), updateID
}

type candidate struct {
	post    source.Post
	cleaned string
}

func (p *Pipeline) filter(st *runState, item source.Item) Result[candidate] {
	if st.groups.Handled(item.GroupKey) {
		return Skip[candidate](reasonGroupHandled)
	}
	if st.index.Seen([]int{item.ID}, item.GroupKey, "") {
		st.groups.MarkHandled(item.GroupKey)
		return Skip[candidate](reasonAlreadyPosted)
	}

	post := st.groups.Assemble(item, st.batch)
	cleaned := caption.Clean(post.Text)
	if st.index.Seen(post.MemberIDs, post.GroupKey, post.Text) {
		return Skip[candidate](reasonAlreadyPosted)
	}
	if !post.HasMedia() && !caption.Publishable(cleaned, p.opts.MinTokens) {
		return Skip[candidate](reasonEmpty)
	}
	return Ok(candidate{post: post, cleaned: cleaned})
}

func (p *Pipeline) translate(ctx context.Context, c candidate) Result[string] {
	if c.cleaned == "" {
		// Media without text goes out with an empty caption.
		return Ok("")
	}
	out, err := p.translator.Translate(ctx, c.cleaned)
	if err != nil {
		return Fail[string](reasonTranslation, err)
	}
	return Ok(out)
}

func (p *Pipeline) stage(ctx context.Context, post source.Post) Result[*stager.MediaGroup] {
	group, err := p.stager.Stage(ctx, post)
	if err != nil {
		return Result[*stager.MediaGroup]{Outcome: OutcomeFail, Value: group, Reason: reasonPublish, Err: err}
	}
	if post.HasMedia() && group.Empty() {
		// Posting the caption alone would settle the post without its media.
		return Result[*stager.MediaGroup]{
			Outcome: OutcomeFail,
			Value:   group,
			Reason:  reasonPublish,
			Err:     &PublishError{PostID: post.AnchorID, Reason: "no media could be downloaded"},
		}
	}
	return Ok(group)
}

func (p *Pipeline) record(ctx context.Context, st *runState, post source.Post, translated string) Result[models.PublishRecord] {
	rec := models.PublishRecord{
		SourceID:          post.AnchorID,
		OriginalText:      post.Text,
		TranslatedCaption: translated,
		Status:            models.StatusPosted,
		PostedAt:          p.now(),
		MediaGroupID:      post.GroupKey,
	}
	// Index first: the post is live even if the write below fails.
	st.index.Add(rec)
	for _, id := range post.MemberIDs {
		if id != post.AnchorID {
			st.index.Add(models.PublishRecord{SourceID: id, Status: models.StatusPosted, MediaGroupID: post.GroupKey})
		}
	}

	// A live post is recorded even if the run is being cancelled.
	if err := p.store.Append(context.WithoutCancel(ctx), []models.PublishRecord{rec}); err != nil {
		return Fail[models.PublishRecord](reasonRecord, fmt.Errorf("%w: %v", errNotRecorded, err))
	}
	return Ok(rec)
}
