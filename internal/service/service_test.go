package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"countyportal/internal/config"
	"countyportal/internal/db"
	"countyportal/internal/filter"
	"countyportal/internal/langdetect"
	"countyportal/internal/models"
	"countyportal/internal/store"
	"countyportal/internal/wordlist"
)

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func (m *fakeMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[to] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *fakeMailer) messages() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc    *Service
	st     *store.Store
	mailer *fakeMailer
	clock  *clock
	cfg    config.Config
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	sqdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "portal.db"), 1, 1, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqdb.Close() })
	require.NoError(t, db.ApplyMigrations(sqdb, "sqlite"))
	st := store.New(sqdb, "sqlite")

	cfg := config.Config{
		PublicBaseURL:   "https://projects.county.example",
		DuplicateWindow: 30 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	words := wordlist.NewSettingStore(st, zap.NewNop())
	require.NoError(t, words.Replace(context.Background(), []string{"idiot"}, []string{"corruption"}))

	mailer := &fakeMailer{failTo: map[string]bool{}}
	c := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc := New(cfg, st, words, langdetect.Heuristic{}, mailer, zap.NewNop(), WithClock(c.now))
	return &fixture{svc: svc, st: st, mailer: mailer, clock: c, cfg: cfg}
}

func (f *fixture) project(t *testing.T, name, visibility string) int64 {
	t.Helper()
	res, err := f.st.DB().Exec(
		`INSERT INTO projects(project_name,status,progress_percentage,visibility,created_at) VALUES(?,?,?,?,?)`,
		name, "ongoing", 65.0, visibility, f.clock.t,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func submission(projectID int64, msg string) CommentSubmission {
	return CommentSubmission{ProjectID: projectID, Name: "Wanjiru", Message: msg, IP: "10.0.0.5", UserAgent: "test"}
}

func TestSubmitCommentOutcomes(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Water Pan", "published")
	ctx := context.Background()

	tests := []struct {
		name   string
		msg    string
		status models.CommentStatus
		reason filter.Reason
	}{
		{"clean english", "The water project is very good for the community", models.CommentApproved, filter.ReasonClean},
		{"clean swahili", "Mradi huu wa maji ni mzuri sana kwa watu wa kijiji", models.CommentApproved, filter.ReasonClean},
		{"flagged", "There is corruption in the tender process here", models.CommentPending, filter.ReasonFlagged},
		{"banned", "The contractor is an idiot and should leave", models.CommentRejected, filter.ReasonBanned},
		{"other language", "Je pense que ce projet est très important pour notre communauté", models.CommentPending, filter.ReasonLanguage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.svc.SubmitComment(ctx, submission(pid, tc.msg))
			require.NoError(t, err)
			assert.Equal(t, tc.status, res.Status)
			assert.Equal(t, tc.reason, res.Verdict.Reason)
			assert.Equal(t, tc.status != models.CommentRejected, res.Accepted())

			stored, err := f.st.GetComment(ctx, res.CommentID)
			require.NoError(t, err)
			assert.Equal(t, tc.status, stored.Status)
			assert.Equal(t, string(tc.reason), stored.FilterReason)
			assert.Contains(t, stored.FilteringMetadata, string(tc.reason))
			assert.Equal(t, "10.0.0.5", stored.UserIP)
		})
	}

	entries, total, err := f.st.ListActivity(ctx, models.ActivityQuery{Type: "comment_filtered"})
	require.NoError(t, err)
	assert.Equal(t, len(tests), total)
	assert.Len(t, entries, len(tests))
}

func TestSubmitCommentDuplicateWindow(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Market Shed", "published")
	ctx := context.Background()
	in := submission(pid, "The market shed roof is leaking when it rains")

	_, err := f.svc.SubmitComment(ctx, in)
	require.NoError(t, err)

	f.clock.advance(10 * time.Second)
	_, err = f.svc.SubmitComment(ctx, in)
	require.ErrorIs(t, err, ErrDuplicateComment)

	f.clock.advance(31 * time.Second)
	_, err = f.svc.SubmitComment(ctx, in)
	require.NoError(t, err)
}

func TestSubmitCommentDuplicateGuardRunsBeforeFilter(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Market Shed", "published")
	ctx := context.Background()
	in := submission(pid, "The contractor is an idiot and should leave")

	res, err := f.svc.SubmitComment(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Accepted())

	_, err = f.svc.SubmitComment(ctx, in)
	require.ErrorIs(t, err, ErrDuplicateComment)
}

func TestSubmitCommentValidation(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Borehole", "published")
	ctx := context.Background()

	cases := map[string]CommentSubmission{
		"citizen_name":  {ProjectID: pid, Name: "A", Message: "The borehole is dry"},
		"message":       {ProjectID: pid, Name: "Amina", Message: "   "},
		"citizen_email": {ProjectID: pid, Name: "Amina", Email: "not-an-email", Message: "The borehole is dry"},
		"project_id":    {Name: "Amina", Message: "The borehole is dry"},
	}
	for field, in := range cases {
		t.Run(field, func(t *testing.T) {
			_, err := f.svc.SubmitComment(ctx, in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Field)
		})
	}

	_, err := f.svc.SubmitComment(ctx, submission(pid+100, "The borehole is dry"))
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestSubmitCommentStoresLowercasedEmail(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Borehole", "published")
	in := submission(pid, "The borehole is working well now")
	in.Email = "  Amina@Example.ORG "

	res, err := f.svc.SubmitComment(context.Background(), in)
	require.NoError(t, err)
	c, err := f.st.GetComment(context.Background(), res.CommentID)
	require.NoError(t, err)
	require.NotNil(t, c.CitizenEmail)
	assert.Equal(t, "amina@example.org", *c.CitizenEmail)
}

func TestRepliesAreFlattenedToRoot(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	other := f.project(t, "Bridge", "published")
	ctx := context.Background()

	root, err := f.svc.SubmitComment(ctx, submission(pid, "The clinic is a good project for the ward"))
	require.NoError(t, err)

	reply := submission(pid, "I agree this is what the ward needed")
	reply.ParentID = &root.CommentID
	first, err := f.svc.SubmitComment(ctx, reply)
	require.NoError(t, err)

	nested := submission(pid, "They should add a maternity wing too")
	nested.ParentID = &first.CommentID
	second, err := f.svc.SubmitComment(ctx, nested)
	require.NoError(t, err)

	c, err := f.st.GetComment(ctx, second.CommentID)
	require.NoError(t, err)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, root.CommentID, *c.ParentID)

	cross := submission(other, "This reply is on the wrong project")
	cross.ParentID = &root.CommentID
	_, err = f.svc.SubmitComment(ctx, cross)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "parent_comment_id", ve.Field)
}

func TestProjectThreadsVisibility(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	ctx := context.Background()

	root, err := f.svc.SubmitComment(ctx, submission(pid, "The clinic is a good project for the ward"))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		f.clock.advance(time.Minute)
		r := submission(pid, "Reply number "+strings.Repeat("x", i+1)+" is here")
		r.ParentID = &root.CommentID
		_, err := f.svc.SubmitComment(ctx, r)
		require.NoError(t, err)
	}
	pending := submission(pid, "There is corruption in the tender process here")
	pending.IP = "10.0.0.9"
	_, err = f.svc.SubmitComment(ctx, pending)
	require.NoError(t, err)

	threads, err := f.svc.ProjectThreads(ctx, pid, "10.0.0.5")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Len(t, threads[0].Replies, threadReplyLimit)
	assert.Equal(t, 4, threads[0].ReplyCount)
	assert.Equal(t, "Reply number x is here", threads[0].Replies[0].Message)

	own, err := f.svc.ProjectThreads(ctx, pid, "10.0.0.9")
	require.NoError(t, err)
	assert.Len(t, own, 2)

	_, err = f.svc.ProjectThreads(ctx, pid+50, "10.0.0.5")
	require.ErrorIs(t, err, ErrProjectNotFound)
}

func TestModerationTransitions(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	ctx := context.Background()
	const admin int64 = 7

	res, err := f.svc.SubmitComment(ctx, submission(pid, "There is corruption in the tender process here"))
	require.NoError(t, err)
	id := res.CommentID

	require.NoError(t, f.svc.ApproveComment(ctx, admin, id))
	c, _ := f.st.GetComment(ctx, id)
	assert.Equal(t, models.CommentApproved, c.Status)

	require.NoError(t, f.svc.MarkGrievance(ctx, admin, id))
	c, _ = f.st.GetComment(ctx, id)
	assert.Equal(t, models.CommentGrievance, c.Status)

	var ve *ValidationError
	require.ErrorAs(t, f.svc.RespondToComment(ctx, admin, id, "  "), &ve)
	require.NoError(t, f.svc.RespondToComment(ctx, admin, id, "The tender committee will review this."))
	c, _ = f.st.GetComment(ctx, id)
	assert.Equal(t, models.CommentResponded, c.Status)
	require.NotNil(t, c.RespondedBy)
	assert.Equal(t, admin, *c.RespondedBy)

	require.NoError(t, f.svc.RejectComment(ctx, admin, id))
	require.NoError(t, f.svc.DeleteComment(ctx, admin, id))
	require.ErrorIs(t, f.svc.ApproveComment(ctx, admin, id), store.ErrNotFound)

	_, total, err := f.st.ListActivity(ctx, models.ActivityQuery{Type: "comment_deleted"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestBulkModerate(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	ctx := context.Background()

	var ids []int64
	for _, msg := range []string{"There is corruption here at the site", "Corruption is the problem with this", "The corruption must end in this county"} {
		res, err := f.svc.SubmitComment(ctx, submission(pid, msg))
		require.NoError(t, err)
		ids = append(ids, res.CommentID)
	}

	n, err := f.svc.BulkModerate(ctx, 1, ActionApprove, append(ids, 9999))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = f.svc.BulkModerate(ctx, 1, ActionDelete, ids[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.svc.BulkModerate(ctx, 1, "publish", ids)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	page, err := f.svc.ListComments(ctx, models.CommentQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 1, page.Pages)
}

func TestListCommentsPaging(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.clock.advance(time.Minute)
		_, err := f.svc.SubmitComment(ctx, submission(pid, "The clinic comment "+strings.Repeat("a", i+1)+" is here"))
		require.NoError(t, err)
	}
	page, err := f.svc.ListComments(ctx, models.CommentQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.Pages)
	assert.Len(t, page.Items, 2)

	_, err = f.svc.ListComments(ctx, models.CommentQuery{Status: "hidden"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestWordListsAndStats(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Clinic", "published")
	ctx := context.Background()

	list, err := f.svc.ReplaceWordLists(ctx, 1, []string{" thief ", "thief", ""}, []string{"bribe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"thief"}, list.Banned)
	assert.Equal(t, list, f.svc.WordLists(ctx))

	for _, msg := range []string{
		"The clinic is a good project for the ward",
		"The contractor is a thief and should leave",
		"They asked for a bribe at the gate",
		"Hi",
	} {
		_, err := f.svc.SubmitComment(ctx, submission(pid, msg))
		require.NoError(t, err)
	}

	stats, err := f.svc.FilterStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AutoApproved)
	assert.Equal(t, 1, stats.FlaggedForReview)
	assert.Equal(t, 2, stats.AutoRejected)
	assert.Equal(t, 1, stats.BannedWordsCount)
	assert.Equal(t, 1, stats.FlaggedWordsCount)
	assert.Equal(t, []string{"en", "sw"}, stats.SupportedLanguages)

	v := f.svc.PreviewFilter(ctx, "They asked for a bribe at the gate")
	assert.Equal(t, filter.StatusPendingReview, v.Status)
	page, err := f.svc.ListComments(ctx, models.CommentQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
}

func TestSubscribeVerifyUnsubscribe(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Water Pan", "published")
	ctx := context.Background()

	res, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: " Otieno@Example.org ", IP: "10.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, SubscriptionCreated, res.Outcome)
	assert.True(t, res.RequiresVerification)

	sent := f.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "otieno@example.org", sent[0].To)
	assert.Equal(t, "Verify Your Project Subscription - Water Pan", sent[0].Subject)

	sub, err := f.st.GetSubscriptionByProjectEmail(ctx, pid, "otieno@example.org")
	require.NoError(t, err)
	require.NotNil(t, sub.VerificationToken)
	assert.Contains(t, sent[0].Body, *sub.VerificationToken)

	n, err := f.svc.SubscriberCount(ctx, pid)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: "otieno@example.org"})
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	verified, err := f.svc.VerifyEmail(ctx, *sub.VerificationToken)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)
	_, err = f.svc.VerifyEmail(ctx, *sub.VerificationToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	n, err = f.svc.SubscriberCount(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, f.svc.Unsubscribe(ctx, sub.SubscriptionToken))
	require.ErrorIs(t, f.svc.Unsubscribe(ctx, sub.SubscriptionToken), ErrInvalidToken)
	require.ErrorIs(t, f.svc.Unsubscribe(ctx, ""), ErrInvalidToken)

	again, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: "otieno@example.org"})
	require.NoError(t, err)
	assert.Equal(t, SubscriptionReactivated, again.Outcome)
	assert.False(t, again.RequiresVerification)
	assert.Len(t, f.mailer.messages(), 1)

	n, err = f.svc.SubscriberCount(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReactivateWithReverification(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.ReverifyOnReactivate = true })
	pid := f.project(t, "Water Pan", "published")
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: "otieno@example.org"})
	require.NoError(t, err)
	sub, err := f.st.GetSubscriptionByProjectEmail(ctx, pid, "otieno@example.org")
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, *sub.VerificationToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.Unsubscribe(ctx, sub.SubscriptionToken))

	res, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: "otieno@example.org"})
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.Len(t, f.mailer.messages(), 2)

	n, err := f.svc.SubscriberCount(ctx, pid)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSubscribeRules(t *testing.T) {
	f := newFixture(t)
	draft := f.project(t, "Draft Road", "draft")
	ctx := context.Background()

	_, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: draft, Email: "a@example.org"})
	require.ErrorIs(t, err, ErrProjectUnavailable)
	_, err = f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: draft + 10, Email: "a@example.org"})
	require.ErrorIs(t, err, ErrProjectNotFound)
	_, err = f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: draft, Email: "Name <a@example.org>"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestSubscribeSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Water Pan", "published")
	f.mailer.failTo["down@example.org"] = true

	res, err := f.svc.Subscribe(context.Background(), SubscribeRequest{ProjectID: pid, Email: "down@example.org"})
	require.NoError(t, err)
	assert.NotZero(t, res.SubscriptionID)
}

func verifiedSubscriber(t *testing.T, f *fixture, pid int64, email string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Subscribe(ctx, SubscribeRequest{ProjectID: pid, Email: email})
	require.NoError(t, err)
	sub, err := f.st.GetSubscriptionByProjectEmail(ctx, pid, email)
	require.NoError(t, err)
	_, err = f.svc.VerifyEmail(ctx, *sub.VerificationToken)
	require.NoError(t, err)
}

func TestSendProjectUpdatePartialFailure(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Water Pan", "published")
	ctx := context.Background()

	emails := []string{"a@example.org", "b@example.org", "c@example.org", "d@example.org", "e@example.org"}
	for _, e := range emails {
		verifiedSubscriber(t, f, pid, e)
	}
	f.mailer.failTo["c@example.org"] = true
	before := len(f.mailer.messages())

	admin := int64(3)
	res, err := f.svc.SendProjectUpdate(ctx, &admin, pid, "milestone", "Phase one <done>\nPhase two next")
	require.NoError(t, err)
	assert.Equal(t, 5, res.Eligible)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.NotEmpty(t, res.BatchID)

	sent := f.mailer.messages()[before:]
	require.Len(t, sent, 4)
	for _, m := range sent {
		assert.Equal(t, "Milestone Reached: Water Pan", m.Subject)
		assert.Contains(t, m.Body, "Phase one &lt;done&gt;<br>")
		assert.Contains(t, m.Body, "https://projects.county.example/projects/")
	}

	logged, err := f.st.CountNotifications(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 4, logged)

	failed, err := f.st.GetSubscriptionByProjectEmail(ctx, pid, "c@example.org")
	require.NoError(t, err)
	assert.Nil(t, failed.LastNotificationSent)
	ok, err := f.st.GetSubscriptionByProjectEmail(ctx, pid, "a@example.org")
	require.NoError(t, err)
	assert.NotNil(t, ok.LastNotificationSent)

	_, total, err := f.st.ListActivity(ctx, models.ActivityQuery{Type: "notification_sent"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSendProjectUpdateWithoutSubscribers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SendProjectUpdate(ctx, nil, 424242, "status_change", "anything")
	require.NoError(t, err)
	assert.Zero(t, res.Eligible)
	assert.Empty(t, res.BatchID)
	assert.Empty(t, f.mailer.messages())
}

func TestSendProjectUpdateUnknownTypeFallsBack(t *testing.T) {
	f := newFixture(t)
	pid := f.project(t, "Water Pan", "published")
	verifiedSubscriber(t, f, pid, "a@example.org")

	res, err := f.svc.SendProjectUpdate(context.Background(), nil, pid, "celebration", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	msgs := f.mailer.messages()
	assert.Equal(t, "Project Update: Water Pan", msgs[len(msgs)-1].Subject)
}
