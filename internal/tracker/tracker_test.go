package tracker_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/priyadarshi7/ZenLearn/internal/ai"
	"github.com/priyadarshi7/ZenLearn/internal/ai/mock"
	"github.com/priyadarshi7/ZenLearn/internal/artifact"
	"github.com/priyadarshi7/ZenLearn/internal/events"
	"github.com/priyadarshi7/ZenLearn/internal/store"
	"github.com/priyadarshi7/ZenLearn/internal/tracker"
	"github.com/priyadarshi7/ZenLearn/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tracker     *tracker.Tracker
	store       *store.MemoryStore
	artifacts   *artifact.Store
	bus         *events.Bus
	uploadDir   string
	transcriber *mock.MockTranscriber
	generator   *mock.MockGenerator
	synthesizer *mock.MockSynthesizer
}

type fixtureOpts struct {
	transcriber  *mock.MockTranscriber
	generator    *mock.MockGenerator
	synthesizer  *mock.MockSynthesizer
	workers      int
	queueSize    int
	stageTimeout time.Duration
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()
	if o.transcriber == nil {
		o.transcriber = mock.NewMockTranscriber("AI is reshaping how we learn")
	}
	if o.generator == nil {
		o.generator = mock.NewMockGenerator("[excited] Great talk!")
	}
	if o.synthesizer == nil {
		o.synthesizer = mock.NewMockSynthesizer([]byte("ID3-reaction"))
	}
	if o.workers == 0 {
		o.workers = 2
	}
	if o.queueSize == 0 {
		o.queueSize = 16
	}
	if o.stageTimeout == 0 {
		o.stageTimeout = 5 * time.Second
	}

	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	artifacts, err := artifact.NewStore(uploadDir, filepath.Join(root, "reactions"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	bus := events.NewBus()
	pipeline := tracker.NewPipeline(tracker.PipelineConfig{
		Transcriber:     o.transcriber,
		Generator:       o.generator,
		Synthesizer:     o.synthesizer,
		Artifacts:       artifacts,
		FallbackEmotion: "interested",
		StageTimeout:    o.stageTimeout,
	})
	tr := tracker.New(tracker.Config{
		Workers:   o.workers,
		QueueSize: o.queueSize,
		StatusTTL: time.Minute,
	}, st, nil, bus, artifacts, pipeline)

	return &fixture{
		tracker:     tr,
		store:       st,
		artifacts:   artifacts,
		bus:         bus,
		uploadDir:   uploadDir,
		transcriber: o.transcriber,
		generator:   o.generator,
		synthesizer: o.synthesizer,
	}
}

// submit submits work and releases it to the workers.
func (f *fixture) submit(t *testing.T, work tracker.Work) *models.Job {
	t.Helper()
	job, dispatch, err := f.tracker.Submit(context.Background(), work)
	require.NoError(t, err)
	dispatch()
	return job
}

func (f *fixture) hasReaction(id uuid.UUID) bool {
	fh, err := f.artifacts.OpenReaction(artifact.ReactionName(id))
	if err != nil {
		return false
	}
	fh.Close()
	return true
}

// start runs the worker pool until the test ends.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.tracker.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func clip(name string) tracker.Work {
	return tracker.Work{Filename: name, Audio: strings.NewReader("fake-mp3-bytes")}
}

func waitTerminal(t *testing.T, tr *tracker.Tracker, id uuid.UUID) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = tr.GetStatus(context.Background(), id.String())
		return err == nil && models.IsTerminal(job.Status)
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestSubmit_ReturnsSubmittedAndIsQueryable(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.start(t)

	job, dispatch, err := f.tracker.Submit(context.Background(), tracker.Work{
		Filename: "talk.mp3",
		Voice:    "voice-1",
		Audio:    strings.NewReader("fake"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, models.JobStatusSubmitted, job.Status)
	assert.Equal(t, "voice-1", job.Voice)

	got, err := f.tracker.GetStatus(context.Background(), job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSubmitted, got.Status)
	assert.Nil(t, got.Result)

	_, err = os.Stat(got.InputFile)
	assert.NoError(t, err, "upload should be stored")
	assert.Equal(t, job.ID.String()+"_talk.mp3", filepath.Base(got.InputFile))

	dispatch()
	assert.Equal(t, models.JobStatusCompleted, waitTerminal(t, f.tracker, job.ID).Status)
}

func TestSubmit_StatusStaysSubmittedUntilDispatch(t *testing.T) {
	f := newFixture(t, fixtureOpts{workers: 4, queueSize: 300})
	f.start(t)

	var ids []uuid.UUID
	var dispatches []func()
	for i := 0; i < 300; i++ {
		job, dispatch, err := f.tracker.Submit(context.Background(), clip("talk.mp3"))
		require.NoError(t, err)

		got, err := f.tracker.GetStatus(context.Background(), job.ID.String())
		require.NoError(t, err)
		require.Equal(t, models.JobStatusSubmitted, got.Status, "job %d", i)

		ids = append(ids, job.ID)
		dispatches = append(dispatches, dispatch)
	}
	assert.Zero(t, f.transcriber.Calls.Load())

	for _, dispatch := range dispatches {
		dispatch()
		dispatch()
	}
	for _, id := range ids {
		assert.Equal(t, models.JobStatusCompleted, waitTerminal(t, f.tracker, id).Status)
	}
}

func TestSubmit_DefaultVoiceRecorded(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	job := f.submit(t, clip("talk.mp3"))
	assert.Equal(t, "mock-voice", job.Voice)
}

func TestSubmit_CreateFailureRemovesUpload(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.tracker = tracker.New(tracker.Config{Workers: 1, QueueSize: 4}, failingStore{f.store}, nil, f.bus, f.artifacts,
		tracker.NewPipeline(tracker.PipelineConfig{
			Transcriber: f.transcriber,
			Generator:   f.generator,
			Synthesizer: f.synthesizer,
			Artifacts:   f.artifacts,
		}))

	_, _, err := f.tracker.Submit(context.Background(), clip("talk.mp3"))
	require.Error(t, err)

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingStore struct {
	*store.MemoryStore
}

func (failingStore) CreateJob(_ context.Context, _ *models.Job) error {
	return errors.New("database is read-only")
}

func TestSubmit_UppercaseExtensionAccepted(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	_, _, err := f.tracker.Submit(context.Background(), clip("TALK.MP3"))
	assert.NoError(t, err)
}

func TestSubmit_RejectsNonMP3BeforeWriting(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, _, err := f.tracker.Submit(context.Background(), clip("talk.wav"))
	assert.ErrorIs(t, err, tracker.ErrUnsupportedFormat)

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, f.transcriber.Calls.Load())
}

func TestGetStatus_NotFound(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	for _, id := range []string{"", "not-a-uuid", uuid.NewString()} {
		_, err := f.tracker.GetStatus(context.Background(), id)
		assert.ErrorIs(t, err, tracker.ErrNotFound, "id %q", id)
	}
}

func TestRun_CompletesJob(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.start(t)

	job := f.submit(t, clip("talk.mp3"))

	done := waitTerminal(t, f.tracker, job.ID)
	require.Equal(t, models.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Nil(t, done.ErrorMessage)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	res := done.Result
	assert.Equal(t, "AI is reshaping how we learn", res.Transcript)
	assert.Equal(t, "excited", res.Emotion)
	assert.Equal(t, "Great talk!", res.ReactionText)
	assert.Equal(t, artifact.ReactionName(job.ID), res.AudioFile)
	assert.Equal(t, "/reactions/"+res.AudioFile, res.AudioURL)
	assert.GreaterOrEqual(t, res.ProcessingTime, 0.0)

	fh, err := f.artifacts.OpenReaction(res.AudioFile)
	require.NoError(t, err)
	defer fh.Close()
	data, _ := io.ReadAll(fh)
	assert.Equal(t, "ID3-reaction", string(data))
}

func TestRun_SynthesizesWithJobVoice(t *testing.T) {
	var gotVoice, gotText string
	syn := &mock.MockSynthesizer{
		Name_: "recording",
		SynthesizeFunc: func(_ context.Context, text, voiceID string) (io.ReadCloser, error) {
			gotText, gotVoice = text, voiceID
			return io.NopCloser(strings.NewReader("audio")), nil
		},
	}
	f := newFixture(t, fixtureOpts{synthesizer: syn})
	f.start(t)

	job := f.submit(t, tracker.Work{
		Filename: "talk.mp3", Voice: "custom-voice", Audio: strings.NewReader("x"),
	})
	waitTerminal(t, f.tracker, job.ID)

	assert.Equal(t, "custom-voice", gotVoice)
	assert.Equal(t, "Great talk!", gotText)
}

func TestRun_FallbackEmotionWhenUnlabelled(t *testing.T) {
	f := newFixture(t, fixtureOpts{generator: mock.NewMockGenerator("nice job")})
	f.start(t)

	job := f.submit(t, clip("talk.mp3"))

	done := waitTerminal(t, f.tracker, job.ID)
	require.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, "interested", done.Result.Emotion)
	assert.Equal(t, "nice job", done.Result.ReactionText)
}

func TestRun_SynthesisFailureLeavesNoArtifact(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		synthesizer: mock.NewFailingSynthesizer(errors.New("quota exceeded")),
	})
	f.start(t)

	job := f.submit(t, clip("talk.mp3"))

	done := waitTerminal(t, f.tracker, job.ID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.ErrorMessage)
	assert.True(t, strings.HasPrefix(*done.ErrorMessage, "speech synthesis failed:"), *done.ErrorMessage)
	assert.Contains(t, *done.ErrorMessage, "quota exceeded")
	assert.Nil(t, done.Result)
	assert.False(t, f.hasReaction(job.ID))
}

func TestRun_TranscriptionFailureStopsPipeline(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		transcriber: mock.NewFailingTranscriber(ai.ErrProviderUnavailable),
	})
	f.start(t)

	job := f.submit(t, clip("talk.mp3"))

	done := waitTerminal(t, f.tracker, job.ID)
	assert.Equal(t, models.JobStatusFailed, done.Status)
	require.NotNil(t, done.ErrorMessage)
	assert.True(t, strings.HasPrefix(*done.ErrorMessage, "transcription failed:"))
	assert.Zero(t, f.generator.Calls.Load())
	assert.Zero(t, f.synthesizer.Calls.Load())
}

func TestRun_GenerationFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		generator: mock.NewFailingGenerator(ai.ErrInvalidResponse),
	})
	f.start(t)

	job := f.submit(t, clip("talk.mp3"))

	done := waitTerminal(t, f.tracker, job.ID)
	require.NotNil(t, done.ErrorMessage)
	assert.True(t, strings.HasPrefix(*done.ErrorMessage, "reaction generation failed:"))
}

func TestRun_PanicIsIsolated(t *testing.T) {
	var once sync.Once
	tr := &mock.MockTranscriber{
		Name_: "panicky",
		TranscribeFunc: func(_ context.Context, _ string) (string, error) {
			panicked := false
			once.Do(func() { panicked = true })
			if panicked {
				panic("decoder exploded")
			}
			return "second clip", nil
		},
	}
	f := newFixture(t, fixtureOpts{transcriber: tr, workers: 1})
	f.start(t)

	first := f.submit(t, clip("a.mp3"))
	second := f.submit(t, clip("b.mp3"))

	failed := waitTerminal(t, f.tracker, first.ID)
	assert.Equal(t, models.JobStatusFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "panic: decoder exploded")

	ok := waitTerminal(t, f.tracker, second.ID)
	assert.Equal(t, models.JobStatusCompleted, ok.Status)
}

func TestRun_StatusIsMonotonic(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, fixtureOpts{
		transcriber: mock.NewBlockingTranscriber("hello", release),
	})

	job := f.submit(t, clip("talk.mp3"))

	updates, cancel := f.bus.Subscribe(job.ID)
	defer cancel()

	f.start(t)

	var seen []string
	observe := func() {
		j, err := f.tracker.GetStatus(context.Background(), job.ID.String())
		require.NoError(t, err)
		if len(seen) == 0 || seen[len(seen)-1] != j.Status {
			seen = append(seen, j.Status)
		}
	}

	require.Eventually(t, func() bool {
		observe()
		return seen[len(seen)-1] == models.JobStatusProcessing
	}, 5*time.Second, 2*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		observe()
		return models.IsTerminal(seen[len(seen)-1])
	}, 5*time.Second, 2*time.Millisecond)

	for i := 1; i < len(seen); i++ {
		assert.Greater(t, models.StatusRank(seen[i]), models.StatusRank(seen[i-1]), "statuses %v", seen)
	}

	var published []string
	for len(published) < 2 {
		select {
		case ev := <-updates:
			published = append(published, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("missing status events, got %v", published)
		}
	}
	assert.Equal(t, []string{models.JobStatusProcessing, models.JobStatusCompleted}, published)
}

func TestSubmit_QueueFull(t *testing.T) {
	f := newFixture(t, fixtureOpts{queueSize: 1})

	f.submit(t, clip("a.mp3"))

	job, dispatch, err := f.tracker.Submit(context.Background(), clip("b.mp3"))
	assert.ErrorIs(t, err, tracker.ErrQueueFull)
	assert.Nil(t, job)
	assert.Nil(t, dispatch)
}

func TestRun_ShutdownFailsQueuedJobs(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	job := f.submit(t, clip("talk.mp3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.tracker.Run(ctx))

	got, err := f.tracker.GetStatus(context.Background(), job.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "service shutting down", *got.ErrorMessage)
	assert.Zero(t, f.transcriber.Calls.Load())

	_, _, err = f.tracker.Submit(context.Background(), clip("late.mp3"))
	assert.ErrorIs(t, err, tracker.ErrShuttingDown)
}

func TestRun_ManyJobsComplete(t *testing.T) {
	f := newFixture(t, fixtureOpts{workers: 3})
	f.start(t)

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		job := f.submit(t, clip("talk.mp3"))
		ids = append(ids, job.ID)
	}

	for _, id := range ids {
		done := waitTerminal(t, f.tracker, id)
		assert.Equal(t, models.JobStatusCompleted, done.Status)
		assert.True(t, f.hasReaction(id))
	}
}

func TestProcess_ReturnsResult(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	res, err := f.tracker.Process(context.Background(), clip("talk.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "excited", res.Emotion)
	assert.Equal(t, "Great talk!", res.ReactionText)
	assert.True(t, strings.HasPrefix(res.AudioFile, "audience_reaction_"))

	fh, err := f.artifacts.OpenReaction(res.AudioFile)
	require.NoError(t, err)
	fh.Close()
}

func TestProcess_RejectsNonMP3(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	_, err := f.tracker.Process(context.Background(), clip("notes.txt"))
	assert.ErrorIs(t, err, tracker.ErrUnsupportedFormat)
}

func TestProcess_StageTimeout(t *testing.T) {
	f := newFixture(t, fixtureOpts{
		transcriber:  mock.NewTimeoutTranscriber(),
		stageTimeout: 20 * time.Millisecond,
	})

	_, err := f.tracker.Process(context.Background(), clip("talk.mp3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, tracker.ErrStageTimeout)
	assert.True(t, strings.HasPrefix(err.Error(), "transcription failed:"))
}

func TestProcess_SaveFailure(t *testing.T) {
	broken := &mock.MockSynthesizer{
		Name_: "broken-stream",
		SynthesizeFunc: func(_ context.Context, _, _ string) (io.ReadCloser, error) {
			return io.NopCloser(errReader{}), nil
		},
	}
	f := newFixture(t, fixtureOpts{synthesizer: broken})

	_, err := f.tracker.Process(context.Background(), clip("talk.mp3"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "saving artifact failed:"), err.Error())
	assert.NotErrorIs(t, err, tracker.ErrStageTimeout)
}

func TestProcess_SaveTimeoutIsStageTimeout(t *testing.T) {
	stalled := &mock.MockSynthesizer{
		Name_: "stalled-stream",
		SynthesizeFunc: func(ctx context.Context, _, _ string) (io.ReadCloser, error) {
			return io.NopCloser(ctxReader{ctx}), nil
		},
	}
	f := newFixture(t, fixtureOpts{synthesizer: stalled, stageTimeout: 20 * time.Millisecond})

	_, err := f.tracker.Process(context.Background(), clip("talk.mp3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, tracker.ErrStageTimeout)
	assert.True(t, strings.HasPrefix(err.Error(), "saving artifact failed:"), err.Error())
}

// ctxReader blocks until its context ends, like a body that stops arriving.
type ctxReader struct{ ctx context.Context }

func (r ctxReader) Read(_ []byte) (int, error) {
	<-r.ctx.Done()
	return 0, r.ctx.Err()
}

type errReader struct{}

func (errReader) Read(_ []byte) (int, error) { return 0, errors.New("connection reset") }
