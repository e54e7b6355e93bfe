package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/storyreel/internal/continuity"
	"github.com/storyreel/storyreel/internal/domain"
	"github.com/storyreel/storyreel/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeGenerator scripts per-scene failures by SceneID and records every
// generation request. An empty failure queue means success.
type fakeGenerator struct {
	mu          sync.Mutex
	requests    []domain.GenerationRequest
	failures    map[string][]error
	downloadErr error
	onCall      func(req domain.GenerationRequest) error
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{failures: make(map[string][]error)}
}

func (g *fakeGenerator) failWith(sceneID string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[sceneID] = append(g.failures[sceneID], errs...)
}

func (g *fakeGenerator) ImageToVideo(_ context.Context, req domain.GenerationRequest) (domain.ArtifactHandle, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	var err error
	if queue := g.failures[req.SceneID]; len(queue) > 0 {
		err, g.failures[req.SceneID] = queue[0], queue[1:]
	}
	onCall := g.onCall
	g.mu.Unlock()

	if onCall != nil {
		if hookErr := onCall(req); hookErr != nil {
			return domain.ArtifactHandle{}, hookErr
		}
	}
	if err != nil {
		return domain.ArtifactHandle{}, err
	}
	return domain.ArtifactHandle{
		URI:  "https://files.example.com/" + req.SceneID,
		Name: "op-" + req.SceneID,
	}, nil
}

func (g *fakeGenerator) DownloadArtifact(_ context.Context, handle domain.ArtifactHandle, destDir string) (string, error) {
	g.mu.Lock()
	err := g.downloadErr
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	return filepath.Join(destDir, handle.Name+".mp4"), nil
}

func (g *fakeGenerator) requestsFor(sceneID string) []domain.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.GenerationRequest
	for _, req := range g.requests {
		if req.SceneID == sceneID {
			out = append(out, req)
		}
	}
	return out
}

func (g *fakeGenerator) allRequests() []domain.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.GenerationRequest(nil), g.requests...)
}

type frameCall struct {
	artifactPath string
	frameIndex   int
}

type fakeFrames struct {
	mu    sync.Mutex
	calls []frameCall
	err   error
}

func (f *fakeFrames) ExtractFrame(_ context.Context, artifactPath string, frameIndex int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, frameCall{artifactPath: artifactPath, frameIndex: frameIndex})
	if f.err != nil {
		return "", f.err
	}
	return artifactPath + ".frame.png", nil
}

func (f *fakeFrames) callList() []frameCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]frameCall(nil), f.calls...)
}

type fakeMuxer struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (m *fakeMuxer) Concatenate(_ context.Context, orderedPaths []string, outputPath string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string(nil), orderedPaths...))
	if m.err != nil {
		return "", m.err
	}
	return outputPath, nil
}

func (m *fakeMuxer) callList() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}

type spyLimiter struct {
	mu       sync.Mutex
	acquired int
}

func (l *spyLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.acquired++
	l.mu.Unlock()
	return ctx.Err()
}

func (l *spyLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

type spyJudge struct {
	mu       sync.Mutex
	pairs    [][2]string
	judgment continuity.Judgment
}

func (j *spyJudge) JudgeContinuity(_ context.Context, prev, curr domain.SceneMeta) (continuity.Judgment, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pairs = append(j.pairs, [2]string{prev.SceneID, curr.SceneID})
	return j.judgment, nil
}

func (j *spyJudge) pairList() [][2]string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([][2]string(nil), j.pairs...)
}

type progressRecorder struct {
	mu      sync.Mutex
	updates []string
}

func (r *progressRecorder) Progress(pct int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, fmt.Sprintf("%d%% %s", pct, message))
}

func (r *progressRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updates...)
}

func newSceneJob(id string) domain.SceneJob {
	return domain.SceneJob{
		SceneID:   id,
		Meta:      domain.SceneMeta{SceneID: id, Title: "Scene " + id},
		ImagePath: filepath.Join("in", id+".png"),
		Params:    domain.GenerationParams{DurationSeconds: 8},
	}
}

func renderRequest(t *testing.T, opts domain.RenderOptions, scenes ...domain.SceneJob) *domain.RenderRequest {
	t.Helper()
	req, err := domain.NewRenderRequest("test request", scenes, opts)
	require.NoError(t, err)
	return req
}

func newTestPipeline(t *testing.T, deps Deps, mutate func(*Config)) *Pipeline {
	t.Helper()
	cfg := DefaultConfig()
	cfg.OutputDir = t.TempDir()
	cfg.Retry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, BackoffFactor: 1}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(deps, cfg, testLogger())
	require.NoError(t, err)
	return p
}

func runDir(p *Pipeline, req *domain.RenderRequest) string {
	return filepath.Join(p.config.OutputDir, req.ID.String())
}

func artifactPath(p *Pipeline, req *domain.RenderRequest, sceneID string) string {
	return filepath.Join(runDir(p, req), "op-"+sceneID+".mp4")
}

func svcError(kind domain.ErrorKind) *domain.ServiceError {
	return domain.NewServiceError(kind, "veo", "poll", "", string(kind)+" failure")
}

func TestNew(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{}
	mux := &fakeMuxer{}

	t.Run("requires generator", func(t *testing.T) {
		_, err := New(Deps{Frames: frames, Muxer: mux}, Config{}, testLogger())
		assert.ErrorIs(t, err, ErrNilGenerator)
	})

	t.Run("requires frame extractor", func(t *testing.T) {
		_, err := New(Deps{Generator: gen, Muxer: mux}, Config{}, testLogger())
		assert.ErrorIs(t, err, ErrNilFrameExtractor)
	})

	t.Run("requires muxer", func(t *testing.T) {
		_, err := New(Deps{Generator: gen, Frames: frames}, Config{}, testLogger())
		assert.ErrorIs(t, err, ErrNilMuxer)
	})

	t.Run("requires logger", func(t *testing.T) {
		_, err := New(Deps{Generator: gen, Frames: frames, Muxer: mux}, Config{}, nil)
		assert.ErrorIs(t, err, ErrNilLogger)
	})

	t.Run("applies config defaults", func(t *testing.T) {
		p, err := New(Deps{Generator: gen, Frames: frames, Muxer: mux}, Config{}, testLogger())
		require.NoError(t, err)
		assert.Equal(t, 2, p.config.MaxConcurrentClips)
		assert.Equal(t, "out", p.config.OutputDir)
	})
}

func TestRun_NoScenes(t *testing.T) {
	p := newTestPipeline(t, Deps{Generator: newFakeGenerator(), Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	_, err := p.Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrNoScenes)

	_, err = p.Run(context.Background(), &domain.RenderRequest{}, nil)
	assert.ErrorIs(t, err, domain.ErrNoScenes)
}

func TestRun_ParallelFailureIndependence(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("s2", svcError(domain.ErrorKindContentPolicy))
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	req := renderRequest(t, domain.RenderOptions{},
		newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"), newSceneJob("s4"), newSceneJob("s5"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 5)
	for i, outcome := range report.Outcomes {
		assert.Equal(t, req.Scenes[i].SceneID, outcome.SceneID)
		assert.Equal(t, i, outcome.Position)
	}
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"s2"}, report.FailedScenes)

	failed := report.Outcomes[1]
	assert.False(t, failed.Success)
	require.NotNil(t, failed.Err)
	assert.Equal(t, domain.ErrorKindContentPolicy, failed.Err.Kind)
	assert.Equal(t, 1, failed.Attempts)

	first := report.Outcomes[0]
	assert.True(t, first.Success)
	assert.Equal(t, artifactPath(p, req, "s1"), first.Artifact)
	assert.Equal(t, 8, first.Params.DurationSeconds)
}

func TestRun_SequentialContinuity(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: &fakeMuxer{}}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true},
		newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)

	reqs := gen.allRequests()
	require.Len(t, reqs, 3)
	assert.Equal(t, []string{filepath.Join("in", "s1.png")}, reqs[0].ImagePaths)

	firstArtifact := artifactPath(p, req, "s1")
	secondArtifact := artifactPath(p, req, "s2")
	assert.Equal(t, []string{filepath.Join("in", "s2.png"), firstArtifact + ".frame.png"}, reqs[1].ImagePaths)
	assert.Equal(t, []string{filepath.Join("in", "s3.png"), secondArtifact + ".frame.png"}, reqs[2].ImagePaths)

	calls := frames.callList()
	require.Len(t, calls, 2)
	assert.Equal(t, frameCall{artifactPath: firstArtifact, frameIndex: -1}, calls[0])
	assert.Equal(t, frameCall{artifactPath: secondArtifact, frameIndex: -1}, calls[1])
}

func TestRun_SequentialFailureResetsContinuity(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("s2", svcError(domain.ErrorKindInvalidInput))
	frames := &fakeFrames{}
	judge := &spyJudge{judgment: continuity.Judgment{
		UsePrevFrame:   true,
		Classification: continuity.ClassificationContinuousScene,
		Confidence:     0.9,
	}}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: &fakeMuxer{}, Judge: judge}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true, SmartJudge: true},
		newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"s2"}, report.FailedScenes)

	// The failed scene breaks the chain: s3 is generated from its own image
	// alone and the judge never sees the s2/s3 pair.
	assert.Equal(t, [][2]string{{"s1", "s2"}}, judge.pairList())
	thirdReqs := gen.requestsFor("s3")
	require.Len(t, thirdReqs, 1)
	assert.Equal(t, []string{filepath.Join("in", "s3.png")}, thirdReqs[0].ImagePaths)
	assert.Len(t, frames.callList(), 1)
}

func TestRun_JudgeDeclinesContinuity(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{}
	judge := &spyJudge{judgment: continuity.Judgment{
		UsePrevFrame:   false,
		Classification: continuity.ClassificationDifferentScene,
		Confidence:     0.8,
	}}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: &fakeMuxer{}, Judge: judge}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true, SmartJudge: true},
		newSceneJob("s1"), newSceneJob("s2"))
	_, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, [][2]string{{"s1", "s2"}}, judge.pairList())
	assert.Empty(t, frames.callList())
	secondReqs := gen.requestsFor("s2")
	require.Len(t, secondReqs, 1)
	assert.Len(t, secondReqs[0].ImagePaths, 1)
}

func TestRun_SmartJudgeDisabledUsesDefault(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{}
	judge := &spyJudge{judgment: continuity.Judgment{UsePrevFrame: false}}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: &fakeMuxer{}, Judge: judge}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true},
		newSceneJob("s1"), newSceneJob("s2"))
	_, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	// Judge configured but not requested: the default (use the frame)
	// applies and the judge is never consulted.
	assert.Empty(t, judge.pairList())
	secondReqs := gen.requestsFor("s2")
	require.Len(t, secondReqs, 1)
	assert.Len(t, secondReqs[0].ImagePaths, 2)
}

func TestRun_ContinuityFrameExtractionFailureDegrades(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{err: errors.New("no frame produced")}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: &fakeMuxer{}}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true},
		newSceneJob("s1"), newSceneJob("s2"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	// Extraction failure is not a scene failure: s2 still renders, from its
	// own image alone.
	assert.Equal(t, 2, report.Succeeded)
	secondReqs := gen.requestsFor("s2")
	require.Len(t, secondReqs, 1)
	assert.Len(t, secondReqs[0].ImagePaths, 1)
}

func TestRun_HierarchicalSceneMuxesParentAndSubs(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("hero/wide", svcError(domain.ErrorKindContentPolicy))
	frames := &fakeFrames{}
	mux := &fakeMuxer{}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: mux}, nil)

	job := newSceneJob("hero")
	job.SubShots = []domain.SubShot{
		{Label: "closeup", Prompt: "A tight closeup.", Params: domain.GenerationParams{DurationSeconds: 4}},
		{Label: "wide", Prompt: "A wide angle."},
		{Label: "aerial", Prompt: "An aerial view."},
	}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.True(t, outcome.Success)
	parent := artifactPath(p, req, "hero")
	assert.Equal(t, parent, outcome.ParentArtifact)
	assert.Equal(t, filepath.Join(runDir(p, req), "hero-final.mp4"), outcome.Artifact)
	assert.Equal(t, []string{"wide"}, outcome.FailedSubItems)

	require.Len(t, outcome.SubOutcomes, 3)
	assert.Equal(t, "closeup", outcome.SubOutcomes[0].Label)
	assert.True(t, outcome.SubOutcomes[0].Success)
	assert.False(t, outcome.SubOutcomes[1].Success)
	require.NotNil(t, outcome.SubOutcomes[1].Err)
	assert.Equal(t, domain.ErrorKindContentPolicy, outcome.SubOutcomes[1].Err.Kind)
	assert.True(t, outcome.SubOutcomes[2].Success)

	// Concat order: parent first, then surviving subs in declaration order.
	muxCalls := mux.callList()
	require.Len(t, muxCalls, 1)
	assert.Equal(t, []string{
		parent,
		artifactPath(p, req, "hero/closeup"),
		artifactPath(p, req, "hero/aerial"),
	}, muxCalls[0])

	calls := frames.callList()
	require.Len(t, calls, 1)
	assert.Equal(t, frameCall{artifactPath: parent, frameIndex: -1}, calls[0])

	closeupReqs := gen.requestsFor("hero/closeup")
	require.Len(t, closeupReqs, 1)
	assert.Equal(t, []string{parent + ".frame.png"}, closeupReqs[0].ImagePaths)
	assert.Equal(t, "A tight closeup.", closeupReqs[0].Prompt)
	assert.Equal(t, 4, closeupReqs[0].Params.DurationSeconds)

	wideReqs := gen.requestsFor("hero/wide")
	require.Len(t, wideReqs, 1)
	assert.Equal(t, 8, wideReqs[0].Params.DurationSeconds)
}

func TestRun_MuxFailureFailsSceneKeepsParent(t *testing.T) {
	gen := newFakeGenerator()
	mux := &fakeMuxer{err: errors.New("concat demuxer rejected input")}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: mux}, nil)

	job := newSceneJob("hero")
	job.SubShots = []domain.SubShot{{Label: "closeup", Prompt: "A tight closeup."}}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.False(t, outcome.Success)
	assert.Empty(t, outcome.Artifact)
	assert.Equal(t, artifactPath(p, req, "hero"), outcome.ParentArtifact)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, domain.ErrorKindMuxFailure, outcome.Err.Kind)
	assert.Equal(t, "ffmpeg", outcome.Err.Service)
	assert.Equal(t, "mux", outcome.Err.Stage)
}

func TestRun_SubShotFrameExtractionDegradesToParent(t *testing.T) {
	gen := newFakeGenerator()
	frames := &fakeFrames{err: errors.New("no frame produced")}
	mux := &fakeMuxer{}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: frames, Muxer: mux}, nil)

	job := newSceneJob("hero")
	job.SubShots = []domain.SubShot{
		{Label: "closeup", Prompt: "A tight closeup."},
		{Label: "wide", Prompt: "A wide angle."},
	}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.True(t, outcome.Success)
	parent := artifactPath(p, req, "hero")
	assert.Equal(t, parent, outcome.Artifact)
	assert.Equal(t, parent, outcome.ParentArtifact)
	assert.Equal(t, []string{"closeup", "wide"}, outcome.FailedSubItems)
	require.Len(t, outcome.SubOutcomes, 2)
	for _, sub := range outcome.SubOutcomes {
		require.NotNil(t, sub.Err)
		assert.Equal(t, "ffmpeg", sub.Err.Service)
		assert.Equal(t, "extract", sub.Err.Stage)
	}

	// Only the parent clip was generated, and nothing was muxed.
	assert.Len(t, gen.allRequests(), 1)
	assert.Empty(t, mux.callList())
}

func TestRun_AllSubsFailKeepsParentWithoutMux(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("hero/closeup", svcError(domain.ErrorKindContentPolicy))
	gen.failWith("hero/wide", svcError(domain.ErrorKindInvalidInput))
	mux := &fakeMuxer{}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: mux}, nil)

	job := newSceneJob("hero")
	job.SubShots = []domain.SubShot{
		{Label: "closeup", Prompt: "A tight closeup."},
		{Label: "wide", Prompt: "A wide angle."},
	}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.True(t, outcome.Success)
	assert.Equal(t, artifactPath(p, req, "hero"), outcome.Artifact)
	assert.Equal(t, []string{"closeup", "wide"}, outcome.FailedSubItems)
	assert.Empty(t, mux.callList())
}

func TestRun_AudioRejectionStripsDialogueOnRetry(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("talky", svcError(domain.ErrorKindAudioRejected))
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	job := newSceneJob("talky")
	job.Meta.DialogueLines = []string{"We need to move.", "Now."}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)

	reqs := gen.requestsFor("talky")
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Prompt, `Spoken dialogue: "We need to move." / "Now."`)
	assert.NotContains(t, reqs[1].Prompt, "Spoken dialogue")
}

func TestRun_SecondAudioRejectionIsTerminal(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("talky", svcError(domain.ErrorKindAudioRejected), svcError(domain.ErrorKindAudioRejected))
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	job := newSceneJob("talky")
	job.Meta.DialogueLines = []string{"We need to move."}
	req := renderRequest(t, domain.RenderOptions{}, job)
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, domain.ErrorKindAudioRejected, outcome.Err.Kind)
	assert.Len(t, gen.requestsFor("talky"), 2)
}

func TestRun_RetryExhaustionReportsExhaustedKind(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("flaky", svcError(domain.ErrorKindRateLimited), svcError(domain.ErrorKindRateLimited))
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, func(cfg *Config) {
		cfg.Retry.MaxAttempts = 2
	})

	req := renderRequest(t, domain.RenderOptions{}, newSceneJob("flaky"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.False(t, outcome.Success)
	assert.Equal(t, 2, outcome.Attempts)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, domain.ErrorKindExhausted, outcome.Err.Kind)
	assert.Equal(t, "veo", outcome.Err.Service)
	assert.Equal(t, "poll", outcome.Err.Stage)
	assert.ErrorIs(t, outcome.Err, retry.ErrExhausted)
}

func TestRun_DownloadFailureClassifiedByCause(t *testing.T) {
	gen := newFakeGenerator()
	gen.downloadErr = domain.NewServiceError(domain.ErrorKindInvalidInput, "veo", "download", "", "file expired")
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	req := renderRequest(t, domain.RenderOptions{}, newSceneJob("s1"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	outcome := report.Outcomes[0]
	assert.False(t, outcome.Success)
	require.NotNil(t, outcome.Err)
	assert.Equal(t, domain.ErrorKindInvalidInput, outcome.Err.Kind)
	assert.Equal(t, "download", outcome.Err.Stage)
}

func TestRun_RateLimiterAcquiredPerAttempt(t *testing.T) {
	gen := newFakeGenerator()
	gen.failWith("s1", svcError(domain.ErrorKindNetwork))
	limiter := &spyLimiter{}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}, Limiter: limiter}, nil)

	req := renderRequest(t, domain.RenderOptions{}, newSceneJob("s1"))
	report, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Outcomes[0].Attempts)
	// One acquisition per generation attempt; downloads are not limited.
	assert.Equal(t, 2, limiter.count())
}

func TestRun_CancellationStopsSequentialRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := newFakeGenerator()
	gen.onCall = func(req domain.GenerationRequest) error {
		if req.SceneID == "s2" {
			cancel()
			return context.Canceled
		}
		return nil
	}
	p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

	req := renderRequest(t, domain.RenderOptions{Continuity: true},
		newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"))
	report, err := p.Run(ctx, req, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
	assert.Empty(t, gen.requestsFor("s3"))
}

func TestRun_Progress(t *testing.T) {
	t.Run("sequential", func(t *testing.T) {
		gen := newFakeGenerator()
		recorder := &progressRecorder{}
		p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

		req := renderRequest(t, domain.RenderOptions{Continuity: true},
			newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"))
		_, err := p.Run(context.Background(), req, recorder)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"0% scene 1 of 3",
			"33% scene 2 of 3",
			"66% scene 3 of 3",
		}, recorder.list())
	})

	t.Run("parallel", func(t *testing.T) {
		gen := newFakeGenerator()
		recorder := &progressRecorder{}
		p := newTestPipeline(t, Deps{Generator: gen, Frames: &fakeFrames{}, Muxer: &fakeMuxer{}}, nil)

		req := renderRequest(t, domain.RenderOptions{MaxConcurrentClips: 1},
			newSceneJob("s1"), newSceneJob("s2"), newSceneJob("s3"))
		_, err := p.Run(context.Background(), req, recorder)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"0% rendering 3 scenes",
			"33% completed 1 of 3 scenes",
			"66% completed 2 of 3 scenes",
			"100% completed 3 of 3 scenes",
		}, recorder.list())
	})
}

func TestClassifyGenerationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{name: "context canceled", err: context.Canceled, want: retry.ClassFatal},
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: retry.ClassFatal},
		{name: "unclassified error", err: errors.New("boom"), want: retry.ClassRetryable},
		{name: "network", err: svcError(domain.ErrorKindNetwork), want: retry.ClassRetryable},
		{name: "timeout", err: svcError(domain.ErrorKindTimeout), want: retry.ClassRetryable},
		{name: "rate limited", err: svcError(domain.ErrorKindRateLimited), want: retry.ClassRetryable},
		{name: "server error", err: svcError(domain.ErrorKindServerError), want: retry.ClassRetryable},
		{name: "unknown kind", err: svcError(domain.ErrorKindUnknown), want: retry.ClassRetryable},
		{name: "audio rejected", err: svcError(domain.ErrorKindAudioRejected), want: retry.ClassRecoverable},
		{name: "content policy", err: svcError(domain.ErrorKindContentPolicy), want: retry.ClassFatal},
		{name: "invalid input", err: svcError(domain.ErrorKindInvalidInput), want: retry.ClassFatal},
		{name: "copyright", err: svcError(domain.ErrorKindCopyright), want: retry.ClassFatal},
		{name: "wrapped service error", err: fmt.Errorf("attempt: %w", svcError(domain.ErrorKindContentPolicy)), want: retry.ClassFatal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyGenerationError(tc.err))
		})
	}
}
