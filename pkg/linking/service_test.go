package linking_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gryn010/inception/pkg/common"
	"github.com/gryn010/inception/pkg/document"
	"github.com/gryn010/inception/pkg/linking"
	"github.com/gryn010/inception/pkg/linking/feature"
	"github.com/gryn010/inception/pkg/query"
	"github.com/gryn010/inception/pkg/store"
	"github.com/gryn010/inception/pkg/store/memory"
)

const project int64 = 1

// countingStore wraps a store, counts opened connections and fails the
// knowledge bases listed in fail.
type countingStore struct {
	inner store.KnowledgeBaseStore
	fail  map[string]error
	opens atomic.Int32
}

func (s *countingStore) Open(ctx context.Context, kb common.KnowledgeBase) (store.Connection, error) {
	s.opens.Add(1)
	if err, ok := s.fail[kb.ID]; ok {
		return nil, err
	}
	return s.inner.Open(ctx, kb)
}

func geoFixture() *memory.Store {
	m := memory.New()
	m.AddKnowledgeBase(common.KnowledgeBase{ID: "geo", ProjectID: project, Name: "Geo", Type: common.RepositoryTypeLocal, Enabled: true})
	m.AddItems("geo",
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q90", Label: "Paris", Description: "capital of France"}, Frequency: 100, Relations: 40},
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q830149", Label: "Paris", Description: "city in Texas"}, Frequency: 5, Relations: 3},
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q4711", Label: "Pari", Description: "unrelated"}},
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q64", Label: "Berlin", Description: "capital of Germany"}},
	)
	return m
}

func newService(t *testing.T, kbs store.KnowledgeBaseStore, registry *memory.Store, props linking.Properties) *linking.Service {
	t.Helper()
	svc, err := linking.NewService(linking.NewServiceParams{
		Store:      kbs,
		Registry:   registry,
		Properties: props,
		Stopwords:  linking.NewStopwordSet("the", "of", "in", "is", "a"),
		Generators: feature.Baseline(registry).Resolve(),
		Metrics:    linking.NewMetrics(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func identifiers(results []linking.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Handle.Identifier)
	}
	return out
}

func TestLink_ParisScenario(t *testing.T) {
	m := geoFixture()
	svc := newService(t, m, m, linking.DefaultProperties())

	results, err := svc.Link(context.Background(), linking.LinkRequest{
		ProjectID: project,
		Query:     "Par",
		Mention:   "Paris",
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	got := strings.Join(identifiers(results), ",")
	want := "geo:Q90,geo:Q830149,geo:Q4711"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
	if !strings.Contains(results[0].DebugInfo, `"levMention":0`) {
		t.Fatalf("unexpected debug info %s", results[0].DebugInfo)
	}
	if results[0].Handle.KB != "geo" {
		t.Fatalf("missing provenance on %+v", results[0].Handle)
	}
}

func TestLink_ContextDecidesBetweenHomonyms(t *testing.T) {
	m := memory.New()
	m.AddKnowledgeBase(common.KnowledgeBase{ID: "geo", ProjectID: project, Type: common.RepositoryTypeLocal, Enabled: true})
	m.AddItems("geo",
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q90", Label: "Paris", Description: "capital of France"}, Frequency: 100},
		memory.Item{Handle: common.KBHandle{Identifier: "geo:Q830149", Label: "Paris", Description: "city in Texas"}, Frequency: 5},
	)
	svc := newService(t, m, m, linking.DefaultProperties())

	text := "He drove from Dallas to Paris in Texas last week."
	results, err := svc.Link(context.Background(), linking.LinkRequest{
		ProjectID:    project,
		Mention:      "Paris",
		MentionBegin: strings.Index(text, "Paris"),
		Document:     document.New(text),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Handle.Identifier != "geo:Q830149" {
		t.Fatalf("expected the Texas city first, got %v", identifiers(results))
	}
}

func TestLink_DisabledRepository(t *testing.T) {
	m := geoFixture()
	m.AddKnowledgeBase(common.KnowledgeBase{ID: "off", ProjectID: project, Type: common.RepositoryTypeLocal, Enabled: false})
	counting := &countingStore{inner: m}
	svc := newService(t, counting, m, linking.DefaultProperties())

	for _, repo := range []string{"off", "missing"} {
		results, err := svc.Link(context.Background(), linking.LinkRequest{
			ProjectID:    project,
			RepositoryID: repo,
			Mention:      "Paris",
		})
		if err != nil {
			t.Fatalf("repository %s: %v", repo, err)
		}
		if results == nil || len(results) != 0 {
			t.Fatalf("repository %s: expected empty result, got %v", repo, results)
		}
	}
	if n := counting.opens.Load(); n != 0 {
		t.Fatalf("expected no connection, got %d", n)
	}
}

func TestLink_SanitizesWildcards(t *testing.T) {
	m := geoFixture()
	svc := newService(t, m, m, linking.DefaultProperties())
	tr := query.NewLinkTrace()

	results, err := svc.Link(context.Background(), linking.LinkRequest{
		ProjectID: project,
		Query:     "Ber*?lin",
		Tracer:    tr,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Handle.Identifier != "geo:Q64" {
		t.Fatalf("unexpected results %v", identifiers(results))
	}
	for _, pass := range tr.Snapshot().Passes {
		for _, label := range pass.Labels {
			if label != "Berlin" {
				t.Fatalf("pass %s used label %q", pass.Pass, label)
			}
		}
	}
}

func TestLink_DisplayLimit(t *testing.T) {
	m := memory.New()
	m.AddKnowledgeBase(common.KnowledgeBase{ID: "kb", ProjectID: project, Type: common.RepositoryTypeLocal, Enabled: true})
	for i := range 20 {
		m.AddItems("kb", memory.Item{Handle: common.KBHandle{Identifier: fmt.Sprintf("kb:%d", i), Label: fmt.Sprintf("Springfield %d", i)}})
	}
	props := linking.DefaultProperties()
	props.CandidateDisplayLimit = 7
	svc := newService(t, m, m, props)

	results, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, Mention: "Springfield"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
}

func TestLink_MergesKnowledgeBasesWithoutDuplicates(t *testing.T) {
	m := geoFixture()
	m.AddKnowledgeBase(common.KnowledgeBase{ID: "mirror", ProjectID: project, Type: common.RepositoryTypeRemote, Enabled: true})
	m.AddItems("mirror", memory.Item{Handle: common.KBHandle{Identifier: "geo:Q90", Label: "Paris"}})
	svc := newService(t, m, m, linking.DefaultProperties())

	results, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, Query: "Paris", Mention: "Paris"})
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.Handle.Identifier] {
			t.Fatalf("duplicate handle %s", r.Handle.Identifier)
		}
		seen[r.Handle.Identifier] = true
		if r.Handle.Identifier == "geo:Q90" && r.Handle.KB != "geo" {
			t.Fatalf("expected first knowledge base to win, got %s", r.Handle.KB)
		}
	}
}

func TestLink_KnowledgeBaseFailures(t *testing.T) {
	boom := errors.New("connection refused")

	newFixture := func(fail ...string) (*linking.Service, *memory.Store) {
		m := geoFixture()
		m.AddKnowledgeBase(common.KnowledgeBase{ID: "broken", ProjectID: project, Type: common.RepositoryTypeRemote, Enabled: true})
		failing := make(map[string]error)
		for _, id := range fail {
			failing[id] = boom
		}
		return newService(t, &countingStore{inner: m, fail: failing}, m, linking.DefaultProperties()), m
	}

	t.Run("failing kb is skipped", func(t *testing.T) {
		svc, _ := newFixture("broken")
		tr := query.NewLinkTrace()
		results, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, Mention: "Paris", Tracer: tr})
		if err != nil {
			t.Fatalf("expected graceful degradation, got %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected both Paris entries, got %v", identifiers(results))
		}
		if _, ok := tr.Snapshot().FailedKBs["broken"]; !ok {
			t.Fatal("failure not recorded in trace")
		}
	})

	t.Run("all kbs failing", func(t *testing.T) {
		svc, _ := newFixture("broken", "geo")
		_, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, Mention: "Paris"})
		if !errors.Is(err, linking.ErrAllKnowledgeBasesFailed) || !errors.Is(err, boom) {
			t.Fatalf("expected joined failure, got %v", err)
		}
	})

	t.Run("selected kb failing", func(t *testing.T) {
		svc, _ := newFixture("broken")
		_, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, RepositoryID: "broken", Mention: "Paris"})
		if !errors.Is(err, boom) || errors.Is(err, linking.ErrAllKnowledgeBasesFailed) {
			t.Fatalf("expected the kb error, got %v", err)
		}
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		svc, _ := newFixture()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.Link(ctx, linking.LinkRequest{ProjectID: project, Mention: "Paris"})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLink_UnknownValueType(t *testing.T) {
	m := geoFixture()
	counting := &countingStore{inner: m}
	svc := newService(t, counting, m, linking.DefaultProperties())

	_, err := svc.Link(context.Background(), linking.LinkRequest{ProjectID: project, Mention: "Paris", ValueType: "PROPERTY"})
	if !errors.Is(err, store.ErrUnknownItemKind) {
		t.Fatalf("expected ErrUnknownItemKind, got %v", err)
	}
	if counting.opens.Load() != 0 {
		t.Fatal("no connection expected for an invalid value type")
	}
}

func TestRankCandidates_GeneratorErrorIsNotFatal(t *testing.T) {
	m := geoFixture()
	failing := linking.FeatureGeneratorFunc(func(ctx context.Context, c *linking.CandidateEntity) error {
		c.Features.SetExtra("seen", true)
		return errors.New("generator down")
	})
	svc, err := linking.NewService(linking.NewServiceParams{
		Store:      m,
		Registry:   m,
		Generators: append([]linking.FeatureGenerator{failing}, feature.Baseline(nil).Resolve()...),
	})
	if err != nil {
		t.Fatal(err)
	}

	handles := []common.KBHandle{
		{Identifier: "b", Label: "Lyon"},
		{Identifier: "a", Label: "Paris"},
	}
	results, err := svc.RankCandidates(context.Background(), "", "Paris", handles, nil, 0, "en")
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if len(results) != 2 || results[0].Handle.Identifier != "a" {
		t.Fatalf("unexpected ranking %v", identifiers(results))
	}
	if !strings.Contains(results[0].DebugInfo, `"seen":true`) {
		t.Fatalf("features written before the error are lost: %s", results[0].DebugInfo)
	}

	empty, err := svc.RankCandidates(context.Background(), "", "Paris", nil, nil, 0, "en")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil result, got %v, %v", empty, err)
	}
}

func TestRankCandidates_MissingSentence(t *testing.T) {
	m := geoFixture()
	svc := newService(t, m, m, linking.DefaultProperties())

	handles := []common.KBHandle{{Identifier: "geo:Q90", Label: "Paris", KB: "geo"}}
	results, err := svc.RankCandidates(context.Background(), "", "Paris", handles, document.New("Tiny."), 500, "en")
	if err != nil {
		t.Fatalf("missing context must not fail ranking: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
}

func TestSearchItems(t *testing.T) {
	m := geoFixture()
	svc := newService(t, m, m, linking.DefaultProperties())
	kb, err := m.KnowledgeBaseByID(context.Background(), project, "geo")
	if err != nil {
		t.Fatal(err)
	}

	results, err := svc.SearchItems(context.Background(), kb, " Par* ")
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(identifiers(results), ","); got != "geo:Q4711,geo:Q90,geo:Q830149" {
		t.Fatalf("unexpected search results %s", got)
	}
}

func TestDisambiguate(t *testing.T) {
	m := geoFixture()
	svc := newService(t, m, m, linking.DefaultProperties())
	kb, _ := m.KnowledgeBaseByID(context.Background(), project, "geo")

	text := "Berlin is the capital of Germany."
	results, err := svc.Disambiguate(context.Background(), kb, "", common.ValueTypeInstance, "", "Berlin", 0, document.New(text), "en")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Handle.Identifier != "geo:Q64" {
		t.Fatalf("unexpected results %v", identifiers(results))
	}
}
