package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/crawlpipe/internal/pipeline"
)

func TestBuildTopicMap_CountsAcrossPages(t *testing.T) {
	t.Parallel()

	topicMap := pipeline.BuildTopicMap([]string{
		"Keyword research drives content strategy.",
		"Content strategy starts with keyword research and the audience.",
	})

	assert.Equal(t, 2, topicMap.PageCount)
	assert.Equal(t, 14, topicMap.TotalWords)

	counts := map[string]int{}
	for _, term := range topicMap.Terms {
		counts[term.Term] = term.Count
	}

	assert.Equal(t, 2, counts["keyword"])
	assert.Equal(t, 2, counts["research"])
	assert.Equal(t, 2, counts["content"])
	assert.Equal(t, 2, counts["strategy"])
	assert.Equal(t, 1, counts["audience"])

	// Stopwords and short tokens never surface.
	assert.NotContains(t, counts, "the")
	assert.NotContains(t, counts, "and")
}

func TestBuildTopicMap_OrderedByCountThenTerm(t *testing.T) {
	t.Parallel()

	topicMap := pipeline.BuildTopicMap([]string{"zebra apple zebra banana apple cherry"})

	require.Len(t, topicMap.Terms, 4)
	assert.Equal(t, "apple", topicMap.Terms[0].Term)
	assert.Equal(t, "zebra", topicMap.Terms[1].Term)
	assert.Equal(t, "banana", topicMap.Terms[2].Term)
	assert.Equal(t, "cherry", topicMap.Terms[3].Term)
}

func TestBuildTopicMap_EmptyInput(t *testing.T) {
	t.Parallel()

	topicMap := pipeline.BuildTopicMap(nil)

	assert.Zero(t, topicMap.PageCount)
	assert.Zero(t, topicMap.TotalWords)
	assert.Empty(t, topicMap.Terms)
}

func TestBuildKeywordCoverage_PhraseMatchIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	coverage := pipeline.BuildKeywordCoverage(
		[]string{"Content Strategy", "link building", "local SEO"},
		[]string{"We teach content strategy and Link Building for agencies."},
	)

	assert.Equal(t, []string{"Content Strategy", "link building"}, coverage.Covered)
	assert.Equal(t, []string{"local SEO"}, coverage.Missing)
	assert.InDelta(t, 2.0/3.0, coverage.CoverageRatio, 1e-9)
}

func TestBuildKeywordCoverage_NoKeywords(t *testing.T) {
	t.Parallel()

	coverage := pipeline.BuildKeywordCoverage(nil, []string{"some text"})

	assert.Empty(t, coverage.Covered)
	assert.Empty(t, coverage.Missing)
	assert.Zero(t, coverage.CoverageRatio)
}

func TestBuildKeywordCoverage_NoTexts(t *testing.T) {
	t.Parallel()

	coverage := pipeline.BuildKeywordCoverage([]string{"anything"}, nil)

	assert.Empty(t, coverage.Covered)
	assert.Equal(t, []string{"anything"}, coverage.Missing)
	assert.Zero(t, coverage.CoverageRatio)
}
