package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/domain"
)

type fakeCategories struct {
	items []domain.Category
	err   error
}

func (f fakeCategories) FindCategoryByKey(_ context.Context, key string) (*domain.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.items {
		if c.Key == key {
			c := c
			return &c, nil
		}
	}
	return nil, nil
}

func (f fakeCategories) ListCategories(context.Context) ([]domain.Category, error) {
	return f.items, f.err
}

var (
	catSports  = domain.Category{ID: "c-sports", Key: "sports", Label: "Sports"}
	catTech    = domain.Category{ID: "c-tech", Key: "tech", Label: "Technology"}
	catWorld   = domain.Category{ID: "c-world", Key: "world", Label: "World"}
	catGeneral = domain.Category{ID: "c-general", Key: "general", Label: "General"}
	catLocalA  = domain.Category{ID: "c-a", Key: "local", Label: "Local"}
	catLocalB  = domain.Category{ID: "c-b", Key: "metro", Label: "Metro"}
)

func TestResolveCategory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tests := []struct {
		name    string
		store   []domain.Category
		title   string
		summary string
		allowed []domain.Category
		want    domain.Category
	}{
		{
			name:  "keyword in title",
			store: []domain.Category{catSports, catTech},
			title: "Basketball playoffs start tonight",
			want:  catSports,
		},
		{
			name:    "keyword in summary is case insensitive",
			store:   []domain.Category{catSports, catTech},
			title:   "New release",
			summary: "The SOFTWARE ships Monday",
			want:    catTech,
		},
		{
			name:  "table order wins over later rules",
			store: []domain.Category{catSports, catWorld},
			title: "World cup match tonight",
			want:  catSports,
		},
		{
			name:    "matched key missing from store continues down the table",
			store:   []domain.Category{catWorld},
			title:   "Global football summit",
			allowed: []domain.Category{catLocalA},
			want:    catWorld,
		},
		{
			name:    "no keyword falls back to first allowed",
			store:   []domain.Category{catSports, catGeneral},
			title:   "Bakery opens downtown",
			allowed: []domain.Category{catLocalA, catLocalB},
			want:    catLocalA,
		},
		{
			name:  "no keyword and no allowed prefers general",
			store: []domain.Category{catSports, catGeneral},
			title: "Bakery opens downtown",
			want:  catGeneral,
		},
		{
			name:  "no keyword no allowed no general takes any category",
			store: []domain.Category{catLocalB, catLocalA},
			title: "Bakery opens downtown",
			want:  catLocalB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(fakeCategories{items: tt.store}, nil)
			got, err := c.ResolveCategory(ctx, tt.title, tt.summary, tt.allowed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveCategoryNoneAvailable(t *testing.T) {
	t.Parallel()

	c := New(fakeCategories{}, nil)
	_, err := c.ResolveCategory(context.Background(), "Bakery opens", "", nil)
	assert.ErrorIs(t, err, ErrNoCategory)
}

func TestResolveCategoryStoreError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	c := New(fakeCategories{err: boom}, nil)
	_, err := c.ResolveCategory(context.Background(), "Election night", "", nil)
	assert.ErrorIs(t, err, boom)
}

func TestResolveCategoryCustomRules(t *testing.T) {
	t.Parallel()

	rules := []Rule{{Key: "metro", Keywords: []string{"bakery"}}}
	c := New(fakeCategories{items: []domain.Category{catLocalB}}, rules)

	got, err := c.ResolveCategory(context.Background(), "Bakery opens", "", nil)
	require.NoError(t, err)
	assert.Equal(t, catLocalB, got)
}

func TestExtractTags(t *testing.T) {
	t.Parallel()

	t.Run("frequency then first seen", func(t *testing.T) {
		tags := ExtractTags(
			"Rover lands on Mars",
			"The rover sent images from Mars",
			"Engineers said the rover and its drill worked; Mars dust, drill bits, rover wheels.",
		)
		assert.Equal(t, []string{"rover", "mars", "drill", "lands", "sent"}, tags)
	})

	t.Run("stop words and short words dropped", func(t *testing.T) {
		tags := ExtractTags("This would have been big", "", "")
		assert.Equal(t, []string{}, tags)
	})

	t.Run("fewer than five", func(t *testing.T) {
		tags := ExtractTags("Quantum leap", "", "")
		assert.Equal(t, []string{"quantum", "leap"}, tags)
	})

	t.Run("digits count as word characters", func(t *testing.T) {
		tags := ExtractTags("2025 budget", "budget 2025 plan", "")
		assert.Equal(t, []string{"2025", "budget", "plan"}, tags)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := ExtractTags("alpha beta gamma delta epsilon zeta", "", "")
		b := ExtractTags("alpha beta gamma delta epsilon zeta", "", "")
		assert.Equal(t, a, b)
		assert.Equal(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, a)
	})
}
