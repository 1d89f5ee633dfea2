package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structprep/quizd/internal/domain"
	"github.com/structprep/quizd/internal/errors"
	"github.com/structprep/quizd/internal/filter"
)

var testCategories = []string{"Concrete", "Steel", "Wood"}

func TestConfig_Defaults(t *testing.T) {
	fc := filter.New(testCategories)

	assert.Equal(t, domain.FilterSet{
		CodeSource:    "all",
		Category:      "all",
		Difficulty:    "all",
		QuestionCount: 10,
	}, fc.FilterSet())
}

func TestConfig_Setters(t *testing.T) {
	tests := map[string]struct {
		set     func(fc *filter.Config) error
		wantErr bool
	}{
		"valid code source":        {set: func(fc *filter.Config) error { return fc.SetCodeSource("AISC") }},
		"wildcard code source":     {set: func(fc *filter.Config) error { return fc.SetCodeSource("all") }},
		"unknown code source":      {set: func(fc *filter.Config) error { return fc.SetCodeSource("EUROCODE") }, wantErr: true},
		"valid category":           {set: func(fc *filter.Config) error { return fc.SetCategory("Steel") }},
		"unknown category":         {set: func(fc *filter.Config) error { return fc.SetCategory("Plumbing") }, wantErr: true},
		"valid difficulty":         {set: func(fc *filter.Config) error { return fc.SetDifficulty("impossible") }},
		"unknown difficulty":       {set: func(fc *filter.Config) error { return fc.SetDifficulty("trivial") }, wantErr: true},
		"valid question count":     {set: func(fc *filter.Config) error { return fc.SetQuestionCount(50) }},
		"arbitrary question count": {set: func(fc *filter.Config) error { return fc.SetQuestionCount(7) }, wantErr: true},
		"zero question count":      {set: func(fc *filter.Config) error { return fc.SetQuestionCount(0) }, wantErr: true},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fc := filter.New(testCategories)
			before := fc.FilterSet()

			err := tt.set(fc)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.HasReason(err, errors.ReasonInvalidFilterValue))
			assert.Equal(t, before, fc.FilterSet(), "rejected value must leave the selection unchanged")
		})
	}
}

func TestConfig_Predicate(t *testing.T) {
	fc := filter.New(testCategories)

	assert.Equal(t, domain.Predicate{}, fc.Predicate(), "all-wildcard selection is unconstrained")

	require.NoError(t, fc.SetCategory("Concrete"))
	require.NoError(t, fc.SetDifficulty("hard"))

	assert.Equal(t, domain.Predicate{
		Category:   "Concrete",
		Difficulty: "hard",
	}, fc.Predicate(), "only non-wildcard fields constrain the query")
}

func TestConfig_ApplyEntryParams(t *testing.T) {
	fc := filter.New(testCategories)

	err := fc.ApplyEntryParams(filter.EntryParams{
		Difficulty: "medium",
		Category:   "Wood",
	})
	require.NoError(t, err)

	fs := fc.FilterSet()
	assert.Equal(t, "medium", fs.Difficulty)
	assert.Equal(t, "Wood", fs.Category)
	assert.Equal(t, "all", fs.CodeSource, "absent params keep their defaults")

	err = fc.ApplyEntryParams(filter.EntryParams{Difficulty: "bogus"})
	require.Error(t, err)
	assert.True(t, errors.HasReason(err, errors.ReasonInvalidFilterValue))
}
