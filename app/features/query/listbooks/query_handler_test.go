package listbooks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/app/features/query/listbooks"
	"github.com/AntonStoeckl/library-lending-go/lending"
	"github.com/AntonStoeckl/library-lending-go/lending/memengine"
	. "github.com/AntonStoeckl/library-lending-go/testutil/helper" //nolint:revive
	"github.com/AntonStoeckl/library-lending-go/testutil/postgresengine/postgreswrapper"
)

type store interface {
	listbooks.Store
	InsertBook(ctx context.Context, book lending.Book) error
}

func Test_QueryHandler_Handle_FiltersWithAnd_InMemory(t *testing.T) {
	assertFilteringWithAnd(t, memengine.NewStore())
}

func Test_QueryHandler_Handle_FiltersWithAnd_Postgres(t *testing.T) {
	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t)
	assertFilteringWithAnd(t, wrapper.GetStore())
}

func assertFilteringWithAnd(t *testing.T, store store) {
	t.Helper()

	// setup
	ctx := context.Background()
	handler := listbooks.NewQueryHandler(store)

	// arrange
	now := FakeClock()
	nineteenEightyFour := FixtureBook(t, "1984", "Orwell", "Dystopia", 1949, now)
	animalFarm := FixtureBook(t, "Animal Farm", "Orwell", "Satire", 1945, now.Add(time.Minute))
	braveNewWorld := FixtureBook(t, "Brave New World", "Huxley", "Dystopia", 1932, now.Add(2*time.Minute))

	for _, book := range []lending.Book{nineteenEightyFour, animalFarm, braveNewWorld} {
		require.NoError(t, store.InsertBook(ctx, book), "error in arranging test data")
	}

	testCases := []struct {
		name     string
		filter   lending.BookFilter
		expected []lending.Book
	}{
		{
			name:     "no criteria lists everything in creation order",
			filter:   lending.BuildBookFilter().Finalize(),
			expected: []lending.Book{nineteenEightyFour, animalFarm, braveNewWorld},
		},
		{
			name:     "author only",
			filter:   lending.BuildBookFilter().WithAuthor("Orwell").Finalize(),
			expected: []lending.Book{nineteenEightyFour, animalFarm},
		},
		{
			name:     "author and genre",
			filter:   lending.BuildBookFilter().WithAuthor("Orwell").WithGenre("Dystopia").Finalize(),
			expected: []lending.Book{nineteenEightyFour},
		},
		{
			name:     "genre and year",
			filter:   lending.BuildBookFilter().WithGenre("Dystopia").WithPublicationYear(1932).Finalize(),
			expected: []lending.Book{braveNewWorld},
		},
		{
			name:     "nothing matches",
			filter:   lending.BuildBookFilter().WithAuthor("Huxley").WithGenre("Satire").Finalize(),
			expected: []lending.Book{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			result, err := handler.Handle(ctx, listbooks.BuildQuery(tc.filter))

			// assert
			assert.NoError(t, err)
			assert.Equal(t, len(tc.expected), result.Count)
			assert.Equal(t, tc.expected, result.Books)
		})
	}
}
