package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotekeeper/internal/adapters/storage"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
	"github.com/jsamuelsen/quotekeeper/internal/mocks"
	"github.com/jsamuelsen/quotekeeper/internal/ports"
)

// fixedPick always returns the same index, wrapped to the view size.
type fixedPick int

func (f fixedPick) IntN(n int) int { return int(f) % n }

type managerFixture struct {
	manager *QuoteManager
	durable *storage.MemoryStore
	session *storage.MemoryStore
	remote  *mocks.MockQuoteSource
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	f := &managerFixture{
		durable: storage.NewMemoryStore(),
		session: storage.NewMemoryStore(),
		remote:  mocks.NewMockQuoteSource(t),
	}
	f.manager = f.open(t)

	return f
}

// open builds a manager over the fixture's stores, as a restart would.
func (f *managerFixture) open(t *testing.T) *QuoteManager {
	t.Helper()

	m := NewQuoteManager(ManagerConfig{
		Durable:  f.durable,
		Session:  f.session,
		Remote:   f.remote,
		Random:   fixedPick(0),
		Logger:   discardLogger(),
		Notifier: NewNotifier(time.Minute, WithNotifierLogger(discardLogger())),
	})
	require.NoError(t, m.Open(context.Background()))

	return m
}

func TestQuoteManager_OpenDefaults(t *testing.T) {
	f := newManagerFixture(t)

	assert.Equal(t, domain.SeedQuotes(), f.manager.Quotes())
	assert.Equal(t, domain.CategoryAll, f.manager.SelectedCategory())
	assert.Equal(t, []string{"all", "Motivation", "Inspiration", "Resilience"}, f.manager.Categories())
}

func TestQuoteManager_SelectedCategoryPersists(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	require.NoError(t, f.manager.SetSelectedCategory(ctx, "Resilience"))

	raw, err := f.durable.Get(ctx, ports.KeySelectedCategory)
	require.NoError(t, err)
	assert.Equal(t, "Resilience", string(raw))

	restarted := f.open(t)
	assert.Equal(t, "Resilience", restarted.SelectedCategory())

	category, quotes := restarted.Filtered()
	assert.Equal(t, "Resilience", category)
	require.Len(t, quotes, 1)
	assert.Equal(t, "Resilience", quotes[0].Category)
}

func TestQuoteManager_EmptySelectionMeansAll(t *testing.T) {
	f := newManagerFixture(t)

	require.NoError(t, f.manager.SetSelectedCategory(context.Background(), ""))

	assert.Equal(t, domain.CategoryAll, f.manager.SelectedCategory())
}

func TestQuoteManager_InvalidUTF8CategorySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quotekeeper.toml")

	open := func() *QuoteManager {
		durable, err := storage.NewFileStore(path)
		require.NoError(t, err)

		m := NewQuoteManager(ManagerConfig{Durable: durable, Session: storage.NewMemoryStore(), Logger: discardLogger()})
		require.NoError(t, m.Open(ctx))

		return m
	}

	m := open()
	_, err := m.AddQuote(ctx, "Keep me", "Mine")
	require.NoError(t, err)
	require.NoError(t, m.SetSelectedCategory(ctx, "bad\xffcat"))
	assert.Equal(t, "bad�cat", m.SelectedCategory())
	require.NoError(t, m.SetSelectedCategory(ctx, domain.CategoryAll))

	restarted := open()
	assert.Len(t, restarted.Quotes(), 4)
	assert.Contains(t, restarted.Quotes(), domain.Quote{Text: "Keep me", Category: "Mine"})
}

func TestQuoteManager_SetSelectedCategoryPersistFailure(t *testing.T) {
	durable := mocks.NewMockKeyValueStore(t)
	durable.EXPECT().Get(mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError("key", "")).Times(2)
	durable.EXPECT().Set(mock.Anything, ports.KeySelectedCategory, []byte("Work")).Return(errors.New("read-only")).Once()

	m := NewQuoteManager(ManagerConfig{Durable: durable, Session: storage.NewMemoryStore(), Logger: discardLogger()})
	require.NoError(t, m.Open(context.Background()))

	err := m.SetSelectedCategory(context.Background(), "Work")

	require.Error(t, err)
	assert.Equal(t, "Work", m.SelectedCategory())
}

func TestQuoteManager_ShowRandom(t *testing.T) {
	ctx := context.Background()

	t.Run("picks from the filtered view", func(t *testing.T) {
		f := newManagerFixture(t)
		require.NoError(t, f.manager.SetSelectedCategory(ctx, "Inspiration"))

		d := f.manager.ShowRandom(ctx)

		require.NotNil(t, d.Quote)
		assert.Equal(t, "Inspiration", d.Quote.Category)
		assert.Equal(t, d.Quote.Display(), d.Text)
		assert.False(t, d.Empty)
	})

	t.Run("empty view shows placeholder", func(t *testing.T) {
		f := newManagerFixture(t)
		require.NoError(t, f.manager.SetSelectedCategory(ctx, "Nope"))

		d := f.manager.ShowRandom(ctx)

		assert.Nil(t, d.Quote)
		assert.True(t, d.Empty)
		assert.Equal(t, EmptyStateMessage, d.Text)
		assert.Zero(t, f.session.Len())
	})

	t.Run("remembers the last quote for the session", func(t *testing.T) {
		f := newManagerFixture(t)

		d := f.manager.ShowRandom(ctx)

		raw, err := f.session.Get(ctx, ports.KeyLastQuote)
		require.NoError(t, err)

		var stored domain.Quote
		require.NoError(t, json.Unmarshal(raw, &stored))
		assert.Equal(t, *d.Quote, stored)
	})
}

func TestQuoteManager_CurrentQuote(t *testing.T) {
	ctx := context.Background()
	f := newManagerFixture(t)

	last := domain.Quote{Text: "Not in the collection.", Category: "Ghost"}
	raw, err := json.Marshal(last)
	require.NoError(t, err)
	require.NoError(t, f.session.Set(ctx, ports.KeyLastQuote, raw))

	d := f.manager.CurrentQuote(ctx)
	require.NotNil(t, d.Quote)
	assert.Equal(t, last, *d.Quote)

	f.session.Clear()

	d = f.manager.CurrentQuote(ctx)
	require.NotNil(t, d.Quote)
	assert.Equal(t, domain.SeedQuotes()[0], *d.Quote)
}

func TestQuoteManager_AddQuoteDoesNotWaitForPush(t *testing.T) {
	f := newManagerFixture(t)

	release := make(chan struct{})
	pushed := make(chan domain.Quote, 1)

	f.remote.EXPECT().PushQuote(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, q domain.Quote) error {
			<-release
			pushed <- q
			return ctx.Err()
		}).Once()

	reqCtx, cancel := context.WithCancel(context.Background())

	q, err := f.manager.AddQuote(reqCtx, "Keep going.", "Motivation")
	require.NoError(t, err)
	cancel()

	// The add is visible before the push finishes.
	assert.Len(t, f.manager.Quotes(), 4)
	assert.Equal(t, q, f.manager.Quotes()[3])

	close(release)
	f.manager.WaitPushes()

	assert.Equal(t, q, <-pushed)
}

func TestQuoteManager_AddQuotePushFailureIsSwallowed(t *testing.T) {
	f := newManagerFixture(t)
	f.remote.EXPECT().PushQuote(mock.Anything, mock.Anything).
		Return(domain.NewTransientNetworkError("posts-service", "push quote", errors.New("refused"))).Once()

	_, err := f.manager.AddQuote(context.Background(), "Offline.", "Ops")
	f.manager.WaitPushes()

	require.NoError(t, err)
	assert.Contains(t, f.manager.Categories(), "Ops")
}

func TestQuoteManager_AddQuoteValidation(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.AddQuote(context.Background(), "text", "   ")
	f.manager.WaitPushes()

	var validationErr *domain.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "category", validationErr.Field)
	assert.Len(t, f.manager.Quotes(), 3)
	f.remote.AssertNotCalled(t, "PushQuote", mock.Anything, mock.Anything)
}

func TestQuoteManager_AddQuoteWithoutRemote(t *testing.T) {
	m := NewQuoteManager(ManagerConfig{
		Durable: storage.NewMemoryStore(),
		Session: storage.NewMemoryStore(),
		Logger:  discardLogger(),
	})
	require.NoError(t, m.Open(context.Background()))

	_, err := m.AddQuote(context.Background(), "Solo.", "Local")
	m.WaitPushes()

	require.NoError(t, err)
	assert.Len(t, m.Quotes(), 4)
}

func TestQuoteManager_PersistFailureLeavesCollection(t *testing.T) {
	ctx := context.Background()
	durable := mocks.NewMockKeyValueStore(t)
	durable.EXPECT().Get(mock.Anything, mock.Anything).Return(nil, domain.NewNotFoundError("key", "")).Times(2)
	durable.EXPECT().Set(mock.Anything, ports.KeyQuotes, mock.Anything).Return(errors.New("disk full")).Twice()

	remote := mocks.NewMockQuoteSource(t)
	notifier := NewNotifier(time.Minute, WithNotifierLogger(discardLogger()))

	m := NewQuoteManager(ManagerConfig{
		Durable:  durable,
		Session:  storage.NewMemoryStore(),
		Remote:   remote,
		Notifier: notifier,
		Logger:   discardLogger(),
	})
	require.NoError(t, m.Open(ctx))

	_, err := m.AddQuote(ctx, "New", "Cat")
	m.WaitPushes()
	require.ErrorContains(t, err, "disk full")

	_, err = m.Import(ctx, []byte(`[{"text":"Imported","category":"Cat"}]`))
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, domain.SeedQuotes(), m.Quotes())
	assert.Empty(t, notifier.Active())
	remote.AssertNotCalled(t, "PushQuote", mock.Anything, mock.Anything)
}

func TestQuoteManager_Import(t *testing.T) {
	ctx := context.Background()

	t.Run("appends and notifies", func(t *testing.T) {
		f := newManagerFixture(t)

		n, err := f.manager.Import(ctx, []byte(`[{"text":"A","category":"x"},{"text":"B","category":"y"}]`))

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Len(t, f.manager.Quotes(), 5)
		assert.Equal(t, []string{"all", "Motivation", "Inspiration", "Resilience", "x", "y"}, f.manager.Categories())

		active := f.manager.Notifier().Active()
		require.Len(t, active, 1)
		assert.Equal(t, NoticeImported, active[0].Message)
	})

	t.Run("malformed payload changes nothing", func(t *testing.T) {
		f := newManagerFixture(t)

		n, err := f.manager.Import(ctx, []byte(`{"text":"A"}`))

		require.True(t, domain.IsFormat(err))
		assert.Zero(t, n)
		assert.Equal(t, domain.SeedQuotes(), f.manager.Quotes())
		assert.Empty(t, f.manager.Notifier().Active())
	})

	t.Run("export then import duplicates the collection", func(t *testing.T) {
		f := newManagerFixture(t)

		payload, err := f.manager.Export()
		require.NoError(t, err)

		n, err := f.manager.Import(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		quotes := f.manager.Quotes()
		require.Len(t, quotes, 6)
		assert.Equal(t, quotes[:3], quotes[3:])
	})
}

func TestQuoteManager_ReplaceAll(t *testing.T) {
	ctx := context.Background()

	t.Run("remote snapshot wins", func(t *testing.T) {
		f := newManagerFixture(t)
		f.remote.EXPECT().PushQuote(mock.Anything, mock.Anything).Return(nil).Once()
		_, err := f.manager.AddQuote(ctx, "local only", "Mine")
		require.NoError(t, err)
		f.manager.WaitPushes()

		remote := domain.Collection{{Text: "r1", Category: "quia"}, {Text: "r2", Category: "est"}}
		d, err := f.manager.ReplaceAll(ctx, remote)

		require.NoError(t, err)
		assert.Equal(t, remote, f.manager.Quotes())
		assert.Equal(t, []string{"all", "quia", "est"}, f.manager.Categories())
		require.NotNil(t, d.Quote)
		assert.Equal(t, remote[0], *d.Quote)

		active := f.manager.Notifier().Active()
		require.Len(t, active, 1)
		assert.Equal(t, NoticeSynced, active[0].Message)

		assert.Equal(t, remote, f.open(t).Quotes())
	})

	t.Run("selected category no longer present", func(t *testing.T) {
		f := newManagerFixture(t)
		require.NoError(t, f.manager.SetSelectedCategory(ctx, "Motivation"))

		d, err := f.manager.ReplaceAll(ctx, domain.Collection{{Text: "r", Category: "quia"}})

		require.NoError(t, err)
		assert.True(t, d.Empty)
		assert.Equal(t, "Motivation", f.manager.SelectedCategory())
	})

	t.Run("empty snapshot empties the collection", func(t *testing.T) {
		f := newManagerFixture(t)

		d, err := f.manager.ReplaceAll(ctx, domain.Collection{})

		require.NoError(t, err)
		assert.Empty(t, f.manager.Quotes())
		assert.Equal(t, []string{domain.CategoryAll}, f.manager.Categories())
		assert.True(t, d.Empty)
	})
}
